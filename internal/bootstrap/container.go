package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"ai-queryrefine-be/internal/config"
	"ai-queryrefine-be/internal/controller"
	"ai-queryrefine-be/internal/handler"
	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/internal/repository/implementation"
	"ai-queryrefine-be/internal/repository/memory"
	"ai-queryrefine-be/internal/repository/unitofwork"
	"ai-queryrefine-be/internal/service"
	"ai-queryrefine-be/internal/websocket"
	"ai-queryrefine-be/pkg/disambiguation"
	"ai-queryrefine-be/pkg/embedding"
	"ai-queryrefine-be/pkg/executor"
	"ai-queryrefine-be/pkg/graphdb"
	"ai-queryrefine-be/pkg/llm/factory"
	pktNats "ai-queryrefine-be/pkg/nats"
	"ai-queryrefine-be/pkg/orchestrator"
	"ai-queryrefine-be/pkg/querymap"
	"ai-queryrefine-be/pkg/resolutioncache"
	"ai-queryrefine-be/pkg/resolver"
	"ai-queryrefine-be/pkg/stages"
	"ai-queryrefine-be/pkg/valuestore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	QueryController controller.IQueryController

	// Background services, started by Start
	ConsumerService  service.IConsumerService
	CacheSyncService *service.CacheSyncService // nil without NATS

	// WebSockets & disambiguation
	DisambiguationHandler *handler.DisambiguationHandler
	WebSocketHub          *websocket.Hub

	Logger logger.ILogger

	closers []func(context.Context) error
}

// backend bundles the pieces that depend on the store holding the data
type backend struct {
	store    resolver.ValueStore
	executor orchestrator.Executor
	dialect  querymap.Dialect
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	c := &Container{}
	if err := c.build(ctx, db, cfg); err != nil {
		c.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	wsLogger := logger.NewIsolatedLogger(cfg.App.SocketLogFilePath)
	c.Logger = sysLogger
	c.closers = append(c.closers, func(context.Context) error { return sysLogger.Sync() })

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	c.closers = append(c.closers, func(context.Context) error { return pubSub.Close() })

	// 3. Infrastructure
	rdb := connectRedis(ctx, cfg.App.RedisURL, sysLogger)
	if rdb != nil {
		c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })
	}

	// trace records and completion events; optional
	var eventPublisher orchestrator.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
	} else {
		eventPublisher = natsPub
		c.closers = append(c.closers, func(context.Context) error { natsPub.Close(); return nil })
	}

	be, err := c.newBackend(ctx, db, uowFactory, cfg, sysLogger)
	if err != nil {
		return err
	}

	registry, err := valuestore.LoadIndexRegistry(cfg.Refinement.IndexFile)
	if err != nil {
		return err
	}
	sysLogger.Info("Bootstrap", "Full-text index registry loaded", map[string]interface{}{"indexes": registry.Len()})

	// 4. Resolution cache: go-cache in front of the durable layer
	durable, err := newDurableCache(cfg.Refinement, rdb, uowFactory)
	if err != nil {
		return err
	}
	cache := resolutioncache.NewLayered(memory.NewResolutionRepository(cfg.Refinement.LocalCacheTTL), durable)

	// 5. Disambiguation over the websocket hub
	wsHub := websocket.NewHub(rdb, wsLogger)
	socketPort := disambiguation.NewSocketPort(pubSub, wsHub, wsLogger)
	wsHub.OnReply(socketPort.HandleFrame)

	sink := resolver.MultiSink{resolver.NewLogSink(sysLogger)}
	if natsPub != nil {
		sink = append(sink, resolver.NewEventSink(natsPub, sysLogger))
	}

	valueResolver := resolver.NewResolver(be.store, cache, registry, socketPort, sink, sysLogger, resolver.Options{
		CandidateLimit:        cfg.Refinement.CandidateLimit,
		SimilarityFloor:       cfg.Refinement.SimilarityFloor,
		DisambiguationTimeout: cfg.Refinement.DisambiguationTimeout,
	})
	mapper := querymap.NewMapper(valueResolver, registry, be.dialect, sysLogger)

	// 6. Language model stages
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.HuggingFace,
	)
	if err != nil {
		return fmt.Errorf("initialize LLM provider: %w", err)
	}
	sysLogger.Info("Bootstrap", "Using LLM provider", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})

	embeddingProvider, err := embedding.NewEmbeddingProvider(
		cfg.Ai.EmbeddingProvider,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.EmbeddingModel,
		cfg.Keys.Jina,
	)
	if err != nil {
		return fmt.Errorf("initialize embedding provider: %w", err)
	}

	prompts, err := stages.LoadPrompts(cfg.Ai.PromptsFile, cfg.Refinement.Language())
	if err != nil {
		return err
	}

	var prioritizer orchestrator.Prioritizer
	if cfg.Refinement.RankSource != "" {
		prioritizer = stages.NewVectorPrioritizer(stages.PrioritizerConfig{
			Source:      cfg.Refinement.RankSource,
			KeyColumn:   cfg.Refinement.RankKeyColumn,
			Threshold:   cfg.Refinement.RankThreshold,
			FocusPrompt: prompts.Focus,
		}, llmProvider, embeddingProvider, implementation.NewRowEmbeddingRepository(db), sysLogger)
	}

	machine := orchestrator.NewMachine(orchestrator.Dependencies{
		Planner:     stages.NewPlanner(llmProvider, prompts.Planner, service.NewConversationHistory(uowFactory), sysLogger),
		Generator:   stages.NewGenerator(llmProvider, prompts.Generator, sysLogger),
		Mapper:      mapper,
		Executor:    be.executor,
		Prioritizer: prioritizer,
		PlainAnswer: stages.NewPlainAnswerer(llmProvider, prompts.PlainAnswer, sysLogger),
		TableAnswer: stages.NewTableAnswerer(llmProvider, prompts.TableAnswer, sysLogger),
		Publisher:   eventPublisher,
	}, orchestrator.Options{
		MaxIterations: cfg.Refinement.MaxIterations,
		MaxRows:       cfg.Refinement.MaxRows,
	}, sysLogger)

	// 7. Services
	indexPublisher := service.NewPublisherService(cfg.Refinement.IndexRowsTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.Refinement.IndexRowsTopic,
		uowFactory,
		embeddingProvider,
		sysLogger,
	)

	queryService := service.NewQueryService(machine, uowFactory, indexPublisher, service.RankTarget{
		Source:    cfg.Refinement.RankSource,
		KeyColumn: cfg.Refinement.RankKeyColumn,
	}, sysLogger)

	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
	} else {
		c.CacheSyncService = service.NewCacheSyncService(natsSub, cache, uuid.NewString(), sysLogger)
		c.closers = append(c.closers, func(context.Context) error { natsSub.Close(); return nil })
	}

	// 8. Controllers & handlers
	c.QueryController = controller.NewQueryController(queryService)
	c.DisambiguationHandler = handler.NewDisambiguationHandler(queryService, wsHub, wsLogger)
	c.WebSocketHub = wsHub

	return nil
}

func (c *Container) newBackend(ctx context.Context, db *gorm.DB, uowFactory unitofwork.RepositoryFactory, cfg *config.Config, log logger.ILogger) (*backend, error) {
	switch cfg.Refinement.Backend {
	case "neo4j":
		client, err := graphdb.Connect(ctx, graphdb.Neo4jConfig{
			URI:      cfg.Graph.URI,
			Username: cfg.Graph.Username,
			Password: cfg.Graph.Password,
			Database: cfg.Graph.Database,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		log.Info("Bootstrap", "Using Neo4j backend", map[string]interface{}{"uri": cfg.Graph.URI})
		return &backend{
			store:    valuestore.NewNeo4jStore(client),
			executor: executor.NewNeo4jExecutor(client, cfg.Refinement.ExecutionTimeout, cfg.Refinement.MaxRows, log),
			dialect:  querymap.DialectCypher,
		}, nil

	case "postgres":
		store := valuestore.NewPostgresStore(db)
		store.TextSearchConfig = cfg.Refinement.TextSearchConfig
		log.Info("Bootstrap", "Using Postgres backend", nil)
		return &backend{
			store:    store,
			executor: executor.NewSQLExecutor(uowFactory, cfg.Refinement.ExecutionTimeout, cfg.Refinement.MaxRows, log),
			dialect:  querymap.DialectSQL,
		}, nil
	}
	return nil, fmt.Errorf("unsupported refinement backend: %q", cfg.Refinement.Backend)
}

func newDurableCache(cfg config.RefinementConfig, rdb *redis.Client, uowFactory unitofwork.RepositoryFactory) (resolver.Cache, error) {
	switch cfg.DurableCache {
	case "redis":
		if rdb == nil {
			return nil, errors.New("RESOLUTION_CACHE=redis needs a reachable REDIS_URL")
		}
		return resolutioncache.NewRedisCache(rdb, cfg.CacheTTL), nil
	case "postgres":
		return resolutioncache.NewRepositoryCache(uowFactory), nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported resolution cache: %q", cfg.DurableCache)
}

func connectRedis(ctx context.Context, url string, log logger.ILogger) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("Bootstrap", "Failed to parse Redis URL, using it as an address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Bootstrap", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		return nil
	}
	return rdb
}

// Start runs the hub and the background consumers until ctx is cancelled
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("start row index consumer: %w", err)
	}
	if c.CacheSyncService != nil {
		if err := c.CacheSyncService.Start(ctx); err != nil {
			// other instances still share the durable cache
			c.Logger.Warn("Bootstrap", "Resolution cache sync disabled", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// Close releases everything NewContainer opened, newest first
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
