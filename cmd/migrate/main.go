package main

import (
	"context"
	"flag"
	"log"
	"time"

	"ai-queryrefine-be/internal/config"
	"ai-queryrefine-be/internal/model"
	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/internal/repository/implementation"
	"ai-queryrefine-be/internal/repository/unitofwork"
	"ai-queryrefine-be/pkg/database"
	"ai-queryrefine-be/pkg/embedding"
	"ai-queryrefine-be/pkg/executor"
	"ai-queryrefine-be/pkg/graphdb"
	"ai-queryrefine-be/pkg/orchestrator"
	"ai-queryrefine-be/pkg/resolutioncache"
	"ai-queryrefine-be/pkg/stages"
	"ai-queryrefine-be/pkg/valuestore"

	"gorm.io/gorm"
)

func main() {
	purge := flag.Duration("purge", 0, "delete cached value mappings older than this (e.g. 720h) and exit")
	indexes := flag.Bool("indexes", false, "create the full-text indexes listed in FULLTEXT_INDEX_FILE on the backend")
	rowQuery := flag.String("index-query", "", "run this read query on the backend and embed its rows for ranking")
	source := flag.String("source", "", "row_embeddings source name for -index-query (default RANK_SOURCE)")
	keyColumn := flag.String("key", "", "key column for -index-query (default RANK_KEY_COLUMN)")
	flag.Parse()

	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)
	defer sysLogger.Sync()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	defer database.Close(db)

	ctx := context.Background()

	switch {
	case *purge > 0:
		runPurge(ctx, db, *purge)
	case *indexes:
		runIndexes(ctx, db, cfg)
	case *rowQuery != "":
		if *source == "" {
			*source = cfg.Refinement.RankSource
		}
		if *keyColumn == "" {
			*keyColumn = cfg.Refinement.RankKeyColumn
		}
		runRowIndex(ctx, db, cfg, sysLogger, *rowQuery, *source, *keyColumn)
	default:
		runMigrate(db)
	}
}

func runMigrate(db *gorm.DB) {
	log.Println("Step 1: Setting up Extensions...")
	if err := database.EnsureExtensions(db, database.RequiredExtensions...); err != nil {
		log.Fatalf("Error: %v", err)
	}

	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.ValueMapping{},
		&model.ConversationTurn{},
		&model.RowEmbedding{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Creating vector index...")
	// cosine distance is what the prioritizer ranks by
	ddl := `CREATE INDEX IF NOT EXISTS idx_row_embeddings_hnsw ON row_embeddings USING hnsw (embedding_value vector_cosine_ops)`
	if err := db.Exec(ddl).Error; err != nil {
		log.Printf("Warn: Failed to create vector index: %v", err)
	}

	log.Println("Success: Database migration completed")
}

func runPurge(ctx context.Context, db *gorm.DB, olderThan time.Duration) {
	cache := resolutioncache.NewRepositoryCache(unitofwork.NewRepositoryFactory(db))
	n, err := cache.Purge(ctx, olderThan)
	if err != nil {
		log.Fatalf("Error: purge failed: %v", err)
	}
	log.Printf("Purged %d value mappings older than %s", n, olderThan)
}

func runIndexes(ctx context.Context, db *gorm.DB, cfg *config.Config) {
	reg, err := valuestore.LoadIndexRegistry(cfg.Refinement.IndexFile)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	var creator valuestore.IndexCreator
	switch cfg.Refinement.Backend {
	case "postgres":
		store := valuestore.NewPostgresStore(db)
		store.TextSearchConfig = cfg.Refinement.TextSearchConfig
		creator = store
	default:
		client := connectGraph(ctx, cfg)
		defer client.Close(ctx)
		creator = valuestore.NewNeo4jStore(client)
	}

	if err := valuestore.EnsureIndexes(ctx, creator, reg); err != nil {
		log.Fatalf("Error: %v", err)
	}
	log.Printf("Ensured %d full-text indexes on %s", reg.Len(), cfg.Refinement.Backend)
}

func runRowIndex(ctx context.Context, db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger, query, source, keyColumn string) {
	if source == "" {
		log.Fatal("Error: -source or RANK_SOURCE is required")
	}

	var exec orchestrator.Executor
	switch cfg.Refinement.Backend {
	case "postgres":
		exec = executor.NewSQLExecutor(unitofwork.NewRepositoryFactory(db), cfg.Refinement.ExecutionTimeout, 0, sysLogger)
	default:
		client := connectGraph(ctx, cfg)
		defer client.Close(ctx)
		exec = executor.NewNeo4jExecutor(client, cfg.Refinement.ExecutionTimeout, 0, sysLogger)
	}

	rows, err := exec.Execute(ctx, query)
	if err != nil {
		log.Fatalf("Error: query failed: %v", err)
	}

	embedder, err := embedding.NewEmbeddingProvider(cfg.Ai.EmbeddingProvider, cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel, cfg.Keys.Jina)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	indexer := stages.NewRowIndexer(embedder, implementation.NewRowEmbeddingRepository(db), sysLogger)
	stored, err := indexer.Index(ctx, source, keyColumn, rows)
	if err != nil {
		log.Fatalf("Error: indexing stopped after %d rows: %v", stored, err)
	}
	log.Printf("Indexed %d of %d rows into source %q", stored, len(rows), source)
}

func connectGraph(ctx context.Context, cfg *config.Config) *graphdb.Client {
	client, err := graphdb.Connect(ctx, graphdb.Neo4jConfig{
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	return client
}
