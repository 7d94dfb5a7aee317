package service

import (
	"context"
	"encoding/json"

	"ai-queryrefine-be/internal/dto"
	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/internal/repository/unitofwork"
	"ai-queryrefine-be/pkg/embedding"
	"ai-queryrefine-be/pkg/orchestrator"
	"ai-queryrefine-be/pkg/stages"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService embeds rows queued by the query service into row_embeddings
type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IndexRowsMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal index message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // a malformed payload never succeeds
		return
	}
	if payload.Source == "" || payload.KeyColumn == "" || len(payload.Rows) == 0 {
		msg.Ack()
		return
	}

	rows := make([]orchestrator.Row, len(payload.Rows))
	for i, r := range payload.Rows {
		rows[i] = r
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	indexer := stages.NewRowIndexer(cs.embeddingProvider, uow.RowEmbeddingRepository(), cs.logger)

	stored, err := indexer.Index(ctx, payload.Source, payload.KeyColumn, rows)
	if err != nil {
		cs.logger.Error("Consumer", "Failed to index rows", map[string]interface{}{
			"source": payload.Source,
			"stored": stored,
			"error":  err.Error(),
		})
		// the next answer returning these rows queues them again
		msg.Ack()
		return
	}

	cs.logger.Info("Consumer", "Rows indexed", map[string]interface{}{
		"source": payload.Source,
		"rows":   len(rows),
		"stored": stored,
	})
	msg.Ack()
}
