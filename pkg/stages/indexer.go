package stages

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/embedding"
	"ai-queryrefine-be/pkg/orchestrator"
)

const indexBatchSize = 32

type RowWriter interface {
	Upsert(ctx context.Context, embeddings []*entity.RowEmbedding) error
}

// RowIndexer embeds rows so the prioritizer can rank them later
type RowIndexer struct {
	embedder embedding.EmbeddingProvider
	writer   RowWriter
	logger   logger.ILogger
}

func NewRowIndexer(embedder embedding.EmbeddingProvider, writer RowWriter, log logger.ILogger) *RowIndexer {
	return &RowIndexer{embedder: embedder, writer: writer, logger: log}
}

// Index stores one embedding per distinct key. The document is every non-key column as "name: value".
func (ix *RowIndexer) Index(ctx context.Context, source, keyColumn string, rows []orchestrator.Row) (int, error) {
	pending := make([]*entity.RowEmbedding, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		key := keyOf(row, keyColumn)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		pending = append(pending, &entity.RowEmbedding{
			Source:   source,
			RowKey:   key,
			Document: RowDocument(row, keyColumn),
		})
	}

	stored := 0
	for start := 0; start < len(pending); start += indexBatchSize {
		end := min(start+indexBatchSize, len(pending))
		batch := pending[start:end]

		docs := make([]string, len(batch))
		for i, e := range batch {
			docs[i] = e.Document
		}
		vecs, err := ix.embedder.EmbedBatch(ctx, docs)
		if err != nil {
			return stored, fmt.Errorf("embed rows %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(batch) {
			return stored, fmt.Errorf("embed rows %d-%d: got %d vectors", start, end, len(vecs))
		}
		for i := range batch {
			batch[i].EmbeddingValue = vecs[i]
		}

		if err := ix.writer.Upsert(ctx, batch); err != nil {
			return stored, fmt.Errorf("store row embeddings: %w", err)
		}
		stored += len(batch)
	}

	ix.logger.Info("RowIndexer", "Rows indexed", map[string]interface{}{
		"source": source,
		"rows":   stored,
	})
	return stored, nil
}

func RowDocument(row orchestrator.Row, keyColumn string) string {
	columns := make([]string, 0, len(row))
	for col := range row {
		if col != keyColumn {
			columns = append(columns, col)
		}
	}
	sort.Strings(columns)

	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		if v := row[col]; v != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", col, v))
		}
	}
	return strings.Join(parts, "\n")
}
