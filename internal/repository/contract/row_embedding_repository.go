package contract

import (
	"context"

	"ai-queryrefine-be/internal/entity"
)

// ScoredRowKey is a row key with its cosine similarity to the query vector
type ScoredRowKey struct {
	RowKey     string
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type RowEmbeddingRepository interface {
	// Upsert replaces embeddings that share source and row key
	Upsert(ctx context.Context, embeddings []*entity.RowEmbedding) error
	DeleteBySource(ctx context.Context, source string) error
	Count(ctx context.Context, source string) (int64, error)
	// SearchSimilarKeys ranks the given keys of one source, dropping those under threshold
	SearchSimilarKeys(ctx context.Context, source string, embedding []float32, keys []string, threshold float64) ([]*ScoredRowKey, error)
}
