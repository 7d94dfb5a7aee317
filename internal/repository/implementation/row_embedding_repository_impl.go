package implementation

import (
	"context"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/mapper"
	"ai-queryrefine-be/internal/model"
	"ai-queryrefine-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RowEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RowEmbeddingMapper
}

func NewRowEmbeddingRepository(db *gorm.DB) contract.RowEmbeddingRepository {
	return &RowEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewRowEmbeddingMapper(),
	}
}

func (r *RowEmbeddingRepositoryImpl) Upsert(ctx context.Context, embeddings []*entity.RowEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := r.mapper.ToModels(embeddings)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "row_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "embedding_value", "updated_at"}),
		}).
		Create(models).Error
}

func (r *RowEmbeddingRepositoryImpl) DeleteBySource(ctx context.Context, source string) error {
	return r.db.WithContext(ctx).Where("source = ?", source).Delete(&model.RowEmbedding{}).Error
}

func (r *RowEmbeddingRepositoryImpl) Count(ctx context.Context, source string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.RowEmbedding{}).Where("source = ?", source).Count(&count).Error
	return count, err
}

func (r *RowEmbeddingRepositoryImpl) SearchSimilarKeys(ctx context.Context, source string, embedding []float32, keys []string, threshold float64) ([]*contract.ScoredRowKey, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	// Cosine distance in pgvector is: 1 - cosine_similarity
	type result struct {
		RowKey     string
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("row_embeddings").
		Select("row_key, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("source = ?", source).
		Where("row_key IN ?", keys).
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredRowKey, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredRowKey{RowKey: res.RowKey, Similarity: res.Similarity}
	}
	return scored, nil
}
