package mapper

import (
	"time"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type RowEmbeddingMapper struct{}

func NewRowEmbeddingMapper() *RowEmbeddingMapper {
	return &RowEmbeddingMapper{}
}

func (m *RowEmbeddingMapper) ToEntity(e *model.RowEmbedding) *entity.RowEmbedding {
	if e == nil {
		return nil
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.RowEmbedding{
		Id:             e.Id,
		Source:         e.Source,
		RowKey:         e.RowKey,
		Document:       e.Document,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *RowEmbeddingMapper) ToModel(e *entity.RowEmbedding) *model.RowEmbedding {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.RowEmbedding{
		Id:             e.Id,
		Source:         e.Source,
		RowKey:         e.RowKey,
		Document:       e.Document,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *RowEmbeddingMapper) ToModels(embeddings []*entity.RowEmbedding) []*model.RowEmbedding {
	models := make([]*model.RowEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = m.ToModel(e)
	}
	return models
}
