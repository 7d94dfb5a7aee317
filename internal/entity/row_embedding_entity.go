package entity

import (
	"time"

	"github.com/google/uuid"
)

type RowEmbedding struct {
	Id             uuid.UUID
	Source         string
	RowKey         string
	Document       string
	EmbeddingValue []float32
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}
