package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// RowEmbedding is the vector of one stored record, keyed by its source label and row key
type RowEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Source         string          `gorm:"size:128;not null;uniqueIndex:idx_row_embeddings_source_key,priority:1"`
	RowKey         string          `gorm:"size:255;not null;uniqueIndex:idx_row_embeddings_source_key,priority:2"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (RowEmbedding) TableName() string {
	return "row_embeddings"
}
