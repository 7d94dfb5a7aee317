package unitofwork

import (
	"context"

	"ai-queryrefine-be/internal/repository/contract"

	"gorm.io/gorm"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	// DB is the active transaction, or the base handle outside one
	DB() *gorm.DB

	ValueMappingRepository() contract.ValueMappingRepository
	ConversationTurnRepository() contract.ConversationTurnRepository
	RowEmbeddingRepository() contract.RowEmbeddingRepository
}
