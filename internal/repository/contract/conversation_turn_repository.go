package contract

import (
	"context"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/repository/specification"
)

type ConversationTurnRepository interface {
	CreateBulk(ctx context.Context, turns []*entity.ConversationTurn) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationTurn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
