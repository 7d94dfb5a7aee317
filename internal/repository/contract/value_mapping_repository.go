package contract

import (
	"context"
	"time"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/repository/specification"
)

type ValueMappingRepository interface {
	// Upsert stores the mapping, overwriting the resolved value for an existing key
	Upsert(ctx context.Context, mapping *entity.ValueMapping) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ValueMapping, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
