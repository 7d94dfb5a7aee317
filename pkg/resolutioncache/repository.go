package resolutioncache

import (
	"context"
	"fmt"
	"time"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/repository/specification"
	"ai-queryrefine-be/internal/repository/unitofwork"
	"ai-queryrefine-be/pkg/resolver"
)

// RepositoryCache persists resolutions in the value_mappings table
type RepositoryCache struct {
	repoFactory unitofwork.RepositoryFactory
}

var _ resolver.Cache = (*RepositoryCache)(nil)

func NewRepositoryCache(repoFactory unitofwork.RepositoryFactory) *RepositoryCache {
	return &RepositoryCache{repoFactory: repoFactory}
}

func (c *RepositoryCache) Get(ctx context.Context, key resolver.CacheKey) (string, bool, error) {
	uow := c.repoFactory.NewUnitOfWork(ctx)
	mapping, err := uow.ValueMappingRepository().FindOne(ctx, specification.ByResolutionKey{
		SessionID: key.SessionID,
		Label:     key.Label,
		Property:  key.Property,
		RawValue:  key.RawValue,
	})
	if err != nil {
		return "", false, fmt.Errorf("find value mapping: %w", err)
	}
	if mapping == nil {
		return "", false, nil
	}
	return mapping.ResolvedValue, true, nil
}

func (c *RepositoryCache) Put(ctx context.Context, key resolver.CacheKey, value string) error {
	uow := c.repoFactory.NewUnitOfWork(ctx)
	err := uow.ValueMappingRepository().Upsert(ctx, &entity.ValueMapping{
		SessionId:     key.SessionID,
		Label:         key.Label,
		Property:      key.Property,
		RawValue:      key.RawValue,
		ResolvedValue: value,
	})
	if err != nil {
		return fmt.Errorf("upsert value mapping: %w", err)
	}
	return nil
}

// Purge deletes mappings created more than olderThan ago
func (c *RepositoryCache) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	uow := c.repoFactory.NewUnitOfWork(ctx)
	return uow.ValueMappingRepository().DeleteOlderThan(ctx, time.Now().Add(-olderThan))
}
