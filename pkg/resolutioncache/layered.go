package resolutioncache

import (
	"context"

	"ai-queryrefine-be/internal/repository/memory"
	"ai-queryrefine-be/pkg/resolver"
)

// Layered fronts a durable cache with a process-local one.
// Writes go to the durable cache first so a failed write is never visible locally.
type Layered struct {
	local   *memory.ResolutionRepository
	durable resolver.Cache
}

var _ resolver.Cache = (*Layered)(nil)

func NewLayered(local *memory.ResolutionRepository, durable resolver.Cache) *Layered {
	return &Layered{local: local, durable: durable}
}

func (c *Layered) Get(ctx context.Context, key resolver.CacheKey) (string, bool, error) {
	k := flatKey(key)
	if v, ok := c.local.Get(k); ok {
		return v, true, nil
	}
	if c.durable == nil {
		return "", false, nil
	}

	v, ok, err := c.durable.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	c.local.Save(k, v)
	return v, true, nil
}

func (c *Layered) Put(ctx context.Context, key resolver.CacheKey, value string) error {
	if c.durable != nil {
		if err := c.durable.Put(ctx, key, value); err != nil {
			return err
		}
	}
	c.local.Save(flatKey(key), value)
	return nil
}

// ForgetLocal drops the process-local entries of one session
func (c *Layered) ForgetLocal(sessionID string) int {
	return c.local.DeletePrefix(sessionPrefix(sessionID))
}

// Warm stores a resolution made elsewhere in the process-local layer only
func (c *Layered) Warm(key resolver.CacheKey, value string) {
	c.local.Save(flatKey(key), value)
}
