package resolutioncache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"ai-queryrefine-be/internal/repository/memory"
	"ai-queryrefine-be/pkg/resolver"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	data   map[resolver.CacheKey]string
	gets   int
	putErr error
	getErr error
}

func newMapCache() *mapCache {
	return &mapCache{data: map[resolver.CacheKey]string{}}
}

func (m *mapCache) Get(_ context.Context, key resolver.CacheKey) (string, bool, error) {
	m.gets++
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Put(_ context.Context, key resolver.CacheKey, value string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = value
	return nil
}

func key(session, raw string) resolver.CacheKey {
	return resolver.CacheKey{SessionID: session, Label: "Company", Property: "name", RawValue: raw}
}

func TestLayered_ReadThroughAndWriteThrough(t *testing.T) {
	ctx := context.Background()
	durable := newMapCache()
	durable.data[key("s1", "acme")] = "Acme Corp"
	c := NewLayered(memory.NewResolutionRepository(time.Minute), durable)

	v, ok, err := c.Get(ctx, key("s1", "acme"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Acme Corp", v)

	_, _, _ = c.Get(ctx, key("s1", "acme"))
	assert.Equal(t, 1, durable.gets, "second read is served locally")

	require.NoError(t, c.Put(ctx, key("s1", "bmbo"), "BambooHR"))
	assert.Equal(t, "BambooHR", durable.data[key("s1", "bmbo")])

	_, ok, err = c.Get(ctx, key("s2", "acme"))
	require.NoError(t, err)
	assert.False(t, ok, "entries are scoped to their session")
}

func TestLayered_Errors(t *testing.T) {
	ctx := context.Background()
	durable := newMapCache()
	durable.putErr = errors.New("redis down")
	local := memory.NewResolutionRepository(time.Minute)
	c := NewLayered(local, durable)

	assert.Error(t, c.Put(ctx, key("s1", "acme"), "Acme Corp"))
	assert.Zero(t, local.Len(), "failed durable write is not cached locally")

	durable.getErr = errors.New("redis down")
	_, _, err := c.Get(ctx, key("s1", "acme"))
	assert.Error(t, err)
}

func TestLayered_LocalOnlyAndForget(t *testing.T) {
	ctx := context.Background()
	c := NewLayered(memory.NewResolutionRepository(time.Minute), nil)

	require.NoError(t, c.Put(ctx, key("s1", "a"), "A"))
	require.NoError(t, c.Put(ctx, key("s1", "b"), "B"))
	require.NoError(t, c.Put(ctx, key("s10", "a"), "A"))

	assert.Equal(t, 2, c.ForgetLocal("s1"))
	_, ok, _ := c.Get(ctx, key("s10", "a"))
	assert.True(t, ok, "prefix is delimited so s10 survives")
}

func TestField_SeparatesComponents(t *testing.T) {
	a := resolver.CacheKey{SessionID: "s", Label: "ab", Property: "c", RawValue: "d"}
	b := resolver.CacheKey{SessionID: "s", Label: "a", Property: "bc", RawValue: "d"}
	assert.NotEqual(t, field(a), field(b))
	assert.Equal(t, "valuemap:s", redisKey("s"))
}

func TestRedisCache_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping redis cache test")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()

	ctx := context.Background()
	session := "test-" + uuid.NewString()
	c := NewRedisCache(client, time.Minute)
	defer c.Forget(ctx, session)

	_, ok, err := c.Get(ctx, key(session, "acme"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, key(session, "acme"), "Acme Corp"))
	v, ok, err := c.Get(ctx, key(session, "acme"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Acme Corp", v)

	ttl, err := client.TTL(ctx, redisKey(session)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestLayered_WarmSkipsDurableLayer(t *testing.T) {
	ctx := context.Background()
	durable := newMapCache()
	c := NewLayered(memory.NewResolutionRepository(time.Minute), durable)

	c.Warm(key("s1", "acme"), "Acme Corp")
	assert.Empty(t, durable.data)

	v, ok, err := c.Get(ctx, key("s1", "acme"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Acme Corp", v)
	assert.Zero(t, durable.gets)
}
