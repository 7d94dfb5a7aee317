package memory

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultResolutionTTL = 1 * time.Hour

// ResolutionRepository is a process-local store of resolved values keyed by a session-prefixed string
type ResolutionRepository struct {
	cache *cache.Cache
}

func NewResolutionRepository(ttl time.Duration) *ResolutionRepository {
	if ttl <= 0 {
		ttl = defaultResolutionTTL
	}
	// expired items are purged every 10 minutes
	c := cache.New(ttl, 10*time.Minute)
	return &ResolutionRepository{
		cache: c,
	}
}

func (r *ResolutionRepository) Save(key, value string) {
	r.cache.Set(key, value, cache.DefaultExpiration)
}

func (r *ResolutionRepository) Get(key string) (string, bool) {
	if x, found := r.cache.Get(key); found {
		return x.(string), true
	}
	return "", false
}

func (r *ResolutionRepository) Delete(key string) {
	r.cache.Delete(key)
}

// DeletePrefix drops every key starting with prefix and returns how many were removed
func (r *ResolutionRepository) DeletePrefix(prefix string) int {
	removed := 0
	for k := range r.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			r.cache.Delete(k)
			removed++
		}
	}
	return removed
}

func (r *ResolutionRepository) Len() int {
	return r.cache.ItemCount()
}
