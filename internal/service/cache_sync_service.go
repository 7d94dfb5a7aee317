package service

import (
	"context"
	"fmt"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/events"
	pktNats "ai-queryrefine-be/pkg/nats"
	"ai-queryrefine-be/pkg/resolver"
)

// Warmer is satisfied by *resolutioncache.Layered
type Warmer interface {
	Warm(key resolver.CacheKey, value string)
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler pktNats.EventHandler) error
}

// CacheSyncService copies VALUE_RESOLVED events from other instances into the local cache layer,
// so a session served by several instances is not asked the same question twice.
type CacheSyncService struct {
	subscriber EventSubscriber
	cache      Warmer
	durable    string
	logger     logger.ILogger
}

func NewCacheSyncService(subscriber EventSubscriber, cache Warmer, instanceID string, log logger.ILogger) *CacheSyncService {
	return &CacheSyncService{
		subscriber: subscriber,
		cache:      cache,
		durable:    "resolution-sync-" + instanceID,
		logger:     log,
	}
}

func (s *CacheSyncService) Start(ctx context.Context) error {
	return s.subscriber.Subscribe(ctx, events.TypeValueResolved, s.durable, s.Handle)
}

// Handle warms the cache from one event. Events missing a key field are skipped.
func (s *CacheSyncService) Handle(_ context.Context, event events.Event) error {
	data := event.Payload()
	key := resolver.CacheKey{
		SessionID: str(data["session_id"]),
		Label:     str(data["label"]),
		Property:  str(data["property"]),
		RawValue:  str(data["raw_value"]),
	}
	value := str(data["resolved_value"])

	if key.SessionID == "" || key.Label == "" || key.Property == "" || value == "" {
		s.logger.Debug("CacheSync", "Skipping incomplete event", map[string]interface{}{"event": event.EventType()})
		return nil
	}
	s.cache.Warm(key, value)
	return nil
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
