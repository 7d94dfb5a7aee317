package service

import (
	"context"
	"testing"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/events"
	pktNats "ai-queryrefine-be/pkg/nats"
	"ai-queryrefine-be/pkg/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWarmer struct {
	warmed map[resolver.CacheKey]string
}

func (w *recordingWarmer) Warm(key resolver.CacheKey, value string) {
	if w.warmed == nil {
		w.warmed = map[resolver.CacheKey]string{}
	}
	w.warmed[key] = value
}

type fakeSubscriber struct {
	eventType string
	durable   string
	handler   pktNats.EventHandler
}

func (f *fakeSubscriber) Subscribe(_ context.Context, eventType, durableName string, handler pktNats.EventHandler) error {
	f.eventType, f.durable, f.handler = eventType, durableName, handler
	return nil
}

func TestCacheSyncService_WarmsFromEvents(t *testing.T) {
	sub := &fakeSubscriber{}
	warmer := &recordingWarmer{}
	svc := NewCacheSyncService(sub, warmer, "node-a", logger.NewNopLogger())

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, events.TypeValueResolved, sub.eventType)
	assert.Equal(t, "resolution-sync-node-a", sub.durable)

	tests := []struct {
		name   string
		data   map[string]interface{}
		warmed bool
	}{
		{
			name: "complete event",
			data: map[string]interface{}{
				"session_id": "s1", "label": "Company", "property": "name",
				"raw_value": "bamboo hr", "resolved_value": "BambooHR",
			},
			warmed: true,
		},
		{
			name:   "missing session",
			data:   map[string]interface{}{"label": "Company", "property": "name", "raw_value": "x", "resolved_value": "X"},
			warmed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warmer.warmed = nil
			err := sub.handler(context.Background(), events.New(events.TypeValueResolved, tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.warmed, len(warmer.warmed) == 1)
		})
	}

	key := resolver.CacheKey{SessionID: "s1", Label: "Company", Property: "name", RawValue: "bamboo hr"}
	require.NoError(t, svc.Handle(context.Background(), events.New(events.TypeValueResolved, map[string]interface{}{
		"session_id": "s1", "label": "Company", "property": "name", "raw_value": "bamboo hr", "resolved_value": "BambooHR",
	})))
	assert.Equal(t, "BambooHR", warmer.warmed[key])
}
