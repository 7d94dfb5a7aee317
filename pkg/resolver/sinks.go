package resolver

import (
	"context"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/events"
)

// LogSink writes trace records to the structured log
type LogSink struct {
	logger logger.ILogger
}

func NewLogSink(log logger.ILogger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Record(_ context.Context, rec TraceRecord) {
	s.logger.Info("ValueMapper", "Value mapped", map[string]interface{}{
		"session_id":     rec.SessionID,
		"user_id":        rec.UserID,
		"label":          rec.Label,
		"property":       rec.Property,
		"raw_value":      rec.RawValue,
		"resolved_value": rec.ResolvedValue,
		"method":         string(rec.Method),
		"match_context":  string(rec.MatchContext),
	})
}

// EventPublisher is satisfied by the NATS publisher
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// EventSink publishes VALUE_RESOLVED events to the bus
type EventSink struct {
	publisher EventPublisher
	logger    logger.ILogger
}

func NewEventSink(publisher EventPublisher, log logger.ILogger) *EventSink {
	return &EventSink{publisher: publisher, logger: log}
}

func (s *EventSink) Record(ctx context.Context, rec TraceRecord) {
	if s.publisher == nil {
		return
	}

	evt := events.New(events.TypeValueResolved, map[string]interface{}{
		"session_id":     rec.SessionID,
		"user_id":        rec.UserID,
		"label":          rec.Label,
		"property":       rec.Property,
		"raw_value":      rec.RawValue,
		"resolved_value": rec.ResolvedValue,
		"method":         string(rec.Method),
	})

	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("ValueMapper", "Failed to publish VALUE_RESOLVED event", map[string]interface{}{"error": err.Error()})
	}
}
