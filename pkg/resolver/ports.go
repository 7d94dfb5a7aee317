package resolver

import (
	"context"
	"time"
)

// ValueStore is the read side of the backing store used for canonicalisation
type ValueStore interface {
	// ExactMatch reports whether an entity of target.Label has target.Property equal to value
	ExactMatch(ctx context.Context, target Target, value string) (bool, error)

	// FulltextSearch queries a full-text index and returns the indexed property values
	FulltextSearch(ctx context.Context, indexName string, target Target, term string, limit int) ([]string, error)

	// SimilaritySearch ranks non-null property values by edit-distance similarity to term.
	// A nil minScore means no floor.
	SimilaritySearch(ctx context.Context, target Target, term string, minScore *float64, limit int) ([]string, error)
}

// Cache stores session-scoped resolutions
type Cache interface {
	Get(ctx context.Context, key CacheKey) (string, bool, error)
	Put(ctx context.Context, key CacheKey, value string) error
}

// IndexLookup tells the resolver whether a full-text index covers a target
type IndexLookup interface {
	IndexFor(target Target) (string, bool)
}

// ChoiceKind is how a disambiguation prompt was answered
type ChoiceKind string

const (
	ChoiceSelected ChoiceKind = "selected"
	ChoiceNone     ChoiceKind = "none"
	ChoiceTimeout  ChoiceKind = "timeout"
)

// DisambiguationRequest asks a human to pick one candidate
type DisambiguationRequest struct {
	SessionID  string
	UserID     string
	Prompt     string
	Candidates []string
	AllowNone  bool
	Timeout    time.Duration
}

type Choice struct {
	Kind  ChoiceKind
	Value string
}

// Disambiguator is the request/response port to the UI layer.
// Implementations must honour ctx cancellation and req.Timeout.
type Disambiguator interface {
	Ask(ctx context.Context, req DisambiguationRequest) (Choice, error)
}

// TraceSink receives a record for every non-exact, non-cached resolution
type TraceSink interface {
	Record(ctx context.Context, rec TraceRecord)
}

// MultiSink fans a record out to several sinks
type MultiSink []TraceSink

func (m MultiSink) Record(ctx context.Context, rec TraceRecord) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, rec)
		}
	}
}
