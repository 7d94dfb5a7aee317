package resolver

import "fmt"

// EntityKind tells whether a literal belongs to a node or a relationship
type EntityKind string

const (
	KindNode         EntityKind = "node"
	KindRelationship EntityKind = "relationship"
)

// MatchContext records where in the query a literal was found
type MatchContext string

const (
	ContextPattern   MatchContext = "pattern-literal"
	ContextPredicate MatchContext = "predicate-literal"
)

// Method is the escalation stage that produced a resolved value
type Method string

const (
	MethodExact                 Method = "exact"
	MethodCached                Method = "cached"
	MethodFulltext              Method = "fulltext"
	MethodSimilarityThresholded Method = "similarity-thresholded"
	MethodSimilarityForced      Method = "similarity-forced"
)

// Target identifies the stored attribute a literal is compared against
type Target struct {
	Label    string
	Property string
	Kind     EntityKind
}

func (t Target) String() string {
	return fmt.Sprintf("%s(%s).%s", t.Kind, t.Label, t.Property)
}

// ResolutionRequest is one literal occurrence inside a generated query.
// ResolvedValue and Method are filled by Resolve.
type ResolutionRequest struct {
	Variable     string
	Label        string
	Property     string
	RawValue     string
	EntityKind   EntityKind
	MatchContext MatchContext
	SessionID    string
	UserID       string

	ResolvedValue string
	Method        Method
}

func (r *ResolutionRequest) Target() Target {
	return Target{Label: r.Label, Property: r.Property, Kind: r.EntityKind}
}

func (r *ResolutionRequest) CacheKey() CacheKey {
	return CacheKey{
		SessionID: r.SessionID,
		Label:     r.Label,
		Property:  r.Property,
		RawValue:  r.RawValue,
	}
}

// ResolutionOutcome is the canonical value chosen for a request
type ResolutionOutcome struct {
	ResolvedValue string
	Method        Method
}

// Changed reports whether the literal needs rewriting
func (o ResolutionOutcome) Changed(raw string) bool {
	return o.ResolvedValue != raw
}

// CacheKey scopes cached resolutions to one chat session, never to a user
type CacheKey struct {
	SessionID string
	Label     string
	Property  string
	RawValue  string
}

// TraceRecord pairs a literal with the value it was resolved to
type TraceRecord struct {
	SessionID     string
	UserID        string
	Label         string
	Property      string
	RawValue      string
	ResolvedValue string
	Method        Method
	MatchContext  MatchContext
}
