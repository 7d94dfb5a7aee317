package orchestrator

import (
	"context"

	"ai-queryrefine-be/pkg/events"
)

// PlanVerdict is the planner's output. NeedsRetrieval false routes straight to end.
type PlanVerdict struct {
	Content        string
	NeedsRetrieval bool
	Usage          TokenUsage
}

type Planner interface {
	Plan(ctx context.Context, st *State) (PlanVerdict, error)
}

// GenerationContext is rebuilt on every attempt from the state
type GenerationContext struct {
	Question string
	Plan     string
	// Feedback is the retry signal from the previous retrieval, empty on the first attempt
	Feedback string
	Attempt  int
}

type GeneratedQuery struct {
	Query string
	Usage TokenUsage
}

type QueryGenerator interface {
	Generate(ctx context.Context, gc GenerationContext) (*GeneratedQuery, error)
}

// ValueMapper rewrites literals to canonical stored values
type ValueMapper interface {
	Map(ctx context.Context, query, sessionID, userID string) (string, error)
}

// Executor runs a query in its own scoped transaction
type Executor interface {
	Execute(ctx context.Context, query string) ([]Row, error)
}

// Prioritizer reorders multi-row, multi-column results by relevance
type Prioritizer interface {
	Prioritize(ctx context.Context, st *State, rows []Row) ([]Row, error)
}

// Answerer turns the state into the final user-facing text
type Answerer interface {
	Answer(ctx context.Context, st *State) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// ExecutionError is a failure reported by the store while running a generated query.
// Its message is the store's own, so the generator sees it verbatim on retry.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }

func (e *ExecutionError) Unwrap() error { return e.Err }
