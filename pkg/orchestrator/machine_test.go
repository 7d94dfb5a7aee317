package orchestrator

import (
	"context"
	"errors"
	"testing"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakePlanner struct {
	content string
	err     error
}

func (p *fakePlanner) Plan(_ context.Context, _ *State) (PlanVerdict, error) {
	if p.err != nil {
		return PlanVerdict{}, p.err
	}
	v := VerdictFromText(p.content)
	v.Usage = TokenUsage{PromptTokens: 10, CompletionTokens: 5}
	return v, nil
}

type fakeGenerator struct {
	contexts []GenerationContext
}

func (g *fakeGenerator) Generate(_ context.Context, gc GenerationContext) (*GeneratedQuery, error) {
	g.contexts = append(g.contexts, gc)
	return &GeneratedQuery{Query: "MATCH (c:Company) RETURN c.name", Usage: TokenUsage{PromptTokens: 1, CompletionTokens: 1}}, nil
}

type fakeMapper struct {
	err   error
	calls int
}

func (m *fakeMapper) Map(_ context.Context, query, _, _ string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return query, nil
}

// scriptedExecutor returns results in order, repeating the last one
type scriptedExecutor struct {
	results []execResult
	calls   int
}

type execResult struct {
	rows []Row
	err  error
}

func (e *scriptedExecutor) Execute(_ context.Context, _ string) ([]Row, error) {
	i := e.calls
	if i >= len(e.results) {
		i = len(e.results) - 1
	}
	e.calls++
	return e.results[i].rows, e.results[i].err
}

type fakePrioritizer struct {
	err error
}

func (p *fakePrioritizer) Prioritize(_ context.Context, _ *State, rows []Row) ([]Row, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]Row, len(rows))
	for i := range rows {
		out[i] = rows[len(rows)-1-i]
	}
	return out, nil
}

type fakeAnswerer struct {
	text string
	err  error
	seen []Row
}

func (a *fakeAnswerer) Answer(_ context.Context, st *State) (string, error) {
	a.seen = st.Rows
	return a.text, a.err
}

type fakePublisher struct {
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

type harness struct {
	planner   *fakePlanner
	generator *fakeGenerator
	mapper    *fakeMapper
	executor  *scriptedExecutor
	plain     *fakeAnswerer
	table     *fakeAnswerer
	publisher *fakePublisher
	machine   *Machine
}

func newHarness(results ...execResult) *harness {
	h := &harness{
		planner:   &fakePlanner{content: "1. Look up the company"},
		generator: &fakeGenerator{},
		mapper:    &fakeMapper{},
		executor:  &scriptedExecutor{results: results},
		plain:     &fakeAnswerer{text: "plain answer"},
		table:     &fakeAnswerer{text: "table answer"},
		publisher: &fakePublisher{},
	}
	h.machine = NewMachine(Dependencies{
		Planner:     h.planner,
		Generator:   h.generator,
		Mapper:      h.mapper,
		Executor:    h.executor,
		Prioritizer: &fakePrioritizer{},
		PlainAnswer: h.plain,
		TableAnswer: h.table,
		Publisher:   h.publisher,
	}, Options{}, logger.NewNopLogger())
	return h
}

// --- tests ---

func TestMachine_TerminatesAfterTwelveRegenerations(t *testing.T) {
	tests := []struct {
		name string
		res  execResult
		want FailureKind
	}{
		{"empty", execResult{}, FailureEmpty},
		{"oversized", execResult{rows: rowsOf(101, 1)}, FailureOversized},
		{"execution error", execResult{err: errors.New("syntax error near RETURN")}, FailureExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.res)

			res, err := h.machine.Run(context.Background(), "s1", "u1", "Which companies are in Texas?")
			require.NoError(t, err)

			assert.Equal(t, 13, res.State.IterationCount)
			assert.Len(t, h.generator.contexts, 13)
			assert.Equal(t, 13, h.executor.calls)
			assert.Equal(t, Termination(tt.want), res.Termination)
			assert.Equal(t, Apology(tt.want), res.Answer)
			assert.NotContains(t, res.Answer, "syntax error")
			assert.Equal(t, StageEnd, res.Route[len(res.Route)-1])
			assert.Equal(t, StageEnd, res.State.Sender)

			require.Len(t, h.publisher.events, 1)
			assert.Equal(t, events.TypeQueryTerminated, h.publisher.events[0].EventType())
		})
	}
}

func TestMachine_RetryFeedbackReachesGenerator(t *testing.T) {
	h := newHarness(
		execResult{err: errors.New("Unknown property nmae")},
		execResult{rows: rowsOf(1, 2)},
	)

	res, err := h.machine.Run(context.Background(), "s1", "u1", "What is BambooHR's city?")
	require.NoError(t, err)

	require.Len(t, h.generator.contexts, 2)
	first, second := h.generator.contexts[0], h.generator.contexts[1]
	assert.Empty(t, first.Feedback)
	assert.Equal(t, "1. Look up the company", first.Plan)
	assert.Equal(t, 1, first.Attempt)
	assert.Contains(t, second.Feedback, "Unknown property nmae")
	assert.Equal(t, 2, second.Attempt)

	assert.Equal(t, TerminationAnswered, res.Termination)
	assert.Equal(t, "plain answer", res.Answer)
	assert.Equal(t, []Stage{StagePlan, StageGenerate, StageRetrieve, StageGenerate, StageRetrieve, StagePlainAnswer, StageEnd}, res.Route)
	assert.Equal(t, 2, res.State.IterationCount)
}

func TestMachine_TabularResultGoesThroughPrioritizer(t *testing.T) {
	rows := rowsOf(3, 4)
	h := newHarness(execResult{rows: rows})

	res, err := h.machine.Run(context.Background(), "s1", "u1", "List deals")
	require.NoError(t, err)

	assert.Equal(t, []Stage{StagePlan, StageGenerate, StageRetrieve, StagePrioritize, StageTableAnswer, StageEnd}, res.Route)
	assert.Equal(t, "table answer", res.Answer)
	require.Len(t, h.table.seen, 3)
	assert.Equal(t, rows[2], h.table.seen[0], "answerer sees prioritized order")
	assert.Equal(t, events.TypeQueryAnswered, h.publisher.events[0].EventType())
}

func TestMachine_PrioritizerFailureKeepsStoreOrder(t *testing.T) {
	rows := rowsOf(2, 3)
	h := newHarness(execResult{rows: rows})
	h.machine.deps.Prioritizer = &fakePrioritizer{err: errors.New("vector store down")}

	res, err := h.machine.Run(context.Background(), "s1", "u1", "List deals")
	require.NoError(t, err)
	assert.Equal(t, TerminationAnswered, res.Termination)
	assert.Equal(t, rows[0], h.table.seen[0])
}

func TestMachine_PlanWithoutRetrievalEnds(t *testing.T) {
	h := newHarness(execResult{rows: rowsOf(1, 1)})
	h.planner.content = "No rational plan is required. Hi there!"

	res, err := h.machine.Run(context.Background(), "s1", "u1", "hello")
	require.NoError(t, err)

	assert.Equal(t, []Stage{StagePlan, StageEnd}, res.Route)
	assert.Equal(t, TerminationNoRetrieval, res.Termination)
	assert.Empty(t, h.generator.contexts)
	assert.Zero(t, h.executor.calls)
	assert.Equal(t, 15, res.State.Usage.Total())
}

func TestMachine_HardFailures(t *testing.T) {
	t.Run("mapping failure is not retried", func(t *testing.T) {
		h := newHarness(execResult{rows: rowsOf(1, 1)})
		mapErr := errors.New("resolution exhausted")
		h.mapper.err = mapErr

		res, err := h.machine.Run(context.Background(), "s1", "u1", "q")
		assert.ErrorIs(t, err, mapErr)
		assert.Equal(t, 1, h.mapper.calls)
		assert.Zero(t, h.executor.calls)
		assert.Equal(t, Termination(FailureResolution), res.Termination)
		assert.Equal(t, Apology(FailureResolution), res.Answer)
		assert.NotContains(t, res.Answer, "exhausted")
	})

	t.Run("planner failure", func(t *testing.T) {
		h := newHarness(execResult{})
		h.planner.err = errors.New("llm timeout")

		res, err := h.machine.Run(context.Background(), "s1", "u1", "q")
		assert.Error(t, err)
		assert.Equal(t, Apology(FailureInternal), res.Answer)
		assert.Equal(t, []Stage{StagePlan, StageEnd}, res.Route)
	})

	t.Run("answerer failure", func(t *testing.T) {
		h := newHarness(execResult{rows: rowsOf(1, 1)})
		h.plain.err = errors.New("llm down")

		res, err := h.machine.Run(context.Background(), "s1", "u1", "q")
		assert.Error(t, err)
		assert.Equal(t, Termination(FailureInternal), res.Termination)
	})

	t.Run("cancelled context", func(t *testing.T) {
		h := newHarness(execResult{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.machine.Run(ctx, "s1", "u1", "q")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestState_AppendTracksSender(t *testing.T) {
	st := NewState("s", "u", "question")
	assert.Equal(t, StageUser, st.Sender)

	st.Append(StagePlan, "plan")
	assert.Equal(t, StagePlan, st.Sender)
	assert.Equal(t, "plan", st.Last().Content)
	assert.Len(t, st.Messages, 2)
}
