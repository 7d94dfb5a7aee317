package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/events"
	"ai-queryrefine-be/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Termination is how a request finished
type Termination string

const (
	TerminationAnswered    Termination = "answered"
	TerminationNoRetrieval Termination = "no_retrieval"
)

func failureTermination(kind FailureKind) Termination {
	return Termination(kind)
}

type Result struct {
	Answer      string
	Termination Termination
	// Route lists the stages visited, in order
	Route []Stage
	State *State
}

type Dependencies struct {
	Planner     Planner
	Generator   QueryGenerator
	Mapper      ValueMapper
	Executor    Executor
	Prioritizer Prioritizer // optional, rows keep store order when nil
	PlainAnswer Answerer
	TableAnswer Answerer
	Publisher   EventPublisher // optional
}

type Options struct {
	MaxIterations int
	MaxRows       int
}

// Machine runs plan → generate → retrieve → route for one request at a time.
// It keeps no per-request state, so one Machine serves concurrent sessions.
type Machine struct {
	deps   Dependencies
	router Router
	logger logger.ILogger
	tracer trace.Tracer
}

func NewMachine(deps Dependencies, opts Options, log logger.ILogger) *Machine {
	return &Machine{
		deps:   deps,
		router: NewRouter(opts.MaxIterations, opts.MaxRows),
		logger: log,
		tracer: otel.Tracer("orchestrator"),
	}
}

// stageFailure carries the apology kind for a hard failure
type stageFailure struct {
	kind FailureKind
	err  error
}

func (f *stageFailure) Error() string { return f.err.Error() }
func (f *stageFailure) Unwrap() error { return f.err }

func fail(kind FailureKind, format string, err error) error {
	return &stageFailure{kind: kind, err: fmt.Errorf(format, err)}
}

// Run answers one question. Retry exhaustion is a normal termination carrying an apology;
// hard failures also carry an apology in the Result and return the underlying error.
func (m *Machine) Run(ctx context.Context, sessionID, userID, question string) (*Result, error) {
	ctx, span := m.tracer.Start(ctx, "Orchestrator.Run", trace.WithAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("user_id", userID),
	))
	defer span.End()

	log := m.logger.With(map[string]interface{}{"session_id": sessionID, "user_id": userID})
	st := NewState(sessionID, userID, question)
	res := &Result{State: st}

	stage := StagePlan
	for stage != StageEnd {
		res.Route = append(res.Route, stage)

		next, err := m.step(ctx, log, stage, st, res)
		if err != nil {
			var sf *stageFailure
			kind := FailureInternal
			if errors.As(err, &sf) {
				kind = sf.kind
			}

			span.RecordError(err)
			span.SetStatus(codes.Error, string(kind))
			log.Error("Orchestrator", "Request failed", map[string]interface{}{
				"stage":     string(stage),
				"iteration": st.IterationCount,
				"failure":   string(kind),
				"error":     err.Error(),
			})

			m.terminate(res, kind)
			res.Route = append(res.Route, StageEnd)
			m.finish(ctx, log, res)
			return res, err
		}
		stage = next
	}
	res.Route = append(res.Route, StageEnd)

	span.SetAttributes(
		attribute.Int("iterations", st.IterationCount),
		attribute.String("termination", string(res.Termination)),
	)
	m.finish(ctx, log, res)
	return res, nil
}

func (m *Machine) step(ctx context.Context, log logger.ILogger, stage Stage, st *State, res *Result) (Stage, error) {
	if err := ctx.Err(); err != nil {
		return "", fail(FailureInternal, "request cancelled: %w", err)
	}

	ctx, span := m.tracer.Start(ctx, "Orchestrator."+string(stage), trace.WithAttributes(
		attribute.Int("iteration", st.IterationCount),
	))
	defer span.End()

	switch stage {
	case StagePlan:
		return m.plan(ctx, st, res)
	case StageGenerate:
		return m.generate(ctx, st)
	case StageRetrieve:
		return m.retrieve(ctx, log, st, res)
	case StagePrioritize:
		return m.prioritize(ctx, log, st)
	case StagePlainAnswer:
		return m.answer(ctx, stage, m.deps.PlainAnswer, st, res)
	case StageTableAnswer:
		return m.answer(ctx, stage, m.deps.TableAnswer, st, res)
	}
	return "", fail(FailureInternal, "unknown stage: %w", fmt.Errorf("%q", stage))
}

func (m *Machine) plan(ctx context.Context, st *State, res *Result) (Stage, error) {
	verdict, err := m.deps.Planner.Plan(ctx, st)
	if err != nil {
		return "", fail(FailureInternal, "plan: %w", err)
	}

	st.Plan = verdict.Content
	st.Usage.Add(verdict.Usage)
	st.Append(StagePlan, verdict.Content)

	if !verdict.NeedsRetrieval {
		res.Answer = verdict.Content
		res.Termination = TerminationNoRetrieval
		return StageEnd, nil
	}
	return StageGenerate, nil
}

func (m *Machine) generate(ctx context.Context, st *State) (Stage, error) {
	st.IterationCount++

	gc := GenerationContext{Question: st.Question, Plan: st.Plan, Attempt: st.IterationCount}
	if st.Sender == StageRetrieve {
		gc.Feedback = st.Last().Content
	}

	gen, err := m.deps.Generator.Generate(ctx, gc)
	if err != nil {
		return "", fail(FailureInternal, "generate query: %w", err)
	}
	st.Usage.Add(gen.Usage)

	mapped, err := m.deps.Mapper.Map(ctx, gen.Query, st.SessionID, st.UserID)
	if err != nil {
		return "", fail(FailureResolution, "map query values: %w", err)
	}

	st.Query = mapped
	st.Append(StageGenerate, mapped)
	return StageRetrieve, nil
}

func (m *Machine) retrieve(ctx context.Context, log logger.ILogger, st *State, res *Result) (Stage, error) {
	rows, execErr := m.deps.Executor.Execute(ctx, st.Query)
	if execErr != nil {
		log.Warn("Orchestrator", "Query execution failed", map[string]interface{}{
			"iteration": st.IterationCount,
			"query":     st.Query,
			"error":     execErr.Error(),
		})
	}

	outcome := m.router.Classify(rows, execErr)
	metrics.RecordRetrieval(string(outcome.Class))
	st.Append(StageRetrieve, outcome.Message)
	if outcome.Class == ClassUsable {
		st.Rows = outcome.Rows
	}

	decision := m.router.Route(st.IterationCount, outcome)
	if decision.Next == StageEnd {
		log.Warn("Orchestrator", "Retry ceiling reached", map[string]interface{}{
			"iteration": st.IterationCount,
			"failure":   string(decision.Failure),
		})
		m.terminate(res, decision.Failure)
	}
	return decision.Next, nil
}

func (m *Machine) prioritize(ctx context.Context, log logger.ILogger, st *State) (Stage, error) {
	rows := st.Rows
	if m.deps.Prioritizer != nil {
		ranked, err := m.deps.Prioritizer.Prioritize(ctx, st, rows)
		if err != nil {
			log.Warn("Orchestrator", "Prioritizer failed, keeping store order", map[string]interface{}{"error": err.Error()})
		} else if len(ranked) > 0 {
			rows = ranked
		}
	}

	encoded, err := json.Marshal(rows)
	if err != nil {
		return "", fail(FailureInternal, "encode prioritized rows: %w", err)
	}
	st.Rows = rows
	st.Append(StagePrioritize, string(encoded))
	return StageTableAnswer, nil
}

func (m *Machine) answer(ctx context.Context, stage Stage, answerer Answerer, st *State, res *Result) (Stage, error) {
	text, err := answerer.Answer(ctx, st)
	if err != nil {
		return "", fail(FailureInternal, string(stage)+": %w", err)
	}
	st.Append(stage, text)
	res.Answer = text
	res.Termination = TerminationAnswered
	return StageEnd, nil
}

func (m *Machine) terminate(res *Result, kind FailureKind) {
	res.Answer = Apology(kind)
	res.Termination = failureTermination(kind)
	res.State.Append(StageEnd, res.Answer)
}

func (m *Machine) finish(ctx context.Context, log logger.ILogger, res *Result) {
	st := res.State
	metrics.RecordIterations(st.IterationCount)
	metrics.RecordTermination(string(res.Termination))

	log.Info("Orchestrator", "Request finished", map[string]interface{}{
		"termination": string(res.Termination),
		"iterations":  st.IterationCount,
		"route":       res.Route,
		"tokens":      st.Usage.Total(),
	})

	if m.deps.Publisher == nil {
		return
	}

	eventType := events.TypeQueryTerminated
	if res.Termination == TerminationAnswered || res.Termination == TerminationNoRetrieval {
		eventType = events.TypeQueryAnswered
	}
	evt := events.New(eventType, map[string]interface{}{
		"session_id":  st.SessionID,
		"user_id":     st.UserID,
		"termination": string(res.Termination),
		"iterations":  st.IterationCount,
		"tokens":      st.Usage.Total(),
	})
	if err := m.deps.Publisher.Publish(ctx, evt); err != nil {
		log.Warn("Orchestrator", "Failed to publish completion event", map[string]interface{}{"error": err.Error()})
	}
}
