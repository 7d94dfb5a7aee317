package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultCandidateLimit        = 4
	DefaultSimilarityFloor       = 0.3
	DefaultDisambiguationTimeout = 120 * time.Second
)

type Options struct {
	CandidateLimit        int
	SimilarityFloor       float64
	DisambiguationTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		CandidateLimit:        DefaultCandidateLimit,
		SimilarityFloor:       DefaultSimilarityFloor,
		DisambiguationTimeout: DefaultDisambiguationTimeout,
	}
}

// Resolver canonicalises literal values using a fixed escalation policy:
// exact match, session cache, full-text, thresholded similarity, forced similarity.
type Resolver struct {
	store   ValueStore
	cache   Cache
	indexes IndexLookup
	ui      Disambiguator
	sink    TraceSink
	logger  logger.ILogger
	opts    Options
	tracer  trace.Tracer
}

func NewResolver(
	store ValueStore,
	cache Cache,
	indexes IndexLookup,
	ui Disambiguator,
	sink TraceSink,
	log logger.ILogger,
	opts Options,
) *Resolver {
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = DefaultCandidateLimit
	}
	if opts.DisambiguationTimeout <= 0 {
		opts.DisambiguationTimeout = DefaultDisambiguationTimeout
	}
	return &Resolver{
		store:   store,
		cache:   cache,
		indexes: indexes,
		ui:      ui,
		sink:    sink,
		logger:  log,
		opts:    opts,
		tracer:  otel.Tracer("resolver"),
	}
}

// Resolve fills req.ResolvedValue and req.Method and returns the outcome
func (r *Resolver) Resolve(ctx context.Context, req *ResolutionRequest) (*ResolutionOutcome, error) {
	ctx, span := r.tracer.Start(ctx, "Resolver.Resolve", trace.WithAttributes(
		attribute.String("label", req.Label),
		attribute.String("property", req.Property),
		attribute.String("match_context", string(req.MatchContext)),
	))
	defer span.End()

	outcome, err := r.escalate(ctx, req)
	if err != nil {
		span.RecordError(err)
		r.logger.Error("Resolver", "Value resolution failed", map[string]interface{}{
			"session_id": req.SessionID,
			"user_id":    req.UserID,
			"label":      req.Label,
			"property":   req.Property,
			"raw_value":  req.RawValue,
			"error":      err.Error(),
		})
		return nil, err
	}

	req.ResolvedValue = outcome.ResolvedValue
	req.Method = outcome.Method
	span.SetAttributes(attribute.String("method", string(outcome.Method)))
	metrics.RecordResolution(string(outcome.Method))

	if outcome.Method != MethodExact && outcome.Method != MethodCached && r.sink != nil {
		r.sink.Record(ctx, TraceRecord{
			SessionID:     req.SessionID,
			UserID:        req.UserID,
			Label:         req.Label,
			Property:      req.Property,
			RawValue:      req.RawValue,
			ResolvedValue: outcome.ResolvedValue,
			Method:        outcome.Method,
			MatchContext:  req.MatchContext,
		})
	}
	return outcome, nil
}

func (r *Resolver) escalate(ctx context.Context, req *ResolutionRequest) (*ResolutionOutcome, error) {
	target := req.Target()

	// 1. exact
	found, err := r.store.ExactMatch(ctx, target, req.RawValue)
	if err != nil {
		return nil, fmt.Errorf("exact match: %w", err)
	}
	if found {
		return &ResolutionOutcome{ResolvedValue: req.RawValue, Method: MethodExact}, nil
	}

	// 2. session cache
	cached, ok, err := r.cache.Get(ctx, req.CacheKey())
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if ok {
		return &ResolutionOutcome{ResolvedValue: cached, Method: MethodCached}, nil
	}

	prompt := fmt.Sprintf("Did you mean (%s's %s):", req.Label, req.Property)

	// 3. full-text
	if r.indexes != nil {
		if indexName, ok := r.indexes.IndexFor(target); ok {
			candidates, err := r.store.FulltextSearch(ctx, indexName, target, req.RawValue, r.opts.CandidateLimit)
			if err != nil {
				return nil, fmt.Errorf("fulltext search on %s: %w", indexName, err)
			}
			if out, err := r.offer(ctx, req, prompt, candidates, MethodFulltext); out != nil || err != nil {
				return out, err
			}
		}
	}

	// 4. thresholded similarity
	floor := r.opts.SimilarityFloor
	candidates, err := r.store.SimilaritySearch(ctx, target, req.RawValue, &floor, r.opts.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("thresholded similarity search: %w", err)
	}
	if out, err := r.offer(ctx, req, prompt, candidates, MethodSimilarityThresholded); out != nil || err != nil {
		return out, err
	}

	// 5. unrestricted similarity, forced choice
	candidates, err = r.store.SimilaritySearch(ctx, target, req.RawValue, nil, r.opts.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("unrestricted similarity search: %w", err)
	}
	candidates = dedupe(candidates)
	if len(candidates) == 0 {
		return nil, &ExhaustedError{Target: target, RawValue: req.RawValue}
	}

	choice, err := r.ask(ctx, req, prompt, candidates, false)
	if err != nil {
		return nil, err
	}
	switch {
	case choice.Kind == ChoiceTimeout:
		return nil, ErrDisambiguationTimeout
	case choice.Kind != ChoiceSelected || !contains(candidates, choice.Value):
		return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, choice.Value)
	}
	return r.remember(ctx, req, choice.Value, MethodSimilarityForced)
}

// offer presents optional candidates. A nil outcome with nil error means fall through.
func (r *Resolver) offer(ctx context.Context, req *ResolutionRequest, prompt string, candidates []string, method Method) (*ResolutionOutcome, error) {
	candidates = dedupe(candidates)
	if len(candidates) == 0 {
		return nil, nil
	}

	choice, err := r.ask(ctx, req, prompt, candidates, true)
	if err != nil {
		return nil, err
	}
	if choice.Kind != ChoiceSelected || !contains(candidates, choice.Value) {
		r.logger.Debug("Resolver", "No candidate selected, escalating", map[string]interface{}{
			"session_id": req.SessionID,
			"stage":      string(method),
			"choice":     string(choice.Kind),
		})
		return nil, nil
	}
	return r.remember(ctx, req, choice.Value, method)
}

func (r *Resolver) ask(ctx context.Context, req *ResolutionRequest, prompt string, candidates []string, allowNone bool) (Choice, error) {
	askCtx, cancel := context.WithTimeout(ctx, r.opts.DisambiguationTimeout)
	defer cancel()

	choice, err := r.ui.Ask(askCtx, DisambiguationRequest{
		SessionID:  req.SessionID,
		UserID:     req.UserID,
		Prompt:     prompt,
		Candidates: candidates,
		AllowNone:  allowNone,
		Timeout:    r.opts.DisambiguationTimeout,
	})
	if err != nil {
		// the wait expired but the request itself is still alive
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			choice, err = Choice{Kind: ChoiceTimeout}, nil
		} else {
			return Choice{}, fmt.Errorf("disambiguation: %w", err)
		}
	}
	metrics.RecordDisambiguation(allowNone, string(choice.Kind))
	return choice, nil
}

func (r *Resolver) remember(ctx context.Context, req *ResolutionRequest, value string, method Method) (*ResolutionOutcome, error) {
	if err := r.cache.Put(ctx, req.CacheKey(), value); err != nil {
		return nil, fmt.Errorf("cache write: %w", err)
	}
	return &ResolutionOutcome{ResolvedValue: value, Method: method}, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func contains(values []string, v string) bool {
	for _, c := range values {
		if c == v {
			return true
		}
	}
	return false
}
