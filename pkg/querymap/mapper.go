package querymap

import (
	"context"
	"fmt"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/resolver"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ValueResolver canonicalises one literal. Implemented by *resolver.Resolver.
type ValueResolver interface {
	Resolve(ctx context.Context, req *resolver.ResolutionRequest) (*resolver.ResolutionOutcome, error)
}

// IndexTargets resolves a full-text index name to the label it covers
type IndexTargets interface {
	TargetForIndex(name string) (resolver.Target, bool)
}

// Mapping records one resolved literal occurrence
type Mapping struct {
	Variable      string
	Label         string
	Property      string
	RawValue      string
	ResolvedValue string
	Method        resolver.Method
	MatchContext  resolver.MatchContext
	Offset        int
}

type Result struct {
	Query    string
	Mappings []Mapping
	Symbols  *SymbolTable
}

// Rewritten reports how many literals were changed
func (r *Result) Rewritten() int {
	n := 0
	for _, m := range r.Mappings {
		if m.ResolvedValue != m.RawValue {
			n++
		}
	}
	return n
}

// Mapper rewrites literal values in generated queries to their stored canonical form
type Mapper struct {
	resolver ValueResolver
	indexes  IndexTargets
	dialect  Dialect
	grammar  grammar
	logger   logger.ILogger
	tracer   trace.Tracer
}

func NewMapper(res ValueResolver, indexes IndexTargets, dialect Dialect, log logger.ILogger) *Mapper {
	g, ok := grammars[dialect]
	if !ok {
		dialect, g = DialectCypher, grammars[DialectCypher]
	}
	return &Mapper{
		resolver: res,
		indexes:  indexes,
		dialect:  dialect,
		grammar:  g,
		logger:   log,
		tracer:   otel.Tracer("querymap"),
	}
}

func (m *Mapper) Dialect() Dialect {
	return m.dialect
}

// Map returns the rewritten query text
func (m *Mapper) Map(ctx context.Context, query, sessionID, userID string) (string, error) {
	res, err := m.MapDetailed(ctx, query, sessionID, userID)
	if err != nil {
		return "", err
	}
	return res.Query, nil
}

// MapDetailed runs the pattern, binding and predicate scans in that order.
// Any failure aborts the pass; a partially rewritten query is never returned.
func (m *Mapper) MapDetailed(ctx context.Context, query, sessionID, userID string) (*Result, error) {
	ctx, span := m.tracer.Start(ctx, "QueryValueMapper.Map", trace.WithAttributes(
		attribute.String("dialect", string(m.dialect)),
		attribute.String("session_id", sessionID),
	))
	defer span.End()

	log := m.logger.With(map[string]interface{}{"session_id": sessionID, "user_id": userID})

	p := &pass{
		mapper:    m,
		span:      span,
		log:       log,
		query:     query,
		sessionID: sessionID,
		userID:    userID,
		symbols:   NewSymbolTable(),
	}

	steps := []func(context.Context) error{p.scanLiterals, p.scanPatterns, p.checkPropertyBlocks}
	switch m.dialect {
	case DialectSQL:
		steps = append(steps, p.scanTableAliases)
	default:
		steps = append(steps, p.scanFulltextCalls)
	}
	steps = append(steps, p.scanPredicates)

	abort := func(err error) (*Result, error) {
		span.RecordError(err)
		log.Error("QueryValueMapper", "Value mapping aborted", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return nil, err
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			return abort(err)
		}
	}

	rewritten, err := applyEdits(query, p.edits)
	if err != nil {
		return abort(err)
	}

	result := &Result{
		Query:    rewritten,
		Mappings: p.mappings,
		Symbols:  p.symbols,
	}

	span.SetAttributes(
		attribute.Int("literals", len(result.Mappings)),
		attribute.Int("rewritten", result.Rewritten()),
	)
	if len(result.Mappings) > 0 {
		log.Info("QueryValueMapper", "Query values mapped", map[string]interface{}{
			"literals":  len(result.Mappings),
			"rewritten": result.Rewritten(),
		})
	}
	return result, nil
}

// pass holds the state of one mapping run over one query
type pass struct {
	mapper    *Mapper
	span      trace.Span
	log       logger.ILogger
	query     string
	sessionID string
	userID    string

	symbols  *SymbolTable
	literals []span
	// property blocks bound by the pattern scan, keyed by fragment offset
	bound    map[int]struct{}
	edits    []edit
	mappings []Mapping
}

func (p *pass) scanLiterals(_ context.Context) error {
	spans, err := literalSpans(p.query, p.mapper.dialect)
	if err != nil {
		return err
	}
	p.literals = spans
	return nil
}

func (p *pass) scanPatterns(ctx context.Context) error {
	g := p.mapper.grammar
	p.bound = make(map[int]struct{})
	for _, loc := range findOutside(entityPattern, p.query, p.literals) {
		varGroup, kind := 1, resolver.KindNode
		if loc[2] < 0 {
			varGroup, kind = 4, resolver.KindRelationship
		}

		variable := p.query[loc[2*varGroup]:loc[2*varGroup+1]]
		label := p.query[loc[2*(varGroup+1)]:loc[2*(varGroup+1)+1]]
		p.symbols.Bind(variable, label, kind)

		propsGroup := varGroup + 2
		blockStart, blockEnd := loc[2*propsGroup], loc[2*propsGroup+1]
		if blockStart < 0 {
			continue
		}
		block := p.query[blockStart:blockEnd]
		p.bound[loc[0]] = struct{}{}

		for _, pl := range g.property.FindAllStringSubmatchIndex(block, -1) {
			property := block[pl[2]:pl[3]]
			start, end, quote, ok := literalSpan(pl, 2, 3)
			if !ok || !opensLiteral(p.literals, blockStart+start-1) {
				return &ParseError{
					Fragment: p.query[loc[0]:loc[1]],
					Offset:   loc[0],
					Reason:   fmt.Sprintf("value of %q does not line up with the quoting of the query", property),
				}
			}
			binding := Binding{Label: label, Kind: kind}
			if err := p.resolve(ctx, variable, binding, property, blockStart+start, blockStart+end, quote, resolver.ContextPattern); err != nil {
				return err
			}
		}

		// anything quoted that the property grammar did not consume cannot be attributed safely
		leftover := g.literal.ReplaceAllString(g.property.ReplaceAllString(block, ""), "")
		if containsQuote(leftover) {
			return &ParseError{
				Fragment: p.query[loc[0]:loc[1]],
				Offset:   loc[0],
				Reason:   "unbalanced or unrecognised quoted value in property block",
			}
		}
	}
	return nil
}

// checkPropertyBlocks rejects quoted property values on fragments the pattern
// scan could not bind, such as multi-label or anonymous nodes
func (p *pass) checkPropertyBlocks(_ context.Context) error {
	for _, loc := range findOutside(blockFragmentPattern, p.query, p.literals) {
		if _, ok := p.bound[loc[0]]; ok {
			continue
		}
		open := loc[1] - 1
		for i := open + 1; i < len(p.query); i++ {
			if s, ok := enclosing(p.literals, i); ok {
				return &ParseError{
					Fragment: p.query[loc[0]:s.end],
					Offset:   loc[0],
					Reason:   "quoted property value on a fragment with several labels or no variable",
				}
			}
			if p.query[i] == '}' {
				break
			}
		}
	}
	return nil
}

func (p *pass) scanFulltextCalls(_ context.Context) error {
	for _, loc := range findOutside(fulltextCallPattern, p.query, p.literals) {
		index := p.query[loc[2]:loc[3]]
		variable := p.query[loc[4]:loc[5]]

		if p.mapper.indexes == nil {
			return &ParseError{Fragment: p.query[loc[0]:loc[1]], Offset: loc[0], Reason: "no full-text index registry configured"}
		}
		target, ok := p.mapper.indexes.TargetForIndex(index)
		if !ok {
			return &ParseError{Fragment: p.query[loc[0]:loc[1]], Offset: loc[0], Reason: fmt.Sprintf("unknown full-text index %q", index)}
		}
		p.symbols.Bind(variable, target.Label, target.Kind)
	}
	return nil
}

func (p *pass) scanTableAliases(_ context.Context) error {
	for _, loc := range findOutside(tableAliasPattern, p.query, p.literals) {
		table, alias := p.query[loc[2]:loc[3]], ""
		if loc[4] >= 0 {
			alias = p.query[loc[4]:loc[5]]
		}
		if isSQLKeyword(table) {
			continue
		}
		p.symbols.Bind(table, table, resolver.KindNode)
		if alias != "" && !isSQLKeyword(alias) {
			p.symbols.Bind(alias, table, resolver.KindNode)
		}
	}
	return nil
}

func (p *pass) scanPredicates(ctx context.Context) error {
	for _, loc := range findOutside(p.mapper.grammar.predicate, p.query, p.literals) {
		variable := p.query[loc[2]:loc[3]]
		property := p.query[loc[4]:loc[5]]

		start, end, quote, ok := literalSpan(loc, 3, 4)
		if !ok || !opensLiteral(p.literals, start-1) {
			return &ParseError{
				Fragment: p.query[loc[0]:loc[1]],
				Offset:   loc[0],
				Reason:   "predicate value does not line up with the quoting of the query",
			}
		}

		binding, ok := p.symbols.Lookup(variable)
		if !ok {
			p.log.Debug("QueryValueMapper", "Skipping predicate on unbound variable", map[string]interface{}{
				"variable": variable,
				"property": property,
			})
			continue
		}

		if err := p.resolve(ctx, variable, binding, property, start, end, quote, resolver.ContextPredicate); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) resolve(ctx context.Context, variable string, binding Binding, property string, start, end int, quote byte, matchCtx resolver.MatchContext) error {
	raw, ok := unescapeLiteral(p.query[start:end], quote, p.mapper.dialect)
	if !ok {
		return &ParseError{Fragment: p.query[start:end], Offset: start, Reason: "unsupported escape sequence in literal"}
	}
	if raw == "" {
		return nil
	}

	req := &resolver.ResolutionRequest{
		Variable:     variable,
		Label:        binding.Label,
		Property:     property,
		RawValue:     raw,
		EntityKind:   binding.Kind,
		MatchContext: matchCtx,
		SessionID:    p.sessionID,
		UserID:       p.userID,
	}

	out, err := p.mapper.resolver.Resolve(ctx, req)
	if err != nil {
		return fmt.Errorf("resolve %s.%s = %q: %w", binding.Label, property, raw, err)
	}

	p.mappings = append(p.mappings, Mapping{
		Variable:      variable,
		Label:         binding.Label,
		Property:      property,
		RawValue:      raw,
		ResolvedValue: out.ResolvedValue,
		Method:        out.Method,
		MatchContext:  matchCtx,
		Offset:        start,
	})

	if !out.Changed(raw) {
		return nil
	}

	p.edits = append(p.edits, edit{
		start: start,
		end:   end,
		text:  escapeLiteral(out.ResolvedValue, quote, p.mapper.dialect),
	})
	p.span.AddEvent("value.mapped", trace.WithAttributes(
		attribute.String("from.label", binding.Label),
		attribute.String("from.property", property),
		attribute.String("from.value", raw),
		attribute.String("to.value", out.ResolvedValue),
		attribute.String("to.method", string(out.Method)),
		attribute.String("match_context", string(matchCtx)),
	))
	p.log.Debug("QueryValueMapper", "Literal rewritten", map[string]interface{}{
		"label":    binding.Label,
		"property": property,
		"from":     raw,
		"to":       out.ResolvedValue,
		"method":   string(out.Method),
	})
	return nil
}

func containsQuote(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' || s[i] == '"' {
			return true
		}
	}
	return false
}
