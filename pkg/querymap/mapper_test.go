package querymap

import (
	"context"
	"errors"
	"testing"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	canonical map[string]string
	failOn    string
	requests  []resolver.ResolutionRequest
}

func (f *fakeResolver) Resolve(_ context.Context, req *resolver.ResolutionRequest) (*resolver.ResolutionOutcome, error) {
	f.requests = append(f.requests, *req)
	if req.RawValue == f.failOn {
		return nil, &resolver.ExhaustedError{Target: req.Target(), RawValue: req.RawValue}
	}
	if v, ok := f.canonical[req.RawValue]; ok {
		return &resolver.ResolutionOutcome{ResolvedValue: v, Method: resolver.MethodSimilarityThresholded}, nil
	}
	return &resolver.ResolutionOutcome{ResolvedValue: req.RawValue, Method: resolver.MethodExact}, nil
}

type fakeIndexes map[string]resolver.Target

func (f fakeIndexes) TargetForIndex(name string) (resolver.Target, bool) {
	t, ok := f[name]
	return t, ok
}

func newTestMapper(res ValueResolver, dialect Dialect) *Mapper {
	indexes := fakeIndexes{
		"fulltext_company_description": {Label: "Company", Property: "description", Kind: resolver.KindNode},
	}
	return NewMapper(res, indexes, dialect, logger.NewNopLogger())
}

func TestMap_RewriteLocality(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "double-quoted pattern literal",
			query: `MATCH (c:Company {name: "bamboo"})-[:LOCATED_IN]->(s:State) RETURN c, s`,
			want:  `MATCH (c:Company {name: "BambooHR"})-[:LOCATED_IN]->(s:State) RETURN c, s`,
		},
		{
			name:  "single-quoted pattern literal",
			query: `MATCH (c:Company {name: 'bamboo', size:  10}) RETURN c`,
			want:  `MATCH (c:Company {name: 'BambooHR', size:  10}) RETURN c`,
		},
		{
			name:  "predicate literal after pattern binding",
			query: "MATCH (c:Company)\nWHERE c.name = 'bamboo'   AND c.size > 3\nRETURN c.name",
			want:  "MATCH (c:Company)\nWHERE c.name = 'BambooHR'   AND c.size > 3\nRETURN c.name",
		},
		{
			name:  "unchanged literals leave the query identical",
			query: `MATCH (c:Company {name: "Gusto"}) WHERE c.city = "Austin" RETURN c`,
			want:  `MATCH (c:Company {name: "Gusto"}) WHERE c.city = "Austin" RETURN c`,
		},
		{
			name:  "canonical value containing the quote character is escaped",
			query: `MATCH (p:Person {name: 'obrien'}) RETURN p`,
			want:  `MATCH (p:Person {name: 'O\'Brien'}) RETURN p`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeResolver{canonical: map[string]string{"bamboo": "BambooHR", "obrien": "O'Brien"}}
			m := newTestMapper(res, DialectCypher)

			got, err := m.Map(context.Background(), tt.query, "session-1", "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMap_RequestsCarryContext(t *testing.T) {
	res := &fakeResolver{}
	m := newTestMapper(res, DialectCypher)

	query := `MATCH (c:Company {name: "Gusto"})-[r:LOCATED_IN {since: '2010'}]->(s:State) WHERE s.name = "Texas" RETURN c`
	result, err := m.MapDetailed(context.Background(), query, "session-1", "user-1")
	require.NoError(t, err)
	require.Len(t, res.requests, 3)

	assert.Equal(t, "Company", res.requests[0].Label)
	assert.Equal(t, resolver.KindNode, res.requests[0].EntityKind)
	assert.Equal(t, resolver.ContextPattern, res.requests[0].MatchContext)

	assert.Equal(t, "LOCATED_IN", res.requests[1].Label)
	assert.Equal(t, "since", res.requests[1].Property)
	assert.Equal(t, resolver.KindRelationship, res.requests[1].EntityKind)

	assert.Equal(t, "State", res.requests[2].Label)
	assert.Equal(t, resolver.ContextPredicate, res.requests[2].MatchContext)
	assert.Equal(t, "session-1", res.requests[2].SessionID)
	assert.Equal(t, "user-1", res.requests[2].UserID)

	assert.Zero(t, result.Rewritten())
	assert.Equal(t, 3, result.Symbols.Len())
}

func TestMap_UnknownVariableIsSkipped(t *testing.T) {
	res := &fakeResolver{canonical: map[string]string{"bamboo": "BambooHR"}}
	m := newTestMapper(res, DialectCypher)

	query := `MATCH (c) WHERE c.name = 'bamboo' RETURN c`
	got, err := m.Map(context.Background(), query, "s", "u")
	require.NoError(t, err)
	assert.Equal(t, query, got)
	assert.Empty(t, res.requests)
}

func TestMap_FulltextCallBindsVariable(t *testing.T) {
	res := &fakeResolver{canonical: map[string]string{"bamboo": "BambooHR"}}
	m := newTestMapper(res, DialectCypher)

	query := `CALL db.index.fulltext.queryNodes("fulltext_company_description", "payroll saas") YIELD node AS c, score WHERE c.name = "bamboo" RETURN c`
	got, err := m.Map(context.Background(), query, "s", "u")
	require.NoError(t, err)

	assert.Equal(t, `CALL db.index.fulltext.queryNodes("fulltext_company_description", "payroll saas") YIELD node AS c, score WHERE c.name = "BambooHR" RETURN c`, got)
	require.Len(t, res.requests, 1, "the search term itself is never resolved")
	assert.Equal(t, "Company", res.requests[0].Label)
}

func TestMap_Errors(t *testing.T) {
	t.Run("unknown full-text index", func(t *testing.T) {
		m := newTestMapper(&fakeResolver{}, DialectCypher)
		_, err := m.Map(context.Background(), `CALL db.index.fulltext.queryNodes('nope', 'x') YIELD node AS n RETURN n`, "s", "u")
		assert.True(t, IsParseError(err))
	})

	t.Run("unbalanced quote in property block", func(t *testing.T) {
		m := newTestMapper(&fakeResolver{}, DialectCypher)
		_, err := m.Map(context.Background(), `MATCH (c:Company {name: "bamboo}) RETURN c`, "s", "u")
		assert.True(t, IsParseError(err))
	})

	t.Run("resolver failure aborts the pass", func(t *testing.T) {
		res := &fakeResolver{failOn: "ghost", canonical: map[string]string{"bamboo": "BambooHR"}}
		m := newTestMapper(res, DialectCypher)

		got, err := m.Map(context.Background(), `MATCH (c:Company {name: "bamboo"}) WHERE c.city = "ghost" RETURN c`, "s", "u")
		assert.Empty(t, got)
		assert.True(t, resolver.IsExhausted(err))
	})
}

func TestMap_SQLDialect(t *testing.T) {
	res := &fakeResolver{canonical: map[string]string{"bamboo": "BambooHR", "obrien": "O'Brien"}}
	m := newTestMapper(res, DialectSQL)

	query := `SELECT c.name, p.name FROM companies AS c JOIN people p ON p.company_id = c.id WHERE c.name = 'bamboo' AND p.name = 'obrien' AND x.y = 'z'`
	got, err := m.Map(context.Background(), query, "s", "u")
	require.NoError(t, err)

	assert.Equal(t, `SELECT c.name, p.name FROM companies AS c JOIN people p ON p.company_id = c.id WHERE c.name = 'BambooHR' AND p.name = 'O''Brien' AND x.y = 'z'`, got)
	require.Len(t, res.requests, 2)
	assert.Equal(t, "companies", res.requests[0].Label)
	assert.Equal(t, "people", res.requests[1].Label)
}

func TestApplyEdits(t *testing.T) {
	got, err := applyEdits("abcdef", []edit{{start: 4, end: 5, text: "XY"}, {start: 0, end: 1, text: ""}})
	require.NoError(t, err)
	assert.Equal(t, "bcdXYf", got)

	got, err = applyEdits("abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	_, err = applyEdits("abcdef", []edit{{start: 1, end: 4, text: "x"}, {start: 3, end: 5, text: "y"}})
	assert.True(t, IsParseError(err))
}

func TestMap_EscapedQuotes(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		want     string
		firstRaw string
		requests int
	}{
		{
			name:     "sql doubled quote",
			dialect:  DialectSQL,
			query:    `SELECT * FROM companies c WHERE c.name = 'McDonald''s' AND c.city = 'austin'`,
			want:     `SELECT * FROM companies c WHERE c.name = 'McDonald''s Corporation' AND c.city = 'Austin'`,
			firstRaw: "McDonald's",
			requests: 2,
		},
		{
			name:     "cypher backslash escape",
			dialect:  DialectCypher,
			query:    `MATCH (c:Company) WHERE c.name = 'McDonald\'s' AND c.city = 'austin' RETURN c`,
			want:     `MATCH (c:Company) WHERE c.name = 'McDonald\'s Corporation' AND c.city = 'Austin' RETURN c`,
			firstRaw: "McDonald's",
			requests: 2,
		},
		{
			name:     "cypher escaped quote in pattern literal",
			dialect:  DialectCypher,
			query:    `MATCH (c:Company {name: "McDonald\"s"}) RETURN c`,
			want:     `MATCH (c:Company {name: "McDonald's Corporation"}) RETURN c`,
			firstRaw: `McDonald"s`,
			requests: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeResolver{canonical: map[string]string{
				"McDonald's": "McDonald's Corporation",
				`McDonald"s`: "McDonald's Corporation",
				"austin":     "Austin",
			}}
			m := newTestMapper(res, tt.dialect)

			got, err := m.Map(context.Background(), tt.query, "s", "u")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.Len(t, res.requests, tt.requests)
			assert.Equal(t, tt.firstRaw, res.requests[0].RawValue)
		})
	}
}

func TestMap_LiteralsInsideLiterals(t *testing.T) {
	t.Run("predicate text inside a pattern literal is not a predicate", func(t *testing.T) {
		res := &fakeResolver{canonical: map[string]string{"c.name = 'Acme Co'": "Acme notes", "Acme Co": "Acme Corporation"}}
		m := newTestMapper(res, DialectCypher)

		got, err := m.Map(context.Background(), `MATCH (c:Company {note: "c.name = 'Acme Co'"}) RETURN c`, "s", "u")
		require.NoError(t, err)
		assert.Equal(t, `MATCH (c:Company {note: "Acme notes"}) RETURN c`, got)
		require.Len(t, res.requests, 1)
		assert.Equal(t, "note", res.requests[0].Property)
	})

	t.Run("a match inside a literal does not hide the next predicate", func(t *testing.T) {
		res := &fakeResolver{canonical: map[string]string{"bamboo": "BambooHR"}}
		m := newTestMapper(res, DialectCypher)

		got, err := m.Map(context.Background(), `MATCH (c:Company {note: "c.name = 'x"}) WHERE c.name = 'bamboo' RETURN c`, "s", "u")
		require.NoError(t, err)
		assert.Equal(t, `MATCH (c:Company {note: "c.name = 'x"}) WHERE c.name = 'BambooHR' RETURN c`, got)
		require.Len(t, res.requests, 2)
		assert.Equal(t, "bamboo", res.requests[1].RawValue)
	})

	t.Run("sql keywords inside literals bind nothing", func(t *testing.T) {
		res := &fakeResolver{}
		m := newTestMapper(res, DialectSQL)

		result, err := m.MapDetailed(context.Background(), `SELECT * FROM companies c WHERE c.note = 'moved from offices o' AND o.city = 'x'`, "s", "u")
		require.NoError(t, err)
		_, ok := result.Symbols.Lookup("o")
		assert.False(t, ok)
		require.Len(t, res.requests, 1)
	})
}

func TestMap_UnboundPropertyBlocks(t *testing.T) {
	rejected := map[string]string{
		"multi-label node":           `MATCH (c:Company:Client {name: 'bamboo'}) RETURN c`,
		"anonymous node":             `MATCH (:Company {name: 'bamboo'})-[:LOCATED_IN]->(s) RETURN s`,
		"anonymous relationship":     `MATCH (c:Company)-[:LOCATED_IN {since: '2010'}]->(s:State) RETURN c`,
		"relationship type union":    `MATCH (c:Company)-[r:A|B {since: '2010'}]->(s:State) RETURN c`,
		"closing brace in a literal": `MATCH (c:Company {name: 'a}b'}) RETURN c`,
	}
	for name, query := range rejected {
		t.Run(name, func(t *testing.T) {
			m := newTestMapper(&fakeResolver{}, DialectCypher)
			_, err := m.Map(context.Background(), query, "s", "u")
			assert.True(t, IsParseError(err), "got %v", err)
		})
	}

	accepted := map[string]string{
		"multi-label node without quoted values": `MATCH (c:Company:Client {id: 5}) RETURN c`,
		"map projection":                         `MATCH (c:Company) RETURN collect(c {.name, tag: 'x'})`,
	}
	for name, query := range accepted {
		t.Run(name, func(t *testing.T) {
			m := newTestMapper(&fakeResolver{}, DialectCypher)
			got, err := m.Map(context.Background(), query, "s", "u")
			require.NoError(t, err)
			assert.Equal(t, query, got)
		})
	}
}

func TestLiteralSpans(t *testing.T) {
	spans, err := literalSpans(`a = 'it''s' AND b = "x"`, DialectSQL)
	require.NoError(t, err)
	assert.Equal(t, []span{{start: 4, end: 11}, {start: 20, end: 23}}, spans)

	spans, err = literalSpans("n.`it's` = 'O\\\\'", DialectCypher)
	require.NoError(t, err)
	assert.Equal(t, []span{{start: 11, end: 16}}, spans)

	_, err = literalSpans(`a = 'McDonald\'s`, DialectCypher)
	assert.True(t, IsParseError(err))

	_, err = literalSpans(`a = 'open`, DialectSQL)
	assert.True(t, IsParseError(err))
}

func TestUnescapeLiteral(t *testing.T) {
	tests := []struct {
		body    string
		quote   byte
		dialect Dialect
		want    string
		ok      bool
	}{
		{`McDonald''s`, '\'', DialectSQL, "McDonald's", true},
		{`say ""hi""`, '"', DialectSQL, `say "hi"`, true},
		{`McDonald\'s`, '\'', DialectCypher, "McDonald's", true},
		{`a\\b\tc`, '\'', DialectCypher, "a\\b\tc", true},
		{`caf\u00e9`, '\'', DialectCypher, "café", true},
		{`bad\q`, '\'', DialectCypher, "", false},
		{`short\u00`, '\'', DialectCypher, "", false},
	}
	for _, tt := range tests {
		got, ok := unescapeLiteral(tt.body, tt.quote, tt.dialect)
		assert.Equal(t, tt.ok, ok, tt.body)
		assert.Equal(t, tt.want, got, tt.body)
	}
}

func TestScanTableAliases_IgnoresKeywords(t *testing.T) {
	p := &pass{query: "SELECT * FROM companies WHERE id = 1", symbols: NewSymbolTable()}
	require.NoError(t, p.scanTableAliases(context.Background()))

	b, ok := p.symbols.Lookup("companies")
	require.True(t, ok)
	assert.Equal(t, "companies", b.Label)
	_, ok = p.symbols.Lookup("WHERE")
	assert.False(t, ok)
}

func TestParseError_Message(t *testing.T) {
	err := error(&ParseError{Fragment: "(c:X {a: \"b})", Offset: 6, Reason: "bad"})
	assert.Contains(t, err.Error(), "offset 6")
	assert.False(t, IsParseError(errors.New("other")))
}
