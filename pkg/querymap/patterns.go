package querymap

import (
	"regexp"
	"sort"
	"strings"
)

var (
	// entityPattern matches node fragments `(c:Company {name: "BambooHR"})` and
	// relationship fragments `[r:LOCATED_IN {since: '2010'}]` in textual order.
	// Groups: 1 node var, 2 node label, 3 node props, 4 rel var, 5 rel label, 6 rel props.
	entityPattern = regexp.MustCompile(
		`\(\s*(\w+)\s*:\s*(\w+)(?:\s*\{([^}]*)\})?\s*\)` +
			`|\[\s*(\w+)\s*:\s*(\w+)(?:\s*\{([^}]*)\})?\s*\]`,
	)

	// blockFragmentPattern matches the opening of any labelled fragment with a property block,
	// including `(c:Company:Client {`, `(:Company {` and `[r:A|B {` which entityPattern does not bind.
	blockFragmentPattern = regexp.MustCompile(`[(\[]\s*\w*\s*(?:[:|]\s*\w+\s*)+\{`)

	// fulltextCallPattern matches `CALL db.index.fulltext.queryNodes("index", "term") YIELD node AS c`.
	// Groups: 1 index name, 2 bound variable.
	fulltextCallPattern = regexp.MustCompile(
		`(?i)CALL\s+db\.index\.fulltext\.query\w+\(\s*["']([^"']+)["']\s*,.*?YIELD\s+\w+\s+AS\s+(\w+)`,
	)

	// tableAliasPattern matches `FROM companies c`, `JOIN offices AS o` and bare `FROM companies`.
	// Groups: 1 table, 2 alias (optional).
	tableAliasPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+(\w+)(?:\s+(?:AS\s+)?(\w+))?`)
)

const (
	// sqlLiteral escapes a quote by doubling it: 'McDonald''s'
	sqlLiteral = `'((?:[^']|'')*)'|"((?:[^"]|"")*)"`
	// cypherLiteral escapes with a backslash: 'McDonald\'s'
	cypherLiteral = `'((?:[^'\\]|\\(?s:.))*)'|"((?:[^"\\]|\\(?s:.))*)"`
)

// grammar holds the literal-bearing patterns of one dialect
type grammar struct {
	// literal groups: 1 single-quoted body, 2 double-quoted body
	literal *regexp.Regexp
	// property matches `key: 'value'` inside a property block.
	// Groups: 1 key, 2 single-quoted body, 3 double-quoted body.
	property *regexp.Regexp
	// predicate matches `c.name = 'value'`.
	// Groups: 1 var, 2 property, 3 single-quoted body, 4 double-quoted body.
	predicate *regexp.Regexp
}

func newGrammar(literal string) grammar {
	return grammar{
		literal:   regexp.MustCompile(literal),
		property:  regexp.MustCompile(`(\w+)\s*:\s*(?:` + literal + `)`),
		predicate: regexp.MustCompile(`\b(\w+)\.(\w+)\s*=\s*(?:` + literal + `)`),
	}
}

var grammars = map[Dialect]grammar{
	DialectCypher: newGrammar(cypherLiteral),
	DialectSQL:    newGrammar(sqlLiteral),
}

var sqlKeywords = map[string]struct{}{
	"where": {}, "join": {}, "inner": {}, "left": {}, "right": {}, "full": {}, "outer": {},
	"cross": {}, "on": {}, "group": {}, "order": {}, "limit": {}, "offset": {}, "having": {},
	"union": {}, "natural": {}, "using": {}, "as": {}, "lateral": {}, "fetch": {}, "window": {},
}

func isSQLKeyword(word string) bool {
	_, ok := sqlKeywords[strings.ToLower(word)]
	return ok
}

// literalSpan returns the span of a quoted literal's body from a pair of
// alternative submatch groups, along with the quote character used
func literalSpan(loc []int, single, double int) (start, end int, quote byte, ok bool) {
	if loc[2*single] >= 0 {
		return loc[2*single], loc[2*single+1], '\'', true
	}
	if loc[2*double] >= 0 {
		return loc[2*double], loc[2*double+1], '"', true
	}
	return 0, 0, 0, false
}

// span is a half-open byte range of the query, quotes included
type span struct {
	start, end int
}

// literalSpans lists every quoted literal of query in order. Cypher backtick
// identifiers are stepped over but not listed.
func literalSpans(query string, dialect Dialect) ([]span, error) {
	var spans []span
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '\'' && c != '"' && (c != '`' || dialect == DialectSQL) {
			continue
		}
		end, ok := closingQuote(query, i, dialect)
		if !ok {
			return nil, &ParseError{Fragment: excerpt(query, i), Offset: i, Reason: "unterminated quoted literal"}
		}
		if c != '`' {
			spans = append(spans, span{start: i, end: end + 1})
		}
		i = end
	}
	return spans, nil
}

// closingQuote returns the offset of the quote that closes the literal opened at open
func closingQuote(query string, open int, dialect Dialect) (int, bool) {
	q := query[open]
	doubled := dialect == DialectSQL || q == '`'
	for i := open + 1; i < len(query); i++ {
		switch {
		case query[i] == '\\' && !doubled:
			i++
		case query[i] == q:
			if doubled && i+1 < len(query) && query[i+1] == q {
				i++
				continue
			}
			return i, true
		}
	}
	return 0, false
}

// enclosing returns the literal containing offset
func enclosing(spans []span, offset int) (span, bool) {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > offset })
	if i < len(spans) && spans[i].start <= offset {
		return spans[i], true
	}
	return span{}, false
}

// opensLiteral reports whether a literal starts exactly at offset
func opensLiteral(spans []span, offset int) bool {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].start >= offset })
	return i < len(spans) && spans[i].start == offset
}

// findOutside returns the submatches of re that start outside every literal.
// A match starting inside a literal resumes the search after that literal, so
// it cannot swallow a real fragment that follows it.
func findOutside(re *regexp.Regexp, query string, spans []span) [][]int {
	var out [][]int
	for pos := 0; pos < len(query); {
		loc := re.FindStringSubmatchIndex(query[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		if s, ok := enclosing(spans, loc[0]); ok {
			pos = s.end
			continue
		}
		out = append(out, loc)
		pos = loc[1]
		if loc[1] == loc[0] {
			pos++
		}
	}
	return out
}

func excerpt(query string, offset int) string {
	const width = 40
	if len(query)-offset <= width {
		return query[offset:]
	}
	return query[offset:offset+width] + "..."
}
