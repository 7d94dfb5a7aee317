package querymap

import (
	"sort"
	"strconv"
	"strings"
)

// Dialect decides how literals are escaped when rewritten
type Dialect string

const (
	DialectCypher Dialect = "cypher"
	DialectSQL    Dialect = "sql"
)

// edit replaces query[start:end] with text
type edit struct {
	start, end int
	text       string
}

// applyEdits rewrites non-overlapping spans, leaving every other byte untouched
func applyEdits(query string, edits []edit) (string, error) {
	if len(edits) == 0 {
		return query, nil
	}

	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	var b strings.Builder
	b.Grow(len(query))
	last := 0
	for _, e := range sorted {
		if e.start < last || e.end < e.start || e.end > len(query) {
			return "", &ParseError{Fragment: excerpt(query, e.start), Offset: e.start, Reason: "overlapping literal rewrites"}
		}
		b.WriteString(query[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.WriteString(query[last:])
	return b.String(), nil
}

// escapeLiteral makes value safe to place between two quote characters
func escapeLiteral(value string, quote byte, dialect Dialect) string {
	q := string(quote)
	if dialect == DialectSQL {
		return strings.ReplaceAll(value, q, q+q)
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, q, `\`+q)
}

// unescapeLiteral returns the value a quoted literal body denotes
func unescapeLiteral(body string, quote byte, dialect Dialect) (string, bool) {
	if dialect == DialectSQL {
		q := string(quote)
		return strings.ReplaceAll(body, q+q, q), true
	}
	if !strings.Contains(body, `\`) {
		return body, true
	}

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		if body[i] != '\\' {
			b.WriteByte(body[i])
			continue
		}
		i++
		if i == len(body) {
			return "", false
		}
		switch body[i] {
		case '\\', '\'', '"':
			b.WriteByte(body[i])
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+5 > len(body) {
				return "", false
			}
			r, err := strconv.ParseUint(body[i+1:i+5], 16, 32)
			if err != nil {
				return "", false
			}
			b.WriteRune(rune(r))
			i += 4
		default:
			return "", false
		}
	}
	return b.String(), true
}
