package stages

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?is)```[ \\t]*(?:cypher|sql|postgresql)?[ \\t]*\\r?\\n(.*?)```")

// ExtractQuery unwraps the first fenced code block, or returns the trimmed text when there is none
func ExtractQuery(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}
