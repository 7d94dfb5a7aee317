package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/llm"
	"ai-queryrefine-be/pkg/orchestrator"
)

const maxCellRunes = 120

// Answerer writes the final reply from the retrieved rows.
// When table is set the rows are appended to the reply as a markdown table.
type Answerer struct {
	llm    llm.LLMProvider
	prompt string
	table  bool
	logger logger.ILogger
}

func NewPlainAnswerer(provider llm.LLMProvider, prompt string, log logger.ILogger) *Answerer {
	return &Answerer{llm: provider, prompt: prompt, logger: log}
}

func NewTableAnswerer(provider llm.LLMProvider, prompt string, log logger.ILogger) *Answerer {
	return &Answerer{llm: provider, prompt: prompt, table: true, logger: log}
}

func (a *Answerer) Answer(ctx context.Context, st *orchestrator.State) (string, error) {
	data, err := json.Marshal(st.Rows)
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}

	input := fmt.Sprintf("This is the user question:\n<user_question>\n%s\n</user_question>"+
		"\n\nThese are rational plan and its thinking steps:\n%s"+
		"\n\nThese are retrieved data:\n<retrieved_data>\n%s\n</retrieved_data>",
		st.Question, st.Plan, data)

	completion, err := a.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: a.prompt},
		{Role: "user", Content: input},
	}, llm.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("answer completion: %w", err)
	}
	st.Usage.Add(toUsage(completion.Usage))

	answer := strings.TrimSpace(completion.Content)
	if a.table && len(st.Rows) > 0 {
		answer += "\n\n" + RenderTable(st.Rows)
	}
	return answer, nil
}

// RenderTable renders rows as a markdown table. Columns follow the first row, sorted by name;
// long cells are truncated.
func RenderTable(rows []orchestrator.Row) string {
	if len(rows) == 0 {
		return ""
	}
	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = cell(row[col])
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	s := strings.ReplaceAll(fmt.Sprint(v), "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	if r := []rune(s); len(r) > maxCellRunes {
		s = string(r[:maxCellRunes-3]) + "..."
	}
	return s
}
