package stages

import (
	"context"
	"fmt"
	"strings"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/llm"
	"ai-queryrefine-be/pkg/orchestrator"
)

type Generator struct {
	llm    llm.LLMProvider
	prompt string
	logger logger.ILogger
}

func NewGenerator(provider llm.LLMProvider, prompt string, log logger.ILogger) *Generator {
	return &Generator{llm: provider, prompt: prompt, logger: log}
}

// generationInput renders the question, the plan and the feedback of the previous attempt
func generationInput(gc orchestrator.GenerationContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is the user question:\n<user_question>\n%s\n</user_question>", gc.Question)
	if gc.Plan != "" {
		fmt.Fprintf(&b, "\n\nThese are rational plan and its thinking steps:\n%s", gc.Plan)
	}
	if gc.Feedback != "" {
		fmt.Fprintf(&b, "\n\nThis is the feedback on attempt %d:\n<feedback>\n%s\n</feedback>", gc.Attempt-1, gc.Feedback)
	}
	return b.String()
}

func (g *Generator) Generate(ctx context.Context, gc orchestrator.GenerationContext) (*orchestrator.GeneratedQuery, error) {
	messages := []llm.Message{
		{Role: "system", Content: g.prompt},
		{Role: "user", Content: generationInput(gc)},
	}

	completion, err := g.llm.Complete(ctx, messages, llm.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("generator completion: %w", err)
	}

	query := ExtractQuery(completion.Content)
	if query == "" {
		return nil, fmt.Errorf("generator returned no query")
	}

	g.logger.Debug("Generator", "Query generated", map[string]interface{}{
		"attempt": gc.Attempt,
		"query":   query,
	})
	return &orchestrator.GeneratedQuery{Query: query, Usage: toUsage(completion.Usage)}, nil
}
