package stages

import (
	"context"

	"ai-queryrefine-be/pkg/llm"
	"ai-queryrefine-be/pkg/orchestrator"
)

func toUsage(u llm.Usage) orchestrator.TokenUsage {
	return orchestrator.TokenUsage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
}

// History supplies earlier turns of the same chat session, oldest first
type History interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]llm.Message, error)
}
