package stages

import (
	"context"
	"fmt"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/llm"
	"ai-queryrefine-be/pkg/orchestrator"
)

const defaultHistoryTurns = 6

type Planner struct {
	llm     llm.LLMProvider
	prompt  string
	history History // optional
	turns   int
	logger  logger.ILogger
}

func NewPlanner(provider llm.LLMProvider, prompt string, history History, log logger.ILogger) *Planner {
	return &Planner{llm: provider, prompt: prompt, history: history, turns: defaultHistoryTurns, logger: log}
}

func (p *Planner) Plan(ctx context.Context, st *orchestrator.State) (orchestrator.PlanVerdict, error) {
	messages := []llm.Message{{Role: "system", Content: p.prompt}}

	if p.history != nil {
		prior, err := p.history.Recent(ctx, st.SessionID, p.turns)
		if err != nil {
			// the plan is still useful without earlier turns
			p.logger.Warn("Planner", "Failed to load chat history", map[string]interface{}{
				"session_id": st.SessionID,
				"error":      err.Error(),
			})
		} else {
			messages = append(messages, prior...)
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: st.Question})

	completion, err := p.llm.Complete(ctx, messages, llm.WithTemperature(0))
	if err != nil {
		return orchestrator.PlanVerdict{}, fmt.Errorf("planner completion: %w", err)
	}

	verdict := orchestrator.VerdictFromText(completion.Content)
	verdict.Usage = toUsage(completion.Usage)

	p.logger.Info("Planner", "Plan generated", map[string]interface{}{
		"session_id":      st.SessionID,
		"needs_retrieval": verdict.NeedsRetrieval,
		"tokens":          verdict.Usage.Total(),
	})
	return verdict, nil
}
