package stages

import (
	"context"
	"fmt"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/internal/repository/contract"
	"ai-queryrefine-be/pkg/embedding"
	"ai-queryrefine-be/pkg/llm"
	"ai-queryrefine-be/pkg/orchestrator"
)

const DefaultRelevanceThreshold = 0.35

// RowSearcher ranks stored row embeddings against a query vector
type RowSearcher interface {
	SearchSimilarKeys(ctx context.Context, source string, embedding []float32, keys []string, threshold float64) ([]*contract.ScoredRowKey, error)
}

type PrioritizerConfig struct {
	// Source and KeyColumn identify rows in row_embeddings
	Source    string
	KeyColumn string
	Threshold float64
	// FocusPrompt, when set with a provider, turns question and plan into a record description
	FocusPrompt string
}

// VectorPrioritizer orders rows by cosine similarity between the question and stored row embeddings.
// Rows without a stored match keep their store order after the ranked ones.
type VectorPrioritizer struct {
	cfg      PrioritizerConfig
	llm      llm.LLMProvider // optional
	embedder embedding.EmbeddingProvider
	rows     RowSearcher
	logger   logger.ILogger
}

func NewVectorPrioritizer(cfg PrioritizerConfig, provider llm.LLMProvider, embedder embedding.EmbeddingProvider, rows RowSearcher, log logger.ILogger) *VectorPrioritizer {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultRelevanceThreshold
	}
	return &VectorPrioritizer{cfg: cfg, llm: provider, embedder: embedder, rows: rows, logger: log}
}

func (p *VectorPrioritizer) Prioritize(ctx context.Context, st *orchestrator.State, rows []orchestrator.Row) ([]orchestrator.Row, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	if _, ok := rows[0][p.cfg.KeyColumn]; !ok {
		return rows, nil
	}

	keys := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		k := keyOf(row, p.cfg.KeyColumn)
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	focus, err := p.focus(ctx, st)
	if err != nil {
		return nil, err
	}
	vec, err := p.embedder.Embed(ctx, focus)
	if err != nil {
		return nil, fmt.Errorf("embed focus: %w", err)
	}

	scored, err := p.rows.SearchSimilarKeys(ctx, p.cfg.Source, vec, keys, p.cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("search row embeddings: %w", err)
	}
	if len(scored) == 0 {
		p.logger.Info("Prioritizer", "All rows are filtered out, keeping store order", map[string]interface{}{
			"session_id": st.SessionID,
			"rows":       len(rows),
		})
		return rows, nil
	}

	return reorder(rows, p.cfg.KeyColumn, scored), nil
}

func (p *VectorPrioritizer) focus(ctx context.Context, st *orchestrator.State) (string, error) {
	if p.llm == nil || p.cfg.FocusPrompt == "" {
		return st.Question, nil
	}
	completion, err := p.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: p.cfg.FocusPrompt},
		{Role: "user", Content: fmt.Sprintf("%s\n\n%s", st.Question, st.Plan)},
	}, llm.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("focus completion: %w", err)
	}
	st.Usage.Add(toUsage(completion.Usage))
	return completion.Content, nil
}

// reorder places rows in score order, then every unmatched row in its original position order
func reorder(rows []orchestrator.Row, keyColumn string, scored []*contract.ScoredRowKey) []orchestrator.Row {
	byKey := make(map[string][]orchestrator.Row, len(rows))
	for _, row := range rows {
		k := keyOf(row, keyColumn)
		byKey[k] = append(byKey[k], row)
	}

	out := make([]orchestrator.Row, 0, len(rows))
	placed := make(map[string]bool, len(scored))
	for _, s := range scored {
		if placed[s.RowKey] {
			continue
		}
		placed[s.RowKey] = true
		out = append(out, byKey[s.RowKey]...)
	}
	for _, row := range rows {
		if !placed[keyOf(row, keyColumn)] {
			out = append(out, row)
		}
	}
	return out
}

func keyOf(row orchestrator.Row, column string) string {
	v, ok := row[column]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
