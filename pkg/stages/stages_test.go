package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai-queryrefine-be/internal/entity"
	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/internal/repository/contract"
	"ai-queryrefine-be/pkg/llm"
	"ai-queryrefine-be/pkg/orchestrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeLLM struct {
	replies []string
	err     error
	calls   [][]llm.Message
}

func (f *fakeLLM) Complete(_ context.Context, history []llm.Message, _ ...llm.Option) (*llm.Completion, error) {
	f.calls = append(f.calls, history)
	if f.err != nil {
		return nil, f.err
	}
	reply := ""
	if len(f.replies) > 0 {
		reply = f.replies[0]
		if len(f.replies) > 1 {
			f.replies = f.replies[1:]
		}
	}
	return &llm.Completion{Content: reply, Usage: llm.Usage{PromptTokens: 7, CompletionTokens: 3}}, nil
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, o ...llm.Option) (string, error) {
	return llm.ChatVia(ctx, f, history, o...)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, o ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, o...)
}

type fakeHistory struct {
	msgs []llm.Message
	err  error
}

func (h *fakeHistory) Recent(_ context.Context, _ string, _ int) ([]llm.Message, error) {
	return h.msgs, h.err
}

type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.batches = append(e.batches, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type fakeRowStore struct {
	scored   []*contract.ScoredRowKey
	err      error
	keys     []string
	upserted []*entity.RowEmbedding
}

func (s *fakeRowStore) SearchSimilarKeys(_ context.Context, _ string, _ []float32, keys []string, _ float64) ([]*contract.ScoredRowKey, error) {
	s.keys = keys
	return s.scored, s.err
}

func (s *fakeRowStore) Upsert(_ context.Context, embeddings []*entity.RowEmbedding) error {
	s.upserted = append(s.upserted, embeddings...)
	return nil
}

func deals(ids ...string) []orchestrator.Row {
	rows := make([]orchestrator.Row, len(ids))
	for i, id := range ids {
		rows[i] = orchestrator.Row{"deal_id": id, "title": "Deal " + id, "sector": "Tech"}
	}
	return rows
}

// --- tests ---

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"cypher fence", "Here you go:\n```cypher\nMATCH (n) RETURN n LIMIT 5\n```\nDone.", "MATCH (n) RETURN n LIMIT 5"},
		{"sql fence upper", "```SQL\nSELECT 1\n```", "SELECT 1"},
		{"bare fence", "```\nMATCH (a) RETURN a\n```", "MATCH (a) RETURN a"},
		{"first block wins", "```sql\nSELECT 1\n```\n```sql\nSELECT 2\n```", "SELECT 1"},
		{"unfenced", "  MATCH (n) RETURN n  ", "MATCH (n) RETURN n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractQuery(tt.in))
		})
	}
}

func TestGenerationInput(t *testing.T) {
	first := generationInput(orchestrator.GenerationContext{Question: "Who bought Acme?", Plan: "1. find Acme", Attempt: 1})
	assert.Contains(t, first, "<user_question>\nWho bought Acme?\n</user_question>")
	assert.Contains(t, first, "1. find Acme")
	assert.NotContains(t, first, "<feedback>")

	retry := generationInput(orchestrator.GenerationContext{
		Question: "Who bought Acme?", Plan: "1. find Acme", Feedback: "No data was retrieved", Attempt: 3,
	})
	assert.Contains(t, retry, "feedback on attempt 2")
	assert.Contains(t, retry, "<feedback>\nNo data was retrieved\n</feedback>")
}

func TestGenerator_Generate(t *testing.T) {
	provider := &fakeLLM{replies: []string{"```cypher\nMATCH (c:Company {name: 'Acme'}) RETURN c\n```"}}
	g := NewGenerator(provider, "system", logger.NewNopLogger())

	out, err := g.Generate(context.Background(), orchestrator.GenerationContext{Question: "q", Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (c:Company {name: 'Acme'}) RETURN c", out.Query)
	assert.Equal(t, 10, out.Usage.Total())
	assert.Equal(t, "system", provider.calls[0][0].Content)

	_, err = NewGenerator(&fakeLLM{replies: []string{"   "}}, "s", logger.NewNopLogger()).
		Generate(context.Background(), orchestrator.GenerationContext{Question: "q"})
	assert.Error(t, err)
}

func TestPlanner_Plan(t *testing.T) {
	t.Run("includes history before the question", func(t *testing.T) {
		provider := &fakeLLM{replies: []string{"1. Look up deals"}}
		history := &fakeHistory{msgs: []llm.Message{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "reply"}}}
		p := NewPlanner(provider, "plan it", history, logger.NewNopLogger())

		v, err := p.Plan(context.Background(), orchestrator.NewState("s", "u", "List deals"))
		require.NoError(t, err)
		assert.True(t, v.NeedsRetrieval)
		assert.Equal(t, 10, v.Usage.Total())

		sent := provider.calls[0]
		require.Len(t, sent, 4)
		assert.Equal(t, "earlier", sent[1].Content)
		assert.Equal(t, "List deals", sent[3].Content)
	})

	t.Run("history failure is tolerated", func(t *testing.T) {
		provider := &fakeLLM{replies: []string{"No rational plan is required. Hello!"}}
		p := NewPlanner(provider, "plan it", &fakeHistory{err: errors.New("db down")}, logger.NewNopLogger())

		v, err := p.Plan(context.Background(), orchestrator.NewState("s", "u", "hi"))
		require.NoError(t, err)
		assert.False(t, v.NeedsRetrieval)
		assert.Len(t, provider.calls[0], 2)
	})

	t.Run("completion error", func(t *testing.T) {
		p := NewPlanner(&fakeLLM{err: errors.New("timeout")}, "p", nil, logger.NewNopLogger())
		_, err := p.Plan(context.Background(), orchestrator.NewState("s", "u", "q"))
		assert.Error(t, err)
	})
}

func TestAnswerer(t *testing.T) {
	st := orchestrator.NewState("s", "u", "List deals")
	st.Plan = "1. list"
	st.Rows = deals("d1", "d2")

	plain := NewPlainAnswerer(&fakeLLM{replies: []string{"  Two deals.  "}}, "p", logger.NewNopLogger())
	text, err := plain.Answer(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "Two deals.", text)
	assert.Equal(t, 10, st.Usage.Total())

	table := NewTableAnswerer(&fakeLLM{replies: []string{"Two deals."}}, "t", logger.NewNopLogger())
	text, err = table.Answer(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Two deals.\n\n| deal_id | sector | title |"))
	assert.Contains(t, text, "| d2 | Tech | Deal d2 |")
}

func TestRenderTable_TruncatesAndEscapes(t *testing.T) {
	long := strings.Repeat("x", 200)
	out := RenderTable([]orchestrator.Row{{"a": long, "b": "p|q", "c": nil}})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], strings.Repeat("x", maxCellRunes-3)+"...")
	assert.Contains(t, lines[2], `p\|q`)
	assert.Empty(t, RenderTable(nil))
}

func TestVectorPrioritizer(t *testing.T) {
	newP := func(store *fakeRowStore, provider llm.LLMProvider) *VectorPrioritizer {
		return NewVectorPrioritizer(PrioritizerConfig{Source: "Deal", KeyColumn: "deal_id", FocusPrompt: "focus"},
			provider, &fakeEmbedder{}, store, logger.NewNopLogger())
	}

	t.Run("ranked rows first, unmatched keep order", func(t *testing.T) {
		store := &fakeRowStore{scored: []*contract.ScoredRowKey{{RowKey: "d3", Similarity: 0.9}, {RowKey: "d1", Similarity: 0.5}}}
		st := orchestrator.NewState("s", "u", "fintech deals")
		rows := deals("d1", "d2", "d3", "d4")

		out, err := newP(store, &fakeLLM{replies: []string{"A fintech acquisition"}}).Prioritize(context.Background(), st, rows)
		require.NoError(t, err)
		ids := make([]string, len(out))
		for i, r := range out {
			ids[i] = r["deal_id"].(string)
		}
		assert.Equal(t, []string{"d3", "d1", "d2", "d4"}, ids)
		assert.Equal(t, []string{"d1", "d2", "d3", "d4"}, store.keys)
		assert.Equal(t, 10, st.Usage.Total(), "focus completion usage is recorded")
	})

	t.Run("everything filtered keeps store order", func(t *testing.T) {
		rows := deals("d1", "d2")
		out, err := newP(&fakeRowStore{}, nil).Prioritize(context.Background(), orchestrator.NewState("s", "u", "q"), rows)
		require.NoError(t, err)
		assert.Equal(t, rows, out)
	})

	t.Run("rows without key column are untouched", func(t *testing.T) {
		store := &fakeRowStore{}
		rows := []orchestrator.Row{{"name": "a", "x": 1, "y": 2}, {"name": "b", "x": 1, "y": 2}}
		out, err := newP(store, nil).Prioritize(context.Background(), orchestrator.NewState("s", "u", "q"), rows)
		require.NoError(t, err)
		assert.Equal(t, rows, out)
		assert.Nil(t, store.keys)
	})

	t.Run("search error", func(t *testing.T) {
		_, err := newP(&fakeRowStore{err: errors.New("pg down")}, nil).
			Prioritize(context.Background(), orchestrator.NewState("s", "u", "q"), deals("d1", "d2"))
		assert.Error(t, err)
	})
}

func TestRowIndexer_BatchesAndDedupes(t *testing.T) {
	ids := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		ids = append(ids, "d"+strings.Repeat("x", i))
	}
	rows := append(deals(ids...), deals(ids[0])...)

	embedder := &fakeEmbedder{}
	store := &fakeRowStore{}
	n, err := NewRowIndexer(embedder, store, logger.NewNopLogger()).Index(context.Background(), "Deal", "deal_id", rows)
	require.NoError(t, err)

	assert.Equal(t, 40, n)
	require.Len(t, embedder.batches, 2)
	assert.Len(t, embedder.batches[0], indexBatchSize)
	assert.Len(t, store.upserted, 40)
	assert.Equal(t, "sector: Tech\ntitle: Deal d", store.upserted[0].Document)
	assert.Equal(t, "Deal", store.upserted[0].Source)
}

func TestLoadPrompts(t *testing.T) {
	defaults, err := LoadPrompts("", "sql")
	require.NoError(t, err)
	assert.Contains(t, defaults.Generator, "```sql")

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("planner: custom planner\n"), 0o600))

	p, err := LoadPrompts(path, "cypher")
	require.NoError(t, err)
	assert.Equal(t, "custom planner", p.Planner)
	assert.Contains(t, p.Generator, "```cypher")

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"), "cypher")
	assert.Error(t, err)
}
