package valuestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ai-queryrefine-be/pkg/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var companyName = resolver.Target{Label: "Company", Property: "name", Kind: resolver.KindNode}

func seededStore() *MemoryStore {
	s := NewMemoryStore()
	s.Add(companyName, "BambooHR", "Bamboo Health", "Gusto", "Rippling", "Gusto")
	return s
}

func TestMemoryStore_ExactMatch(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	ok, err := s.ExactMatch(ctx, companyName, "Gusto")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ExactMatch(ctx, companyName, "gusto")
	require.NoError(t, err)
	assert.False(t, ok, "exact match is case sensitive")

	ok, err = s.ExactMatch(ctx, resolver.Target{Label: "Company", Property: "city"}, "Gusto")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_TargetsAreCaseSensitive(t *testing.T) {
	s := seededStore()
	s.Add(resolver.Target{Label: "company", Property: "NAME", Kind: resolver.KindNode}, "Lowercase Co")
	ctx := context.Background()

	ok, err := s.ExactMatch(ctx, companyName, "Lowercase Co")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ExactMatch(ctx, resolver.Target{Label: "company", Property: "NAME", Kind: resolver.KindNode}, "Gusto")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.SimilaritySearch(ctx, companyName, "Lowercase", nil, 10)
	require.NoError(t, err)
	assert.NotContains(t, got, "Lowercase Co")
}

func TestMemoryStore_SimilaritySearch(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	t.Run("floor filters weak candidates", func(t *testing.T) {
		floor := 0.3
		got, err := s.SimilaritySearch(ctx, companyName, "Bamboo HR", &floor, 4)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "BambooHR", got[0])
		assert.NotContains(t, got, "Rippling")
	})

	t.Run("no floor returns everything deduplicated", func(t *testing.T) {
		got, err := s.SimilaritySearch(ctx, companyName, "zzz", nil, 10)
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("limit is honoured", func(t *testing.T) {
		got, err := s.SimilaritySearch(ctx, companyName, "Bamboo", nil, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("unknown target yields nothing", func(t *testing.T) {
		got, err := s.SimilaritySearch(ctx, resolver.Target{Label: "Person", Property: "name"}, "x", nil, 4)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryStore_FulltextSearch(t *testing.T) {
	s := seededStore()

	got, err := s.FulltextSearch(context.Background(), "fulltext_company_name", companyName, "bamboo", 4)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BambooHR", "Bamboo Health"}, got)

	got, err = s.FulltextSearch(context.Background(), "fulltext_company_name", companyName, "   ", 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"kitten", "kitten", 1},
		{"", "", 1},
		{"abcd", "abce", 0.75},
		{"abc", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestLoadMemoryStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "values.yaml")
	fixture := `
nodes:
  Company:
    name: [BambooHR, Gusto]
relationships:
  LOCATED_IN:
    since: ["2010"]
`
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	s, err := LoadMemoryStore(path)
	require.NoError(t, err)

	ok, err := s.ExactMatch(context.Background(), companyName, "BambooHR")
	require.NoError(t, err)
	assert.True(t, ok)

	rel := resolver.Target{Label: "LOCATED_IN", Property: "since", Kind: resolver.KindRelationship}
	ok, err = s.ExactMatch(context.Background(), rel, "2010")
	require.NoError(t, err)
	assert.True(t, ok)
}
