package valuestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ai-queryrefine-be/pkg/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexRegistry(t *testing.T) {
	reg, err := NewIndexRegistry([]IndexEntry{
		{Label: "Company", Property: "description"},
		{Label: "HAS_COMMENT", Property: "text", Kind: "relationship", Name: "project_comment_text"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	name, ok := reg.IndexFor(resolver.Target{Label: "Company", Property: "description", Kind: resolver.KindNode})
	require.True(t, ok)
	assert.Equal(t, "fulltext_company_description", name)

	_, ok = reg.IndexFor(resolver.Target{Label: "Company", Property: "name", Kind: resolver.KindNode})
	assert.False(t, ok)

	_, ok = reg.IndexFor(resolver.Target{Label: "company", Property: "DESCRIPTION", Kind: resolver.KindNode})
	assert.False(t, ok, "labels and properties keep their case")

	target, ok := reg.TargetForIndex("project_comment_text")
	require.True(t, ok)
	assert.Equal(t, resolver.KindRelationship, target.Kind)
	assert.Equal(t, "HAS_COMMENT", target.Label)
}

func TestIndexRegistry_Validation(t *testing.T) {
	tests := []struct {
		name  string
		entry IndexEntry
	}{
		{"missing property", IndexEntry{Label: "Company"}},
		{"unknown kind", IndexEntry{Label: "Company", Property: "name", Kind: "edge"}},
		{"unnamed relationship", IndexEntry{Label: "LOCATED_IN", Property: "since", Kind: "relationship"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIndexRegistry([]IndexEntry{tt.entry})
			assert.Error(t, err)
		})
	}
}

func TestLoadIndexRegistry(t *testing.T) {
	reg, err := LoadIndexRegistry("")
	require.NoError(t, err)
	assert.Zero(t, reg.Len())

	path := filepath.Join(t.TempDir(), "indexes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indexes:\n  - label: Project\n    property: summary\n"), 0o600))

	reg, err = LoadIndexRegistry(path)
	require.NoError(t, err)
	_, ok := reg.TargetForIndex("fulltext_project_summary")
	assert.True(t, ok)
}

type recordingCreator struct {
	names []string
	fail  string
}

func (c *recordingCreator) EnsureFulltextIndex(_ context.Context, spec IndexSpec) error {
	if spec.Name == c.fail {
		return errors.New("permission denied")
	}
	c.names = append(c.names, spec.Name)
	return nil
}

func TestEnsureIndexes(t *testing.T) {
	reg, err := NewIndexRegistry([]IndexEntry{
		{Label: "Person", Property: "name"},
		{Label: "Company", Property: "name"},
		{Label: "HAS_COMMENT", Property: "text", Kind: "relationship", Name: "comment_text"},
	})
	require.NoError(t, err)

	specs := reg.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "comment_text", specs[0].Name)
	assert.Equal(t, resolver.KindRelationship, specs[0].Target.Kind)

	creator := &recordingCreator{}
	require.NoError(t, EnsureIndexes(context.Background(), creator, reg))
	assert.Equal(t, []string{"comment_text", "fulltext_company_name", "fulltext_person_name"}, creator.names)

	failing := &recordingCreator{fail: "fulltext_company_name"}
	err = EnsureIndexes(context.Background(), failing, reg)
	assert.ErrorContains(t, err, "fulltext_company_name")
	assert.Equal(t, []string{"comment_text"}, failing.names)
}
