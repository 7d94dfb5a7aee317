package valuestore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"ai-queryrefine-be/pkg/resolver"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

// MemoryStore keeps canonical values in process. Used by the valuemap CLI with
// fixture files and by tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]string
}

var _ resolver.ValueStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]string)}
}

// fixtureFile layout:
//
//	nodes:
//	  Company:
//	    name: [BambooHR, Gusto]
//	relationships:
//	  LOCATED_IN:
//	    since: ["2010"]
type fixtureFile struct {
	Nodes         map[string]map[string][]string `yaml:"nodes"`
	Relationships map[string]map[string][]string `yaml:"relationships"`
}

func LoadMemoryStore(path string) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read value fixtures: %w", err)
	}

	var f fixtureFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse value fixtures %s: %w", path, err)
	}

	store := NewMemoryStore()
	for label, props := range f.Nodes {
		for prop, vals := range props {
			store.Add(resolver.Target{Label: label, Property: prop, Kind: resolver.KindNode}, vals...)
		}
	}
	for label, props := range f.Relationships {
		for prop, vals := range props {
			store.Add(resolver.Target{Label: label, Property: prop, Kind: resolver.KindRelationship}, vals...)
		}
	}
	return store, nil
}

func (s *MemoryStore) Add(target resolver.Target, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := targetKey(target)
	for _, v := range values {
		if v == "" {
			continue
		}
		s.values[key] = append(s.values[key], v)
	}
}

func (s *MemoryStore) snapshot(target resolver.Target) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.values[targetKey(target)]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func (s *MemoryStore) ExactMatch(_ context.Context, target resolver.Target, value string) (bool, error) {
	for _, v := range s.snapshot(target) {
		if v == value {
			return true, nil
		}
	}
	return false, nil
}

// FulltextSearch matches values sharing at least one case-insensitive token with term,
// ranked by the number of shared tokens
func (s *MemoryStore) FulltextSearch(_ context.Context, _ string, target resolver.Target, term string, limit int) ([]string, error) {
	terms := strings.Fields(strings.ToLower(term))
	if len(terms) == 0 {
		return nil, nil
	}

	type hit struct {
		value string
		score int
	}
	var hits []hit
	for _, v := range s.snapshot(target) {
		lower := strings.ToLower(v)
		score := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{value: v, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]string, 0, limit)
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		out = append(out, h.value)
	}
	return out, nil
}

// Similarity is 1 - distance/maxLength, matching apoc.text.levenshteinSimilarity
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func (s *MemoryStore) SimilaritySearch(_ context.Context, target resolver.Target, term string, minScore *float64, limit int) ([]string, error) {
	type scored struct {
		value string
		score float64
	}

	seen := make(map[string]struct{})
	var ranked []scored
	for _, v := range s.snapshot(target) {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}

		score := Similarity(v, term)
		if minScore != nil && score <= *minScore {
			continue
		}
		ranked = append(ranked, scored{value: v, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]string, 0, limit)
	for _, r := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, r.value)
	}
	return out, nil
}
