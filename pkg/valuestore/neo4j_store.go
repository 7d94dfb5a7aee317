package valuestore

import (
	"context"
	"fmt"

	"ai-queryrefine-be/pkg/graphdb"
	"ai-queryrefine-be/pkg/resolver"
)

// Neo4jStore answers value lookups against the knowledge graph.
// Similarity ranking uses apoc.text.levenshteinSimilarity, so APOC must be installed.
type Neo4jStore struct {
	client *graphdb.Client
}

var _ resolver.ValueStore = (*Neo4jStore)(nil)

func NewNeo4jStore(client *graphdb.Client) *Neo4jStore {
	return &Neo4jStore{client: client}
}

// matchClause returns the MATCH pattern binding n and the quoted property name
func matchClause(target resolver.Target) (string, string, error) {
	label, err := graphdb.QuoteIdentifier(target.Label)
	if err != nil {
		return "", "", err
	}
	prop, err := graphdb.QuoteIdentifier(target.Property)
	if err != nil {
		return "", "", err
	}

	if target.Kind == resolver.KindRelationship {
		return fmt.Sprintf("()-[n:%s]-()", label), prop, nil
	}
	return fmt.Sprintf("(n:%s)", label), prop, nil
}

func (s *Neo4jStore) ExactMatch(ctx context.Context, target resolver.Target, value string) (bool, error) {
	match, prop, err := matchClause(target)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf("MATCH %s WHERE n.%s = $value RETURN n.%s AS value LIMIT 1", match, prop, prop)
	values, err := s.collect(ctx, query, map[string]any{"value": value})
	if err != nil {
		return false, fmt.Errorf("exact match on %s: %w", target, err)
	}
	return len(values) > 0, nil
}

func (s *Neo4jStore) FulltextSearch(ctx context.Context, indexName string, target resolver.Target, term string, limit int) ([]string, error) {
	prop, err := graphdb.QuoteIdentifier(target.Property)
	if err != nil {
		return nil, err
	}

	procedure, yield := "db.index.fulltext.queryNodes", "node"
	if target.Kind == resolver.KindRelationship {
		procedure, yield = "db.index.fulltext.queryRelationships", "relationship"
	}

	query := fmt.Sprintf(
		"CALL %s($index, $term) YIELD %s AS n, score RETURN n.%s AS value LIMIT $limit",
		procedure, yield, prop,
	)
	values, err := s.collect(ctx, query, map[string]any{
		"index": indexName,
		"term":  term,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext query on %s: %w", indexName, err)
	}
	return values, nil
}

func (s *Neo4jStore) SimilaritySearch(ctx context.Context, target resolver.Target, term string, minScore *float64, limit int) ([]string, error) {
	match, prop, err := matchClause(target)
	if err != nil {
		return nil, err
	}

	params := map[string]any{"term": term, "limit": limit}
	where := fmt.Sprintf("n.%s IS NOT NULL", prop)
	if minScore != nil {
		where = "similarity > $minScore AND " + where
		params["minScore"] = *minScore
	}

	query := fmt.Sprintf(
		"MATCH %s WITH n, apoc.text.levenshteinSimilarity(toString(n.%s), $term) AS similarity "+
			"WHERE %s RETURN DISTINCT n.%s AS value, similarity ORDER BY similarity DESC LIMIT $limit",
		match, prop, where, prop,
	)
	values, err := s.collect(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("similarity search on %s: %w", target, err)
	}
	return values, nil
}

func (s *Neo4jStore) collect(ctx context.Context, query string, params map[string]any) ([]string, error) {
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var values []string
	for result.Next(ctx) {
		if v := graphdb.StringValue(result.Record(), "value"); v != "" {
			values = append(values, v)
		}
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
