package valuestore

import (
	"context"
	"fmt"
	"regexp"

	"ai-queryrefine-be/pkg/resolver"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore answers value lookups against relational tables: label is the table, property the column.
// Similarity needs the fuzzystrmatch extension (created by cmd/migrate).
type PostgresStore struct {
	db *gorm.DB
	// TextSearchConfig is the to_tsvector configuration used for full-text lookups
	TextSearchConfig string
}

var _ resolver.ValueStore = (*PostgresStore)(nil)

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db, TextSearchConfig: "simple"}
}

var sqlIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func tableAndColumn(target resolver.Target) (clause.Table, clause.Column, error) {
	if !sqlIdentifier.MatchString(target.Label) {
		return clause.Table{}, clause.Column{}, fmt.Errorf("invalid table name %q", target.Label)
	}
	if !sqlIdentifier.MatchString(target.Property) {
		return clause.Table{}, clause.Column{}, fmt.Errorf("invalid column name %q", target.Property)
	}
	return clause.Table{Name: target.Label}, clause.Column{Name: target.Property}, nil
}

func (s *PostgresStore) ExactMatch(ctx context.Context, target resolver.Target, value string) (bool, error) {
	table, column, err := tableAndColumn(target)
	if err != nil {
		return false, err
	}

	var found []string
	err = s.db.WithContext(ctx).
		Raw("SELECT ?::text FROM ? WHERE ?::text = ? LIMIT 1", column, table, column, value).
		Scan(&found).Error
	if err != nil {
		return false, fmt.Errorf("exact match on %s: %w", target, err)
	}
	return len(found) > 0, nil
}

// FulltextSearch ranks rows with ts_rank. The index name is informational here since
// Postgres picks a matching GIN index on its own.
func (s *PostgresStore) FulltextSearch(ctx context.Context, indexName string, target resolver.Target, term string, limit int) ([]string, error) {
	table, column, err := tableAndColumn(target)
	if err != nil {
		return nil, err
	}

	var values []string
	err = s.db.WithContext(ctx).Raw(
		`SELECT value FROM (
			SELECT ?::text AS value, MAX(ts_rank(to_tsvector(?::regconfig, ?::text), plainto_tsquery(?::regconfig, ?))) AS rank
			FROM ?
			WHERE to_tsvector(?::regconfig, ?::text) @@ plainto_tsquery(?::regconfig, ?)
			GROUP BY 1
		) ranked ORDER BY rank DESC LIMIT ?`,
		column, s.TextSearchConfig, column, s.TextSearchConfig, term,
		table,
		s.TextSearchConfig, column, s.TextSearchConfig, term,
		limit,
	).Scan(&values).Error
	if err != nil {
		return nil, fmt.Errorf("fulltext query on %s: %w", indexName, err)
	}
	return values, nil
}

// SimilaritySearch scores 1 - levenshtein/maxLength, the same measure apoc uses on the graph side
func (s *PostgresStore) SimilaritySearch(ctx context.Context, target resolver.Target, term string, minScore *float64, limit int) ([]string, error) {
	table, column, err := tableAndColumn(target)
	if err != nil {
		return nil, err
	}

	floor := -1.0
	if minScore != nil {
		floor = *minScore
	}

	var values []string
	err = s.db.WithContext(ctx).Raw(
		`SELECT value FROM (
			SELECT DISTINCT ?::text AS value,
				1 - levenshtein(left(?::text, 255), left(?, 255))::float / GREATEST(length(?::text), length(?), 1) AS similarity
			FROM ?
			WHERE ? IS NOT NULL
		) scored WHERE similarity > ? ORDER BY similarity DESC LIMIT ?`,
		column, column, term, column, term,
		table,
		column,
		floor, limit,
	).Scan(&values).Error
	if err != nil {
		return nil, fmt.Errorf("similarity search on %s: %w", target, err)
	}
	return values, nil
}
