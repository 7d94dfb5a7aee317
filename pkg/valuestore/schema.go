package valuestore

import (
	"context"
	"fmt"

	"ai-queryrefine-be/pkg/graphdb"
	"ai-queryrefine-be/pkg/resolver"
)

// IndexCreator creates the full-text index a registry entry refers to
type IndexCreator interface {
	EnsureFulltextIndex(ctx context.Context, spec IndexSpec) error
}

var (
	_ IndexCreator = (*Neo4jStore)(nil)
	_ IndexCreator = (*PostgresStore)(nil)
)

// EnsureIndexes creates every registered index that does not exist yet
func EnsureIndexes(ctx context.Context, creator IndexCreator, reg *IndexRegistry) error {
	for _, spec := range reg.Specs() {
		if err := creator.EnsureFulltextIndex(ctx, spec); err != nil {
			return fmt.Errorf("ensure index %s: %w", spec.Name, err)
		}
	}
	return nil
}

func (s *Neo4jStore) EnsureFulltextIndex(ctx context.Context, spec IndexSpec) error {
	name, err := graphdb.QuoteIdentifier(spec.Name)
	if err != nil {
		return err
	}
	label, err := graphdb.QuoteIdentifier(spec.Target.Label)
	if err != nil {
		return err
	}
	prop, err := graphdb.QuoteIdentifier(spec.Target.Property)
	if err != nil {
		return err
	}

	pattern := fmt.Sprintf("(n:%s)", label)
	if spec.Target.Kind == resolver.KindRelationship {
		pattern = fmt.Sprintf("()-[n:%s]-()", label)
	}
	query := fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR %s ON EACH [n.%s]", name, pattern, prop)

	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

// EnsureFulltextIndex creates a GIN expression index matching the expression FulltextSearch filters on
func (s *PostgresStore) EnsureFulltextIndex(ctx context.Context, spec IndexSpec) error {
	if !sqlIdentifier.MatchString(spec.Name) {
		return fmt.Errorf("invalid index name %q", spec.Name)
	}
	if !sqlIdentifier.MatchString(s.TextSearchConfig) {
		return fmt.Errorf("invalid text search config %q", s.TextSearchConfig)
	}
	table, column, err := tableAndColumn(spec.Target)
	if err != nil {
		return err
	}

	ddl := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (to_tsvector('%s'::regconfig, %s::text))`,
		spec.Name, table.Name, s.TextSearchConfig, column.Name,
	)
	return s.db.WithContext(ctx).Exec(ddl).Error
}
