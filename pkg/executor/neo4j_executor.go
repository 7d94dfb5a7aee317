package executor

import (
	"context"
	"fmt"
	"time"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/graphdb"
	"ai-queryrefine-be/pkg/orchestrator"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const DefaultTxTimeout = 300 * time.Second

// Neo4jExecutor runs generated Cypher in a read-mode explicit transaction.
// The transaction is rolled back on any error and closed without commit otherwise.
type Neo4jExecutor struct {
	client  *graphdb.Client
	timeout time.Duration
	// rowLimit stops reading after rowLimit+1 records; zero reads everything
	rowLimit int
	logger   logger.ILogger
}

func NewNeo4jExecutor(client *graphdb.Client, timeout time.Duration, rowLimit int, log logger.ILogger) *Neo4jExecutor {
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	return &Neo4jExecutor{client: client, timeout: timeout, rowLimit: rowLimit, logger: log}
}

func (e *Neo4jExecutor) Execute(ctx context.Context, query string) (rows []orchestrator.Row, err error) {
	session := e.client.ReadSession(ctx)
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx, neo4j.WithTxTimeout(e.timeout))
	if err != nil {
		return nil, &orchestrator.ExecutionError{Query: query, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				e.logger.Warn("Neo4jExecutor", "Rollback failed", map[string]interface{}{"error": rbErr.Error()})
			}
			return
		}
		_ = tx.Close(ctx)
	}()

	result, err := tx.Run(ctx, query, nil)
	if err != nil {
		return nil, &orchestrator.ExecutionError{Query: query, Err: err}
	}

	for !limitReached(len(rows), e.rowLimit) && result.Next(ctx) {
		rec := result.Record()
		row := make(orchestrator.Row, len(rec.Keys))
		for j, key := range rec.Keys {
			row[key] = normalizeGraphValue(rec.Values[j])
		}
		rows = append(rows, row)
	}
	if err = result.Err(); err != nil {
		return nil, &orchestrator.ExecutionError{Query: query, Err: err}
	}
	return rows, nil
}

// limitReached is true once one row past the limit has been read, enough for
// the caller to tell the result is oversized
func limitReached(read, limit int) bool {
	return limit > 0 && read > limit
}

// normalizeGraphValue turns driver types into JSON-friendly values.
// Temporal values become ISO-8601 strings; nodes and relationships become their property maps.
func normalizeGraphValue(v any) any {
	switch t := v.(type) {
	case neo4j.Date:
		return t.Time().Format("2006-01-02")
	case neo4j.LocalDateTime:
		return t.Time().Format("2006-01-02T15:04:05")
	case neo4j.LocalTime:
		return t.Time().Format("15:04:05")
	case neo4j.Time:
		return t.Time().Format("15:04:05Z07:00")
	case time.Time:
		return t.Format(time.RFC3339)
	case neo4j.Duration:
		return t.String()
	case neo4j.Node:
		return normalizeMap(t.Props)
	case neo4j.Relationship:
		return normalizeMap(t.Props)
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeGraphValue(item)
		}
		return out
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeGraphValue(v)
	}
	return out
}
