package executor

import (
	"context"
	"fmt"
	"time"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/internal/repository/unitofwork"
	"ai-queryrefine-be/pkg/orchestrator"

	"gorm.io/gorm"
)

// statements is the part of SQLExecutor that talks to the open transaction
type statements interface {
	Prepare(tx *gorm.DB, timeout time.Duration) error
	Query(tx *gorm.DB, query string, rowLimit int) ([]map[string]interface{}, error)
}

// SQLExecutor runs generated SQL in a read-only unit of work with a statement timeout
type SQLExecutor struct {
	repoFactory unitofwork.RepositoryFactory
	stmts       statements
	timeout     time.Duration
	// rowLimit stops reading after rowLimit+1 rows; zero reads everything
	rowLimit int
	logger   logger.ILogger
}

func NewSQLExecutor(repoFactory unitofwork.RepositoryFactory, timeout time.Duration, rowLimit int, log logger.ILogger) *SQLExecutor {
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	return &SQLExecutor{repoFactory: repoFactory, stmts: gormStatements{}, timeout: timeout, rowLimit: rowLimit, logger: log}
}

func (e *SQLExecutor) Execute(ctx context.Context, query string) (rows []orchestrator.Row, err error) {
	uow := e.repoFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, &orchestrator.ExecutionError{Query: query, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	finished := false
	defer func() {
		if finished {
			return
		}
		if rbErr := uow.Rollback(); rbErr != nil {
			e.logger.Warn("SQLExecutor", "Rollback failed", map[string]interface{}{"error": rbErr.Error()})
		}
	}()

	tx := uow.DB()
	if err = e.stmts.Prepare(tx, e.timeout); err != nil {
		return nil, &orchestrator.ExecutionError{Query: query, Err: err}
	}

	raw, err := e.stmts.Query(tx, query, e.rowLimit)
	if err != nil {
		return nil, &orchestrator.ExecutionError{Query: query, Err: err}
	}

	// a failed commit ends the transaction too
	finished = true
	if err = uow.Commit(); err != nil {
		return nil, &orchestrator.ExecutionError{Query: query, Err: fmt.Errorf("commit: %w", err)}
	}

	rows = make([]orchestrator.Row, len(raw))
	for i, r := range raw {
		row := make(orchestrator.Row, len(r))
		for k, v := range r {
			row[k] = normalizeSQLValue(v)
		}
		rows[i] = row
	}
	return rows, nil
}

type gormStatements struct{}

func (gormStatements) Prepare(tx *gorm.DB, timeout time.Duration) error {
	if err := tx.Exec("SET TRANSACTION READ ONLY").Error; err != nil {
		return err
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())).Error
}

func (gormStatements) Query(tx *gorm.DB, query string, rowLimit int) ([]map[string]interface{}, error) {
	cursor, err := tx.Raw(query).Rows()
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var out []map[string]interface{}
	for !limitReached(len(out), rowLimit) && cursor.Next() {
		row := map[string]interface{}{}
		if err := tx.ScanRows(cursor, &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, cursor.Err()
}

func normalizeSQLValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	}
	return v
}
