package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hurou927/kin-subset/internal/ctxlog"
)

// Save creates the tables if needed and writes one run row plus its
// decisions in a single transaction.
func Save(ctx context.Context, pool *pgxpool.Pool, runRow []any, decisions [][]any) error {
	logger := ctxlog.FromContext(ctx)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, t := range []*Table{&RunsTable, &DecisionsTable} {
		if _, err := tx.Exec(ctx, t.CreateSQL()); err != nil {
			return fmt.Errorf("creating %s: %w", t.FullName(), err)
		}
	}

	if _, err := tx.Exec(ctx, insertSQL(&RunsTable), runRow...); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{DecisionsTable.Schema, DecisionsTable.Name},
		DecisionsTable.ColumnNames(),
		pgx.CopyFromRows(decisions),
	)
	if err != nil {
		return fmt.Errorf("copying decisions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	logger.Info("run persisted", "run_id", runRow[0], "decisions", n)
	return nil
}

func insertSQL(t *Table) string {
	params := make([]string, len(t.Columns))
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.FullName(), strings.Join(t.ColumnNames(), ", "), strings.Join(params, ", "))
}
