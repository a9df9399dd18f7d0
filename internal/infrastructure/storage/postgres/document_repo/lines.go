package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"wareflow/internal/core/id"
	"wareflow/internal/infrastructure/storage/postgres"
)

// lineReplacementBatch builds the delete + multi-row insert pair that
// swaps a document's line rows. insertCount of zero skips the insert
// (the builder carries no values then and would not produce valid SQL).
func lineReplacementBatch(linesTable string, docID id.ID, insert squirrel.InsertBuilder, insertCount int) ([]postgres.BatchQuery, error) {
	queries := []postgres.BatchQuery{{
		SQL:  "DELETE FROM " + linesTable + " WHERE document_id = $1",
		Args: []any{docID},
	}}

	if insertCount == 0 {
		return queries, nil
	}

	sql, args, err := insert.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert lines: %w", err)
	}

	return append(queries, postgres.BatchQuery{SQL: sql, Args: args}), nil
}

// ReplaceLines swaps a document's line rows inside the current
// transaction. The delete and the insert ride one batch round-trip.
func (r *BaseDocumentRepo[T]) ReplaceLines(ctx context.Context, linesTable string, docID id.ID, insert squirrel.InsertBuilder, insertCount int) error {
	queries, err := lineReplacementBatch(linesTable, docID, insert, insertCount)
	if err != nil {
		return err
	}

	executor := postgres.NewBatchExecutor(r.txManager)
	if err := executor.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("replace lines: %w", err)
	}
	return nil
}
