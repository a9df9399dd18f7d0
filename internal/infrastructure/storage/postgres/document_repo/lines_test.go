package document_repo

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wareflow/internal/core/id"
)

func TestLineReplacementBatch(t *testing.T) {
	docID := id.New()

	insert := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("doc_goods_receipt_lines").
		Columns("line_id", "document_id", "line_no").
		Values(id.New(), docID, 1).
		Values(id.New(), docID, 2)

	queries, err := lineReplacementBatch("doc_goods_receipt_lines", docID, insert, 2)
	require.NoError(t, err)
	require.Len(t, queries, 2)

	assert.Equal(t, "DELETE FROM doc_goods_receipt_lines WHERE document_id = $1", queries[0].SQL)
	assert.Equal(t, []any{docID}, queries[0].Args)

	assert.Contains(t, queries[1].SQL, "INSERT INTO doc_goods_receipt_lines")
	assert.Contains(t, queries[1].SQL, "($1,$2,$3),($4,$5,$6)")
	assert.Len(t, queries[1].Args, 6)
}

func TestLineReplacementBatch_NoLines(t *testing.T) {
	docID := id.New()

	insert := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("doc_transfer_lines").
		Columns("line_id", "document_id", "line_no")

	queries, err := lineReplacementBatch("doc_transfer_lines", docID, insert, 0)
	require.NoError(t, err)

	// Only the delete runs when the document has no lines.
	require.Len(t, queries, 1)
	assert.Equal(t, "DELETE FROM doc_transfer_lines WHERE document_id = $1", queries[0].SQL)
}
