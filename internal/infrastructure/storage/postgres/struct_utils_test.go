package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wareflow/internal/core/entity"
	"wareflow/internal/core/id"
)

type mockDocument struct {
	entity.BaseDocument
	Number      string `db:"number" json:"number"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	Posted      bool   `db:"posted" json:"posted"`
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[mockDocument]()

	expectedCols := []string{
		"id", "deletion_mark", "version", "attributes",
		"created_at", "updated_at", "created_by", "updated_by",
		"number", "warehouse_id", "posted",
	}

	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	doc := mockDocument{
		BaseDocument: entity.BaseDocument{
			BaseEntity: entity.BaseEntity{
				ID:           id.New(),
				DeletionMark: true,
				Version:      5,
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		Number:      "TRF-2026-00042",
		WarehouseID: id.New(),
		Posted:      true,
	}

	m := StructToMap(doc)

	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, "TRF-2026-00042", m["number"])
	assert.Equal(t, doc.WarehouseID, m["warehouse_id"])
	assert.Equal(t, true, m["posted"])
}
