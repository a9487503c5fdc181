package bigquery

import (
	"math/big"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestBatches(t *testing.T) {
	rows := make([]int, 1201)
	got := batches(rows, 500)

	assert.Len(t, got, 3)
	assert.Len(t, got[0], 500)
	assert.Len(t, got[1], 500)
	assert.Len(t, got[2], 201)

	assert.Empty(t, batches([]int{}, 500))
}

func TestDataset_Qualified(t *testing.T) {
	ds := Dataset{ProjectID: "proj", DatasetID: "altcredit"}
	assert.Equal(t, "`proj.altcredit.knot_products`", ds.qualified("knot_products"))
}

func TestRowMap_ConvertsValues(t *testing.T) {
	row := rowMap(
		[]string{"merchant_name", "total", "day", "tags", "missing"},
		[]bigquery.Value{
			"Amazon",
			big.NewRat(2599, 100),
			civil.Date{Year: 2025, Month: 3, Day: 9},
			[]bigquery.Value{big.NewRat(1, 2), "x"},
		},
	)

	assert.Equal(t, "Amazon", row["merchant_name"])
	assert.InDelta(t, 25.99, row["total"], 1e-9)
	assert.Equal(t, "2025-03-09", row["day"])
	assert.Equal(t, []any{0.5, "x"}, row["tags"])
	assert.NotContains(t, row, "missing")
}
