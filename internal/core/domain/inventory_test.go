package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		name  string
		total int
		found bool
		want  StockStatus
	}{
		{"lookup miss", 5, false, StockNotFound},
		{"zero units", 0, true, StockOutOfStock},
		{"negative treated as out", -1, true, StockOutOfStock},
		{"one unit", 1, true, StockLowStock},
		{"threshold units", 2, true, StockLowStock},
		{"above threshold", 3, true, StockInStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStock(tt.total, tt.found))
		})
	}
}

func TestLocationInventoryTotal(t *testing.T) {
	assert.Equal(t, 0, LocationInventory{}.Total())
	assert.Equal(t, 7, LocationInventory{"Niagara Falls": 4, "Welland": 3}.Total())
}

func TestSyncStatsCountStatus(t *testing.T) {
	stats := &SyncStats{}
	stats.CountStatus(StockInStock)
	stats.CountStatus(StockInStock)
	stats.CountStatus(StockLowStock)
	stats.CountStatus(StockOutOfStock)
	stats.CountStatus(StockNotFound)

	assert.Equal(t, 2, stats.InStock)
	assert.Equal(t, 1, stats.LowStock)
	assert.Equal(t, 1, stats.OutOfStock)
	assert.Equal(t, 1, stats.NotFound)
}
