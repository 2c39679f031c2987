package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hitoshi/stockflow/internal/model"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		quantity int
		want     model.StockLevel
	}{
		{0, model.StockLevelCritical},
		{10, model.StockLevelCritical},
		{11, model.StockLevelLow},
		{50, model.StockLevelLow},
		{51, model.StockLevelInStock},
		{1000, model.StockLevelInStock},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.quantity), "Level(%d)", tt.quantity)
	}
}

func TestIsLowStock(t *testing.T) {
	assert.True(t, IsLowStock(9, 10))
	assert.False(t, IsLowStock(10, 10))
	assert.False(t, IsLowStock(0, 0))
}

func TestSummarize(t *testing.T) {
	items := []*model.Item{
		{Name: "Widget", Quantity: 5, Price: 2.50},
		{Name: "Bolt", Quantity: 60, Price: 1.00},
	}

	got := Summarize(items, DefaultLowStockThreshold)

	assert.Equal(t, model.InventorySummary{
		ItemCount:     2,
		TotalQuantity: 65,
		TotalValue:    72.50,
		LowStockCount: 1,
	}, got)
}

func TestSummarize_RoundsToCents(t *testing.T) {
	items := []*model.Item{
		{Quantity: 3, Price: 0.10},
		{Quantity: 7, Price: 0.20},
	}

	got := Summarize(items, DefaultLowStockThreshold)

	assert.Equal(t, 1.70, got.TotalValue)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, model.InventorySummary{}, Summarize(nil, DefaultLowStockThreshold))
}
