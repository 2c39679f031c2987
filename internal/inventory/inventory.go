// Package inventory は在庫水準の判定と在庫集計を提供する。
package inventory

import (
	"math"

	"github.com/hitoshi/stockflow/internal/model"
)

// 在庫水準の境界値
const (
	inStockAbove  = 50
	lowStockAbove = 10
)

// DefaultLowStockThreshold は低在庫とみなす数量の既定しきい値。
const DefaultLowStockThreshold = 10

// Level は数量から在庫水準を判定する。
// 50超はin_stock、10超はlow_stock、それ以外はcritical。
func Level(quantity int) model.StockLevel {
	switch {
	case quantity > inStockAbove:
		return model.StockLevelInStock
	case quantity > lowStockAbove:
		return model.StockLevelLow
	default:
		return model.StockLevelCritical
	}
}

// IsLowStock は数量がしきい値未満かを判定する。
func IsLowStock(quantity, threshold int) bool {
	return quantity < threshold
}

// Summarize は品目一覧の集計値を返す。
// 合計金額は数量×単価の総和をセント単位に丸めた値。
func Summarize(items []*model.Item, lowStockThreshold int) model.InventorySummary {
	var (
		summary model.InventorySummary
		cents   float64
	)
	for _, it := range items {
		summary.ItemCount++
		summary.TotalQuantity += it.Quantity
		cents += float64(it.Quantity) * math.Round(it.Price*100)
		if IsLowStock(it.Quantity, lowStockThreshold) {
			summary.LowStockCount++
		}
	}
	summary.TotalValue = math.Round(cents) / 100
	return summary
}
