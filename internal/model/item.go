// Package model はドメインモデルを定義する。
package model

import "time"

// Item は在庫品目を表す。
type Item struct {
	ID         string
	Name       string
	Quantity   int
	Price      float64
	LocationID *string // 保管場所の参照（任意）
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ItemInput は品目の作成・更新リクエストの入力値を表す。
// バリデーション前の値を保持する。
type ItemInput struct {
	Name       string
	Quantity   int
	Price      float64
	LocationID *string
}

// StockLevel は在庫水準の区分を表す。
type StockLevel string

const (
	// StockLevelInStock は十分な在庫があることを示す。
	StockLevelInStock StockLevel = "in_stock"
	// StockLevelLow は在庫が少なくなっていることを示す。
	StockLevelLow StockLevel = "low_stock"
	// StockLevelCritical は補充が必要な水準であることを示す。
	StockLevelCritical StockLevel = "critical"
)

// InventorySummary はダッシュボードに表示する在庫の集計値を表す。
type InventorySummary struct {
	ItemCount     int
	TotalQuantity int
	TotalValue    float64
	LowStockCount int
}
