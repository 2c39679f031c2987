// Package item は在庫品目のCRUDと集計を提供する。
package item

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/stockflow/internal/inventory"
	"github.com/hitoshi/stockflow/internal/model"
	"github.com/hitoshi/stockflow/internal/repository"
)

const (
	// maxNameLength は品目名の最大文字数。
	maxNameLength = 255

	// maxQuantity はitems.quantity（INTEGER）に収まる最大値。
	maxQuantity = math.MaxInt32

	// priceLimit はitems.price（NUMERIC(12, 2)）の上限（この値自体は格納できない）。
	priceLimit = 1e10
)

// ItemService は在庫品目の取得・作成・更新・削除を提供するサービス。
type ItemService struct {
	itemRepo          repository.ItemRepository
	lowStockThreshold int
	now               func() time.Time
}

// NewItemService はItemServiceの新しいインスタンスを生成する。
func NewItemService(itemRepo repository.ItemRepository, lowStockThreshold int) *ItemService {
	return &ItemService{
		itemRepo:          itemRepo,
		lowStockThreshold: lowStockThreshold,
		now:               time.Now,
	}
}

// ListItems は品目を名前順で返す。queryが空でない場合は名前の部分一致で絞り込む。
func (s *ItemService) ListItems(ctx context.Context, query string) ([]*model.Item, error) {
	items, err := s.itemRepo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	if items == nil {
		items = []*model.Item{}
	}
	return items, nil
}

// GetItem は品目を返す。存在しない場合はITEM_NOT_FOUNDのAPIErrorを返す。
func (s *ItemService) GetItem(ctx context.Context, id string) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}
	return item, nil
}

// CreateItem は入力値を検証して品目を作成する。
func (s *ItemService) CreateItem(ctx context.Context, input model.ItemInput) (*model.Item, error) {
	input, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	item := &model.Item{
		ID:         uuid.New().String(),
		Name:       input.Name,
		Quantity:   input.Quantity,
		Price:      input.Price,
		LocationID: input.LocationID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	slog.Info("item created",
		slog.String("item_id", item.ID),
		slog.Int("quantity", item.Quantity),
	)
	return item, nil
}

// UpdateItem は入力値を検証して品目を上書き更新する。
func (s *ItemService) UpdateItem(ctx context.Context, id string, input model.ItemInput) (*model.Item, error) {
	input, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	// 1. 既存品目を取得（created_atを維持するため）
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. 上書き
	item.Name = input.Name
	item.Quantity = input.Quantity
	item.Price = input.Price
	item.LocationID = input.LocationID
	item.UpdatedAt = s.now().UTC()

	found, err := s.itemRepo.Update(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	if !found {
		return nil, model.NewItemNotFoundError(id)
	}

	return item, nil
}

// DeleteItem は品目を削除する。存在しない場合はITEM_NOT_FOUNDのAPIErrorを返す。
func (s *ItemService) DeleteItem(ctx context.Context, id string) error {
	found, err := s.itemRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if !found {
		return model.NewItemNotFoundError(id)
	}

	slog.Info("item deleted", slog.String("item_id", id))
	return nil
}

// Summary は全品目の在庫集計を返す。
func (s *ItemService) Summary(ctx context.Context) (model.InventorySummary, error) {
	items, err := s.itemRepo.List(ctx, "")
	if err != nil {
		return model.InventorySummary{}, fmt.Errorf("failed to list items: %w", err)
	}
	return inventory.Summarize(items, s.lowStockThreshold), nil
}

// validateInput は入力値を正規化して検証する。
func validateInput(input model.ItemInput) (model.ItemInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	switch {
	case input.Name == "":
		return input, model.NewValidationError("name", "is required")
	case utf8.RuneCountInString(input.Name) > maxNameLength:
		return input, model.NewValidationError("name", fmt.Sprintf("must be at most %d characters", maxNameLength))
	case input.Quantity < 0:
		return input, model.NewValidationError("quantity", "must not be negative")
	case input.Quantity > maxQuantity:
		return input, model.NewValidationError("quantity", fmt.Sprintf("must be at most %d", maxQuantity))
	case math.IsNaN(input.Price) || math.IsInf(input.Price, 0):
		return input, model.NewValidationError("price", "must be a number")
	case input.Price < 0:
		return input, model.NewValidationError("price", "must not be negative")
	}

	// 丸めで桁が繰り上がる値（9999999999.995など）も上限で弾く
	input.Price = math.Round(input.Price*100) / 100
	if input.Price >= priceLimit {
		return input, model.NewValidationError("price", "must be less than 10000000000")
	}
	if input.LocationID != nil {
		loc := strings.TrimSpace(*input.LocationID)
		if loc == "" {
			input.LocationID = nil
		} else {
			input.LocationID = &loc
		}
	}
	return input, nil
}
