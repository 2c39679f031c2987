package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/stockflow/internal/inventory"
	"github.com/hitoshi/stockflow/internal/model"
)

// maxRequestBodyBytes はリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// ItemServiceInterface は品目ハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	ListItems(ctx context.Context, query string) ([]*model.Item, error)
	GetItem(ctx context.Context, id string) (*model.Item, error)
	CreateItem(ctx context.Context, input model.ItemInput) (*model.Item, error)
	UpdateItem(ctx context.Context, id string, input model.ItemInput) (*model.Item, error)
	DeleteItem(ctx context.Context, id string) error
	Summary(ctx context.Context) (model.InventorySummary, error)
}

// ItemHandler は在庫品目のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// itemRequest は品目の作成・更新リクエストのボディ。
// 必須項目の欠落を検出するため数値はポインタで受け取る。
type itemRequest struct {
	Name       string   `json:"name"`
	Quantity   *int     `json:"quantity"`
	Price      *float64 `json:"price"`
	LocationID *string  `json:"location_id"`
}

// itemResponse は品目のレスポンス。
type itemResponse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Quantity   int              `json:"quantity"`
	Price      float64          `json:"price"`
	LocationID *string          `json:"location_id,omitempty"`
	StockLevel model.StockLevel `json:"stock_level"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// itemListResponse は品目一覧のレスポンス。
type itemListResponse struct {
	Data []itemResponse `json:"data"`
}

// summaryResponse は在庫集計のレスポンス。
type summaryResponse struct {
	ItemCount     int     `json:"item_count"`
	TotalQuantity int     `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
	LowStockCount int     `json:"low_stock_count"`
}

// ListItems は品目一覧を返す。
// GET /api/items?q=
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := itemListResponse{Data: make([]itemResponse, len(items))}
	for i, it := range items {
		resp.Data[i] = toItemResponse(it)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetItem は品目を返す。
// GET /api/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// CreateItem は品目を作成する。
// POST /api/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeItemRequest(w, r)
	if !ok {
		return
	}

	item, err := h.service.CreateItem(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// UpdateItem は品目を更新する。
// PUT /api/items/{id}
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeItemRequest(w, r)
	if !ok {
		return
	}

	item, err := h.service.UpdateItem(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// DeleteItem は品目を削除する。
// DELETE /api/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary は在庫集計を返す。
// GET /api/items/summary
func (h *ItemHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		ItemCount:     summary.ItemCount,
		TotalQuantity: summary.TotalQuantity,
		TotalValue:    summary.TotalValue,
		LowStockCount: summary.LowStockCount,
	})
}

// decodeItemRequest はリクエストボディを解析する。
// 失敗した場合はエラーレスポンスを書き込みfalseを返す。
func decodeItemRequest(w http.ResponseWriter, r *http.Request) (model.ItemInput, bool) {
	var req itemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeAPIError(w, model.NewInvalidRequestError())
		return model.ItemInput{}, false
	}

	switch {
	case req.Quantity == nil:
		writeAPIError(w, model.NewValidationError("quantity", "is required"))
		return model.ItemInput{}, false
	case req.Price == nil:
		writeAPIError(w, model.NewValidationError("price", "is required"))
		return model.ItemInput{}, false
	}

	return model.ItemInput{
		Name:       req.Name,
		Quantity:   *req.Quantity,
		Price:      *req.Price,
		LocationID: req.LocationID,
	}, true
}

// toItemResponse はドメインモデルをレスポンスに変換する。
func toItemResponse(it *model.Item) itemResponse {
	return itemResponse{
		ID:         it.ID,
		Name:       it.Name,
		Quantity:   it.Quantity,
		Price:      it.Price,
		LocationID: it.LocationID,
		StockLevel: inventory.Level(it.Quantity),
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}
}
