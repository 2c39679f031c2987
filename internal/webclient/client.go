// Package webclient はStockFlow APIのクライアントと、フロントエンドの認証状態を提供する。
package webclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthenticated はAPIが401を返したことを示す。
var ErrUnauthenticated = errors.New("unauthenticated")

// maxResponseBytes はAPIレスポンスボディの読み取り上限。
const maxResponseBytes = 1 << 20

// defaultTimeout はhttpClient未指定時のリクエストタイムアウト。
const defaultTimeout = 10 * time.Second

// APIError はAPIが返した401以外のエラーレスポンスを表す。
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: [%s] %s", e.StatusCode, e.Code, e.Message)
}

// User は/api/userが返すユーザー情報。
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	GoogleID string `json:"google_id"`
	Avatar   string `json:"avatar,omitempty"`
}

// Item はAPIが返す在庫品目。
type Item struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	LocationID *string   `json:"location_id,omitempty"`
	StockLevel string    `json:"stock_level"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ItemInput は品目の作成・更新リクエスト。
type ItemInput struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	LocationID *string `json:"location_id,omitempty"`
}

// Summary は在庫集計。
type Summary struct {
	ItemCount     int     `json:"item_count"`
	TotalQuantity int     `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
	LowStockCount int     `json:"low_stock_count"`
}

// Client はStockFlow APIの型付きHTTPクライアント。
// 認証が必要な呼び出しにはAuthorization: Bearerヘッダーを付与する。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient はClientを生成する。httpClientがnilの場合はタイムアウト付きのクライアントを使う。
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL はAPIのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CurrentUser はトークンに対応するユーザーを返す。
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/user", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout はトークンを失効させる。
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/logout", token, nil, nil)
}

// ListItems は品目一覧を返す。queryが空でない場合は名前で絞り込む。
func (c *Client) ListItems(ctx context.Context, token, query string) ([]Item, error) {
	path := "/api/items"
	if query != "" {
		path += "?" + url.Values{"q": {query}}.Encode()
	}
	var resp struct {
		Data []Item `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetItem は品目を返す。
func (c *Client) GetItem(ctx context.Context, token, id string) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodGet, "/api/items/"+url.PathEscape(id), token, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem は品目を作成する。
func (c *Client) CreateItem(ctx context.Context, token string, input ItemInput) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodPost, "/api/items", token, input, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem は品目を更新する。
func (c *Client) UpdateItem(ctx context.Context, token, id string, input ItemInput) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodPut, "/api/items/"+url.PathEscape(id), token, input, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem は品目を削除する。
func (c *Client) DeleteItem(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(id), token, nil, nil)
}

// Summary は在庫集計を返す。
func (c *Client) Summary(ctx context.Context, token string) (*Summary, error) {
	var summary Summary
	if err := c.do(ctx, http.MethodGet, "/api/items/summary", token, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// do はAPIリクエストを送信し、2xxの場合はレスポンスをoutにデコードする。
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	// 1. リクエストの構築
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// 2. 送信
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	// 3. ステータスの判定
	reader := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(reader).Decode(apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
