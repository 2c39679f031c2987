package webclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
)

// tokenQueryParam はログイン直後のリダイレクトでトークンを運ぶクエリパラメータ名。
const tokenQueryParam = "token"

// State はフロントエンドの認証状態を表す。
type State string

const (
	// StateUnknown は起動直後で検証がまだ行われていないことを示す。
	StateUnknown State = "unknown"
	// StateAuthenticated はトークンが検証済みであることを示す。
	StateAuthenticated State = "authenticated"
	// StateUnauthenticated はトークンがないか検証に失敗したことを示す。
	StateUnauthenticated State = "unauthenticated"
)

// AuthState はフロントエンドの認証状態を保持する状態機械。
// unknownから開始し、Resumeでauthenticatedまたはunauthenticatedに遷移する。
// 認証済みの呼び出しが401を受けた場合はunauthenticatedに遷移し、ストアを空にする。
type AuthState struct {
	client *Client
	store  TokenStore

	mu    sync.RWMutex
	state State
	user  *User
	token string
}

// NewAuthState はunknown状態のAuthStateを生成する。
func NewAuthState(client *Client, store TokenStore) *AuthState {
	return &AuthState{
		client: client,
		store:  store,
		state:  StateUnknown,
	}
}

// State は現在の認証状態を返す。
func (s *AuthState) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User は認証済みの場合にユーザーを返す。それ以外はnil。
func (s *AuthState) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Token は認証済みの場合にトークンを返す。それ以外は空文字。
func (s *AuthState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoginURL はログインフローを開始するAPIのURLを返す。
// ブラウザはこのURLへページ遷移する。
func (s *AuthState) LoginURL() string {
	return s.client.BaseURL() + "/auth/google"
}

// Resume はページ読み込み時の認証状態を確定させ、tokenパラメータを除いたURLを返す。
//
//  1. URLにtokenがある場合は保存して検証する。保存済みのトークンは参照しない。
//  2. URLにtokenがなく保存済みトークンがある場合はそれを検証する。
//  3. どちらもない場合は通信せずにunauthenticatedとする。
//
// APIがトークンを拒否した（401）場合はストアを空にしてunauthenticatedに遷移する。
// 通信エラーや5xxでは検証が完了していないため、トークンを残したままunknownにとどまり、
// エラーを返す。
func (s *AuthState) Resume(ctx context.Context, pageURL *url.URL) (*url.URL, error) {
	cleaned, urlToken := stripToken(pageURL)

	// 1. URLのトークンを優先して採用
	token := urlToken
	if token != "" {
		if err := s.store.Save(ctx, token); err != nil {
			return cleaned, fmt.Errorf("failed to save token: %w", err)
		}
	} else {
		// 2. 保存済みトークンを読み出す
		stored, err := s.store.Load(ctx)
		if err != nil {
			return cleaned, fmt.Errorf("failed to load token: %w", err)
		}
		token = stored
	}

	// 3. トークンがなければ通信せずに未認証
	if token == "" {
		s.setUnauthenticated()
		return cleaned, nil
	}

	user, err := s.client.CurrentUser(ctx, token)
	if errors.Is(err, ErrUnauthenticated) {
		s.reset(ctx)
		return cleaned, nil
	}
	if err != nil {
		return cleaned, fmt.Errorf("failed to verify token: %w", err)
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.user = user
	s.token = token
	s.mu.Unlock()

	return cleaned, nil
}

// Logout はトークンを失効させ、結果にかかわらずローカルの状態を破棄する。
// 失効の失敗はエラーとして返すが、状態は常にunauthenticatedになる。
func (s *AuthState) Logout(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		stored, err := s.store.Load(ctx)
		if err == nil {
			token = stored
		}
	}

	var revokeErr error
	if token != "" {
		revokeErr = s.client.Logout(ctx, token)
	}

	s.reset(ctx)

	if revokeErr != nil {
		return fmt.Errorf("failed to revoke token: %w", revokeErr)
	}
	return nil
}

// Do は現在のトークンで認証済みの呼び出しを行う。
// 未認証の場合はErrUnauthenticatedを返し、呼び出しが401を受けた場合はunauthenticatedに遷移する。
func (s *AuthState) Do(ctx context.Context, call func(ctx context.Context, c *Client, token string) error) error {
	token := s.Token()
	if s.State() != StateAuthenticated || token == "" {
		return ErrUnauthenticated
	}

	err := call(ctx, s.client, token)
	if errors.Is(err, ErrUnauthenticated) {
		slog.Info("session rejected by api, clearing local token")
		s.reset(ctx)
	}
	return err
}

// ListItems は品目一覧を返す。
func (s *AuthState) ListItems(ctx context.Context, query string) ([]Item, error) {
	var items []Item
	err := s.Do(ctx, func(ctx context.Context, c *Client, token string) error {
		var err error
		items, err = c.ListItems(ctx, token, query)
		return err
	})
	return items, err
}

// Summary は在庫集計を返す。
func (s *AuthState) Summary(ctx context.Context) (*Summary, error) {
	var summary *Summary
	err := s.Do(ctx, func(ctx context.Context, c *Client, token string) error {
		var err error
		summary, err = c.Summary(ctx, token)
		return err
	})
	return summary, err
}

// GetItem は品目を1件返す。
func (s *AuthState) GetItem(ctx context.Context, id string) (*Item, error) {
	var item *Item
	err := s.Do(ctx, func(ctx context.Context, c *Client, token string) error {
		var err error
		item, err = c.GetItem(ctx, token, id)
		return err
	})
	return item, err
}

// CreateItem は品目を作成する。
func (s *AuthState) CreateItem(ctx context.Context, input ItemInput) (*Item, error) {
	var item *Item
	err := s.Do(ctx, func(ctx context.Context, c *Client, token string) error {
		var err error
		item, err = c.CreateItem(ctx, token, input)
		return err
	})
	return item, err
}

// AdjustQuantity は品目の数量をdeltaだけ増減する。
// 現在の品目を取得してから数量だけを変えて更新する。負になる場合はAPIの検証エラーになる。
func (s *AuthState) AdjustQuantity(ctx context.Context, id string, delta int) (*Item, error) {
	var item *Item
	err := s.Do(ctx, func(ctx context.Context, c *Client, token string) error {
		current, err := c.GetItem(ctx, token, id)
		if err != nil {
			return err
		}
		item, err = c.UpdateItem(ctx, token, id, ItemInput{
			Name:       current.Name,
			Quantity:   current.Quantity + delta,
			Price:      current.Price,
			LocationID: current.LocationID,
		})
		return err
	})
	return item, err
}

// DeleteItem は品目を削除する。
func (s *AuthState) DeleteItem(ctx context.Context, id string) error {
	return s.Do(ctx, func(ctx context.Context, c *Client, token string) error {
		return c.DeleteItem(ctx, token, id)
	})
}

// reset はストアとユーザーを破棄してunauthenticatedに遷移する。
func (s *AuthState) reset(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		slog.Warn("failed to clear token store", slog.String("error", err.Error()))
	}
	s.setUnauthenticated()
}

func (s *AuthState) setUnauthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUnauthenticated
	s.user = nil
	s.token = ""
}

// stripToken はURLのコピーからtokenパラメータを除き、その値とともに返す。
func stripToken(pageURL *url.URL) (*url.URL, string) {
	if pageURL == nil {
		return &url.URL{}, ""
	}
	cleaned := *pageURL
	query := cleaned.Query()
	token := query.Get(tokenQueryParam)
	if query.Has(tokenQueryParam) {
		query.Del(tokenQueryParam)
		cleaned.RawQuery = query.Encode()
	}
	return &cleaned, token
}
