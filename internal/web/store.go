package web

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/stockflow/internal/webclient"
)

const (
	// tokenCookieName はトークンを保持するCookieの名前（単一の名前付きスロット）。
	tokenCookieName = "auth_token"
	// tokenCookieMaxAge はトークンCookieの有効期間。
	tokenCookieMaxAge = 30 * 24 * time.Hour
)

// cookieTokenStore はHttpOnly Cookieにトークンを保持するTokenStore。
// 1リクエストごとに生成し、同一リクエスト内の書き込みは以降のLoadに反映する。
type cookieTokenStore struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool

	overridden bool
	value      string
}

var _ webclient.TokenStore = (*cookieTokenStore)(nil)

func newCookieTokenStore(w http.ResponseWriter, r *http.Request, secure bool) *cookieTokenStore {
	return &cookieTokenStore{w: w, r: r, secure: secure}
}

// Load はCookieのトークンを返す。未設定の場合は空文字。
func (s *cookieTokenStore) Load(_ context.Context) (string, error) {
	if s.overridden {
		return s.value, nil
	}
	cookie, err := s.r.Cookie(tokenCookieName)
	if err != nil {
		return "", nil
	}
	return cookie.Value, nil
}

// Save はトークンをCookieに保存する。
func (s *cookieTokenStore) Save(_ context.Context, token string) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.overridden = true
	s.value = token
	return nil
}

// Clear はトークンCookieを削除する。
func (s *cookieTokenStore) Clear(_ context.Context) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.overridden = true
	s.value = ""
	return nil
}
