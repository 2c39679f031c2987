package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ダッシュボードのフォームはcsrf_tokenフィールド、スクリプトからの送信はX-CSRF-Tokenヘッダーで
// Cookieと同じ値を送り返す（ダブルサブミットCookie方式）。
const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"

	csrfCookieLifetime = 24 * time.Hour
	csrfTokenBytes     = 32
)

var csrfTokenContextKey = contextKey("csrf_token")

var (
	errCSRFCookieMissing = errors.New("csrf cookie missing")
	errCSRFTokenMissing  = errors.New("csrf token not submitted")
	errCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はダッシュボード用のCSRF対策ミドルウェアを返す。
//
// GET・HEAD・OPTIONSではCookieを発行（既存なら再利用）し、テンプレート用にトークンを
// コンテキストへ入れる。それ以外のメソッドは送信トークンがCookieと一致しなければ403を返す。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				token := issueCSRFCookie(w, r, config)
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenContextKey, token)))
				return
			}

			if err := verifyCSRFToken(r); err != nil {
				slog.Warn("rejected request by CSRF check",
					slog.String("reason", err.Error()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFTokenFromContext はフォームに埋め込むトークンを返す。安全なメソッドのリクエストでのみ設定される。
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// verifyCSRFToken はCookieと送信されたトークンを定数時間で比較する。
func verifyCSRFToken(r *http.Request) error {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return errCSRFCookieMissing
	}

	submitted := r.Header.Get(csrfHeaderName)
	if submitted == "" {
		submitted = r.PostFormValue(csrfFormField)
	}
	if submitted == "" {
		return errCSRFTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(submitted)) != 1 {
		return errCSRFTokenMismatch
	}
	return nil
}

// issueCSRFCookie は既存のトークンを返すか、新しいトークンを発行してCookieに設定する。
// 生成に失敗した場合は空文字を返し、後続のPOSTは403になる。
func issueCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) string {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
		return ""
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   int(csrfCookieLifetime / time.Second),
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}
