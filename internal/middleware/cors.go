package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// corsAllowedMethods はItems APIとログアウトで使うメソッド。
var corsAllowedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
}

// corsAllowedHeaders はBearerトークンとJSONボディの送信に必要なヘッダー。
var corsAllowedHeaders = []string{"Authorization", "Content-Type"}

// corsMaxAge はプリフライト結果のキャッシュ期間。
const corsMaxAge = 24 * time.Hour

// NewCORSMiddleware はフロントエンドのオリジンからのAPI呼び出しを許可するミドルウェアを返す。
// 許可するのは設定された単一オリジンのみで、ワイルドカードは使わない。
// 認証はCookieではなくBearerトークンのため、Allow-Credentialsは付与しない。
// OPTIONSリクエストは後続に渡さず204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	methods := strings.Join(corsAllowedMethods, ", ")
	headers := strings.Join(corsAllowedHeaders, ", ")
	maxAge := strconv.Itoa(int(corsMaxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			if allowedOrigin != "" {
				h.Set("Access-Control-Allow-Origin", allowedOrigin)
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
