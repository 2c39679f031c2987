package middleware

import "net/http"

// dashboardSecurityHeaders はダッシュボードの全レスポンスに付与するヘッダー。
// ページは外部リソースを読み込まず、フォームの送信先も自オリジンに限る。
var dashboardSecurityHeaders = map[string]string{
	"Content-Security-Policy": "default-src 'none'; style-src 'unsafe-inline'; form-action 'self'; frame-ancestors 'none'; base-uri 'none'",
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	// ダッシュボードのURLに一時的にトークンが載るため、Refererには何も送らない
	"Referrer-Policy": "no-referrer",
	// 在庫データを含むページを共有キャッシュに残さない
	"Cache-Control": "no-store",
}

// NewSecurityHeadersMiddleware はダッシュボード用のセキュリティヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range dashboardSecurityHeaders {
				h.Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
