package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/stockflow/internal/metrics"
)

var requestInfoContextKey = contextKey("request_info")

// requestInfo は内側のハンドラで判明した情報をアクセスログへ渡すための入れ物。
type requestInfo struct {
	userID string
}

// statusRecorder は最初に確定したステータスコードを覚えておくResponseWriter。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (sr *statusRecorder) markWritten(code int) {
	if sr.written {
		return
	}
	sr.statusCode = code
	sr.written = true
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.markWritten(code)
	sr.ResponseWriter.WriteHeader(code)
}

// Write はヘッダー未送信なら暗黙の200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.markWritten(http.StatusOK)
	return sr.ResponseWriter.Write(b)
}

// Unwrap はhttp.ResponseController向け。
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// levelForStatus はステータスコードからアクセスログのレベルを決める。
// 5xxはError、4xxはWarn、それ以外はInfo。
func levelForStatus(code int) slog.Level {
	switch {
	case code >= http.StatusInternalServerError:
		return slog.LevelError
	case code >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// NewLoggingMiddleware は1リクエストにつき1行の"http_request"ログを出すミドルウェアを返す。
// 記録するのはmethod、path、status、duration_msと、認証済みならuser_id。
// URLのクエリ部分はトークンを含みうるので出力しない。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			info := &requestInfo{}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestInfoContextKey, info)))

			elapsed := time.Since(start)
			attrs := make([]slog.Attr, 0, 5)
			attrs = append(attrs,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
			)
			if info.userID != "" {
				attrs = append(attrs, slog.String("user_id", info.userID))
			}

			logger.LogAttrs(r.Context(), levelForStatus(rec.statusCode), "http_request", attrs...)
		})
	}
}

// NewMetricsMiddleware はレスポンスのステータスコードをcollectorへ記録するミドルウェアを返す。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			collector.RecordHTTPStatus(rec.statusCode)
		})
	}
}

// recordUserID はアクセスログ用にユーザーIDを残す。ログミドルウェアの外では何もしない。
func recordUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
}
