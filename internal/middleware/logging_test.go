package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/stockflow/internal/metrics"
	"github.com/hitoshi/stockflow/internal/model"
)

// serveLogged はhandlerをログミドルウェア越しに1回呼び出し、出力されたログ1行を返す。
func serveLogged(t *testing.T, handler http.Handler, req *http.Request) (map[string]any, string) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewLoggingMiddleware(logger)(handler).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	return entry, buf.String()
}

func respondWith(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestLoggingMiddleware_RequestLine(t *testing.T) {
	entry, _ := serveLogged(t, respondWith(http.StatusCreated), httptest.NewRequest(http.MethodPost, "/api/items", nil))

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != http.MethodPost || entry["path"] != "/api/items" {
		t.Errorf("method/path = %v %v", entry["method"], entry["path"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want 201", entry["status"])
	}
	d, ok := entry["duration_ms"].(float64)
	if !ok || d < 0 {
		t.Errorf("duration_ms = %v, want non-negative number", entry["duration_ms"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Errorf("anonymous request logged user_id %v", entry["user_id"])
	}
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	cases := map[int]string{
		http.StatusOK:                  "INFO",
		http.StatusFound:               "INFO",
		http.StatusUnauthorized:        "WARN",
		http.StatusUnprocessableEntity: "WARN",
		http.StatusInternalServerError: "ERROR",
		http.StatusServiceUnavailable:  "ERROR",
	}
	for code, level := range cases {
		t.Run(http.StatusText(code), func(t *testing.T) {
			entry, _ := serveLogged(t, respondWith(code), httptest.NewRequest(http.MethodGet, "/api/items", nil))
			if entry["level"] != level {
				t.Errorf("level = %v, want %s", entry["level"], level)
			}
			if entry["status"] != float64(code) {
				t.Errorf("status = %v, want %d", entry["status"], code)
			}
		})
	}
}

func TestLoggingMiddleware_AuthenticatedUser(t *testing.T) {
	session := NewSessionMiddleware(verifierFor("tok-abc", &model.User{ID: "user-123"}))
	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("Authorization", "Bearer tok-abc")

	entry, _ := serveLogged(t, session(respondWith(http.StatusOK)), req)

	if entry["user_id"] != "user-123" {
		t.Errorf("user_id = %v, want user-123", entry["user_id"])
	}
}

func TestLoggingMiddleware_RejectedTokenHasNoUser(t *testing.T) {
	session := NewSessionMiddleware(verifierFor("tok-abc", &model.User{ID: "user-123"}))
	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("Authorization", "Bearer tok-other")

	entry, _ := serveLogged(t, session(respondWith(http.StatusOK)), req)

	if entry["status"] != float64(http.StatusUnauthorized) {
		t.Errorf("status = %v, want 401", entry["status"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Errorf("user_id logged for rejected token: %v", entry["user_id"])
	}
}

func TestLoggingMiddleware_DropsQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/dashboard?token=secret-token-value", nil)
	entry, raw := serveLogged(t, respondWith(http.StatusFound), req)

	if strings.Contains(raw, "secret-token-value") {
		t.Errorf("token leaked into log: %s", raw)
	}
	if entry["path"] != "/dashboard" {
		t.Errorf("path = %v, want /dashboard", entry["path"])
	}
}

func TestLoggingMiddleware_ImplicitOK(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
		// 本文送信後のWriteHeaderは記録されたステータスを変えない
		w.WriteHeader(http.StatusTeapot)
	})
	entry, _ := serveLogged(t, h, httptest.NewRequest(http.MethodGet, "/api/items", nil))

	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
}

type statusCountingCollector struct {
	metrics.NopCollector
	mu       sync.Mutex
	statuses []int
}

func (c *statusCountingCollector) RecordHTTPStatus(statusCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, statusCode)
}

func TestMetricsMiddleware_RecordsStatusCode(t *testing.T) {
	collector := &statusCountingCollector{}
	handler := NewMetricsMiddleware(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/items/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/api/me":
			WriteAPIError(w, model.NewUnauthenticatedError())
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))

	for _, path := range []string{"/api/items", "/api/items/missing", "/api/me"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	want := []int{http.StatusOK, http.StatusNotFound, http.StatusUnauthorized}
	if len(collector.statuses) != len(want) {
		t.Fatalf("recorded %v, want %v", collector.statuses, want)
	}
	for i := range want {
		if collector.statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %d, want %d", i, collector.statuses[i], want[i])
		}
	}
}
