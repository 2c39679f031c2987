// Package web はAPIを利用してダッシュボードを描画するフロントエンドサーバーを提供する。
package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/stockflow/internal/middleware"
	"github.com/hitoshi/stockflow/internal/model"
	"github.com/hitoshi/stockflow/internal/webclient"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config はフロントエンドサーバーの設定。
type Config struct {
	// CookieSecure はトークンCookieにSecure属性を付けるかどうか。
	CookieSecure bool
	// Logger はリクエストログの出力先。nilの場合はslog.Default()。
	Logger *slog.Logger
}

// Server はダッシュボードのHTTPハンドラー群。
type Server struct {
	client *webclient.Client
	config Config
	pages  map[string]*template.Template
}

// pageData はテンプレートに渡す共通データ。
type pageData struct {
	Title     string
	User      *webclient.User
	CSRFToken string
	LoginURL  string
	Message   string
	Query     string
	Items     []webclient.Item
	Summary   *webclient.Summary

	// BackToDashboard はエラーページの戻り先をログインではなくダッシュボードにする。
	BackToDashboard bool
}

// NewServer はテンプレートを読み込みServerを生成する。
func NewServer(client *webclient.Client, config Config) (*Server, error) {
	funcs := template.FuncMap{
		"money":      formatMoney,
		"stockLabel": stockLabel,
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"login", "dashboard", "error"} {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Server{client: client, config: config, pages: pages}, nil
}

// Handler はミドルウェアチェーンを構成したルーターを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CSRF
func (s *Server) Handler() http.Handler {
	logger := s.config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{CookieSecure: s.config.CookieSecure}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	r.Get("/login", s.Login)
	r.Get("/dashboard", s.Dashboard)
	r.Post("/logout", s.Logout)
	r.Post("/items", s.CreateItem)
	r.Post("/items/{id}/adjust", s.AdjustStock)
	r.Post("/items/{id}/delete", s.DeleteItem)
	r.Get("/auth/error", s.AuthError)

	return r
}

// authState はリクエストのCookieを保存先とするAuthStateを生成する。
func (s *Server) authState(w http.ResponseWriter, r *http.Request) *webclient.AuthState {
	return webclient.NewAuthState(s.client, newCookieTokenStore(w, r, s.config.CookieSecure))
}

// Login はログインページを描画する。
// GET /login
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	state := s.authState(w, r)
	s.render(w, r, http.StatusOK, "login", pageData{
		Title:    "Sign in",
		LoginURL: state.LoginURL(),
	})
}

// Dashboard は在庫一覧と集計を描画する。
// GET /dashboard?token=&q=
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := s.authState(w, r)

	// 1. 認証状態の確定（URLのトークンを優先）
	cleaned, err := state.Resume(ctx, r.URL)
	if err != nil {
		// APIに到達できない場合はトークンを残したままエラーページを出す
		s.handleAPIError(w, r, err)
		return
	}
	if state.State() != webclient.StateAuthenticated {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// 2. URLにトークンがあった場合は除去したURLへ遷移
	if cleaned.RawQuery != r.URL.RawQuery {
		http.Redirect(w, r, cleaned.RequestURI(), http.StatusSeeOther)
		return
	}

	// 3. 品目一覧と集計を取得
	query := r.URL.Query().Get("q")
	items, err := state.ListItems(ctx, query)
	if err != nil {
		s.handleAPIError(w, r, err)
		return
	}
	summary, err := state.Summary(ctx)
	if err != nil {
		s.handleAPIError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "dashboard", pageData{
		Title:   "Dashboard",
		User:    state.User(),
		Query:   query,
		Items:   items,
		Summary: summary,
	})
}

// Logout はトークンを失効させてログインページへ遷移する。
// POST /logout
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	state := s.authState(w, r)
	if err := state.Logout(r.Context()); err != nil {
		slog.Warn("token revocation failed during logout", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// AuthError はログイン失敗時のエラーページを描画する。
// GET /auth/error
func (s *Server) AuthError(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "error", pageData{
		Title:   "Sign-in failed",
		Message: "We could not sign you in. Please try again.",
	})
}

// handleAPIError はAPI呼び出しの失敗を処理する。
// 401の場合はAuthStateがCookieを削除済みのためログインページへ遷移する。
// 入力の検証エラーや品目未検出（4xx）はAPIのメッセージを表示し、それ以外は502とする。
func (s *Server) handleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, webclient.ErrUnauthenticated) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	var apiErr *webclient.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		message := apiErr.Message
		if message == "" {
			message = "The inventory service rejected the request."
		}
		s.render(w, r, apiErr.StatusCode, "error", pageData{
			Title:           "The change was not saved",
			Message:         message,
			BackToDashboard: true,
		})
		return
	}
	slog.Error("api call failed", slog.String("error", err.Error()))
	s.render(w, r, http.StatusBadGateway, "error", pageData{
		Title:   "Something went wrong",
		Message: "The inventory service is unavailable. Please try again later.",
	})
}

// renderFormError は解釈できないフォーム入力に対して400のエラーページを描画する。
func (s *Server) renderFormError(w http.ResponseWriter, r *http.Request, message string) {
	s.render(w, r, http.StatusBadRequest, "error", pageData{
		Title:           "The change was not saved",
		Message:         message,
		BackToDashboard: true,
	})
}

// render はレイアウト付きでページを描画する。
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages[page].ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// formatMoney は金額を小数点以下2桁で表示する。
func formatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// stockLabel は在庫水準の表示名を返す。
func stockLabel(level string) string {
	switch model.StockLevel(level) {
	case model.StockLevelInStock:
		return "In stock"
	case model.StockLevelLow:
		return "Low stock"
	case model.StockLevelCritical:
		return "Critical"
	default:
		return level
	}
}
