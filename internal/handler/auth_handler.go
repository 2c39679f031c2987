package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/stockflow/internal/auth"
	"github.com/hitoshi/stockflow/internal/middleware"
	"github.com/hitoshi/stockflow/internal/model"
)

const (
	// dashboardPath はログイン成功後のリダイレクト先パス。
	dashboardPath = "/dashboard"
	// authErrorPath はログイン失敗時のリダイレクト先パス。
	authErrorPath = "/auth/error"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context) (string, error)
	CompleteLogin(ctx context.Context, params auth.CallbackParams) (string, *model.User, error)
	Revoke(ctx context.Context, token string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// FrontendURL はログイン後のリダイレクト先となるフロントエンドのベースURL。
	FrontendURL string
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// userResponse は/api/userのレスポンス。
type userResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	GoogleID string `json:"google_id"`
	Avatar   string `json:"avatar,omitempty"`
}

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.service.BeginLogin(r.Context())
	if err != nil {
		slog.Error("failed to begin login", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
// 失敗の詳細はサーバーログにのみ記録し、ブラウザはエラーページにリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := auth.CallbackParams{
		Code:  query.Get("code"),
		State: query.Get("state"),
		Error: query.Get("error"),
	}

	token, user, err := h.service.CompleteLogin(r.Context(), params)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidState) {
			slog.Warn("oauth state rejected", slog.String("error", err.Error()))
		} else {
			slog.Error("oauth callback failed", slog.String("error", err.Error()))
		}
		http.Redirect(w, r, h.config.FrontendURL+authErrorPath, http.StatusFound)
		return
	}

	slog.Debug("redirecting to dashboard", slog.String("user_id", user.ID))

	target := h.config.FrontendURL + dashboardPath + "?" + url.Values{"token": {token}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIError(w, model.NewUnauthenticatedError())
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		GoogleID: user.GoogleID,
		Avatar:   user.AvatarURL,
	})
}

// Logout は提示されたトークンを失効させる。
// GET /api/logout, POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.TokenFromContext(r.Context())
	if err != nil {
		writeAPIError(w, model.NewUnauthenticatedError())
		return
	}

	if err := h.service.Revoke(r.Context(), token); err != nil {
		if errors.Is(err, auth.ErrRevokeWithoutSession) {
			writeAPIError(w, model.NewUnauthenticatedError())
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}
