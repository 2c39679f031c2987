package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hitoshi/stockflow/internal/model"
)

const (
	defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	defaultExchangeTimeout   = 10 * time.Second

	// maxUserInfoBytes はuserinfoレスポンスの読み込み上限。
	maxUserInfoBytes = 1 << 20
)

// OAuthProvider は外部IdPとのOAuth 2.0認可コードフローを抽象化する。
type OAuthProvider interface {
	// AuthCodeURL はstateを埋め込んだ認可エンドポイントのURLを返す。
	AuthCodeURL(state string) string
	// ExchangeCode は認可コードをアクセストークンに交換し、検証済みプロフィールを返す。
	// 失敗時はErrProviderExchangeFailedをラップしたエラーを返す。
	ExchangeCode(ctx context.Context, code string) (*model.Profile, error)
}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Timeout はトークン交換とuserinfo取得に使うHTTPクライアントのタイムアウト。
	Timeout time.Duration

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// GoogleOAuthProvider はgolang.org/x/oauth2を用いてGoogleの認可コードフローを実行する。
type GoogleOAuthProvider struct {
	conf        *oauth2.Config
	httpClient  *http.Client
	userInfoURL string
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(cfg GoogleOAuthConfig) *GoogleOAuthProvider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultGoogleUserInfoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultExchangeTimeout
	}

	return &GoogleOAuthProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		userInfoURL: cfg.UserInfoURL,
	}
}

// AuthCodeURL はGoogleの認可URLを生成する。スコープはopenid, email, profile。
func (p *GoogleOAuthProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// googleUserInfo はuserinfoエンドポイントのレスポンスのうち使用するフィールド。
type googleUserInfo struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*model.Profile, error) {
	// 1. 認可コードをアクセストークンに交換
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange code: %w", ErrProviderExchangeFailed, err)
	}

	// 2. アクセストークンでユーザー情報を取得
	info, err := p.fetchUserInfo(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderExchangeFailed, err)
	}

	// 3. 必須フィールドを検証
	profile := &model.Profile{
		SubjectID: strings.TrimSpace(info.Sub),
		Name:      strings.TrimSpace(info.Name),
		Email:     strings.TrimSpace(info.Email),
		AvatarURL: strings.TrimSpace(info.Picture),
	}
	if profile.SubjectID == "" || profile.Name == "" || profile.Email == "" {
		return nil, fmt.Errorf("%w: userinfo is missing required fields", ErrProviderExchangeFailed)
	}

	return profile, nil
}

// fetchUserInfo はアクセストークンでGoogleのユーザー情報を取得する。
func (p *GoogleOAuthProvider) fetchUserInfo(ctx context.Context, accessToken string) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	return &info, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
