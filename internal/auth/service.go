// Package auth はGoogle OAuthによるログインフローと、Bearerトークンの発行・検証・失効を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stockflow/internal/metrics"
	"github.com/hitoshi/stockflow/internal/model"
	"github.com/hitoshi/stockflow/internal/repository"
)

// tokenName はトークンレコードに記録する名前。
const tokenName = "auth-token"

// UserDirectory はIdPプロフィールからユーザーを作成・更新し、IDで参照するインターフェース。
type UserDirectory interface {
	Upsert(ctx context.Context, profile model.Profile) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// CallbackParams はOAuthコールバックのクエリパラメータを表す。
type CallbackParams struct {
	Code  string
	State string
	Error string // IdPが返したerrorパラメータ（ユーザーの同意拒否など）
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// TokenTTL はトークンの有効期間。0の場合は無期限。
	TokenTTL time.Duration
	// ExchangeTimeout は認可コード交換からプロフィール取得までの上限時間。
	ExchangeTimeout time.Duration
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth   OAuthProvider
	state   *StateSigner
	users   UserDirectory
	tokens  repository.TokenRepository
	metrics metrics.MetricsCollector
	config  ServiceConfig
	now     func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	oauth OAuthProvider,
	state *StateSigner,
	users UserDirectory,
	tokens repository.TokenRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if config.ExchangeTimeout <= 0 {
		config.ExchangeTimeout = defaultExchangeTimeout
	}
	return &Service{
		oauth:   oauth,
		state:   state,
		users:   users,
		tokens:  tokens,
		metrics: collector,
		config:  config,
		now:     time.Now,
	}
}

// BeginLogin は署名付きstateを発行し、IdPの認可URLを返す。
func (s *Service) BeginLogin(ctx context.Context) (string, error) {
	state, err := s.state.Issue()
	if err != nil {
		return "", fmt.Errorf("failed to issue oauth state: %w", err)
	}
	return s.oauth.AuthCodeURL(state), nil
}

// CompleteLogin はOAuthコールバックを処理し、ユーザーをupsertしてトークンを発行する。
// stateが不正な場合はIdPを呼び出さずにErrInvalidStateを返す。
func (s *Service) CompleteLogin(ctx context.Context, params CallbackParams) (string, *model.User, error) {
	// 1. IdPのエラー応答とstateを検証
	if params.Error != "" {
		s.metrics.RecordLogin(metrics.LoginFailure)
		return "", nil, fmt.Errorf("%w: provider returned error %q", ErrProviderExchangeFailed, params.Error)
	}
	if err := s.state.Validate(params.State); err != nil {
		s.metrics.RecordLogin(metrics.LoginInvalidState)
		return "", nil, err
	}
	if params.Code == "" {
		s.metrics.RecordLogin(metrics.LoginFailure)
		return "", nil, fmt.Errorf("%w: authorization code is missing", ErrProviderExchangeFailed)
	}

	// 2. 認可コードを交換してプロフィールを取得（タイムアウト付き）
	profile, err := s.exchange(ctx, params.Code)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginFailure)
		return "", nil, err
	}

	// 3. ユーザーをupsert
	user, err := s.users.Upsert(ctx, *profile)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginFailure)
		return "", nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	// 4. トークンを発行
	token, err := s.Issue(ctx, user)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginFailure)
		return "", nil, err
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", "google"),
	)

	return token, user, nil
}

func (s *Service) exchange(ctx context.Context, code string) (*model.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ExchangeTimeout)
	defer cancel()

	start := time.Now()
	profile, err := s.oauth.ExchangeCode(ctx, code)
	s.metrics.RecordExchangeLatency(time.Since(start))
	if err != nil {
		if !errors.Is(err, ErrProviderExchangeFailed) {
			err = fmt.Errorf("%w: %w", ErrProviderExchangeFailed, err)
		}
		return nil, err
	}
	return profile, nil
}

// Issue は新しい不透明トークンを生成し、ユーザーとの対応を保存して平文トークンを返す。
// 1ユーザーあたりの有効トークン数に上限はない。
func (s *Service) Issue(ctx context.Context, user *model.User) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	record := &model.AccessToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: HashToken(token),
		Name:      tokenName,
		CreatedAt: s.now().UTC(),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}

	return token, nil
}

// Verify はトークンに対応するユーザーを返す。
// トークンが空・未知・期限切れ、またはユーザーが存在しない場合はErrUnauthenticatedを返す。
func (s *Service) Verify(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		s.metrics.RecordTokenVerification(metrics.VerificationInvalid)
		return nil, ErrUnauthenticated
	}

	record, err := s.tokens.FindByHash(ctx, HashToken(token))
	if err != nil {
		s.metrics.RecordTokenVerification(metrics.VerificationError)
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	if record == nil || s.expired(record) {
		s.metrics.RecordTokenVerification(metrics.VerificationInvalid)
		return nil, ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		s.metrics.RecordTokenVerification(metrics.VerificationError)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordTokenVerification(metrics.VerificationInvalid)
		return nil, ErrUnauthenticated
	}

	s.metrics.RecordTokenVerification(metrics.VerificationValid)
	return user, nil
}

// Revoke は提示されたトークンを削除する。
// トークンが空または存在しない場合はErrRevokeWithoutSessionを返す。
func (s *Service) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrRevokeWithoutSession
	}

	deleted, err := s.tokens.DeleteByHash(ctx, HashToken(token))
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if !deleted {
		return ErrRevokeWithoutSession
	}

	s.metrics.RecordTokenRevoked()
	return nil
}

// expired はTokenTTLが設定されている場合に発行からTTLを超えたかを判定する。
func (s *Service) expired(record *model.AccessToken) bool {
	if s.config.TokenTTL <= 0 {
		return false
	}
	return !s.now().Before(record.CreatedAt.Add(s.config.TokenTTL))
}
