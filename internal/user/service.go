// Package user はIdPプロフィールに基づくユーザーディレクトリを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/stockflow/internal/model"
	"github.com/hitoshi/stockflow/internal/repository"
)

// ErrInvalidProfile はプロフィールの必須フィールドが欠けている、または不正であることを示す。
var ErrInvalidProfile = errors.New("invalid profile")

// Service はユーザーディレクトリのサービス層。
// google_idをキーにユーザーを作成・更新する。
type Service struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
		now:      time.Now,
	}
}

// Upsert はプロフィールのsubject idに一致するユーザーを作成または更新する。
// 既存ユーザーの場合はname, email, avatarを上書きし、IDは維持する。
func (s *Service) Upsert(ctx context.Context, profile model.Profile) (*model.User, error) {
	// 1. プロフィールを正規化して検証
	profile = normalize(profile)
	if err := validate(profile); err != nil {
		return nil, err
	}

	// 2. 単一文のUPSERTで保存
	candidate := &model.User{
		ID:        uuid.New().String(),
		GoogleID:  profile.SubjectID,
		Name:      profile.Name,
		Email:     profile.Email,
		AvatarURL: profile.AvatarURL,
		UpdatedAt: s.now().UTC(),
	}
	user, err := s.userRepo.Upsert(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	if user.ID == candidate.ID {
		slog.Info("new user created", slog.String("user_id", user.ID))
	} else {
		slog.Debug("existing user updated", slog.String("user_id", user.ID))
	}

	return user, nil
}

// FindByID は指定IDのユーザーを返す。見つからない場合はnilを返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func normalize(p model.Profile) model.Profile {
	return model.Profile{
		SubjectID: strings.TrimSpace(p.SubjectID),
		Name:      strings.TrimSpace(p.Name),
		Email:     strings.TrimSpace(p.Email),
		AvatarURL: strings.TrimSpace(p.AvatarURL),
	}
}

func validate(p model.Profile) error {
	switch {
	case p.SubjectID == "":
		return fmt.Errorf("%w: subject id is required", ErrInvalidProfile)
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	case p.Email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidProfile)
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return fmt.Errorf("%w: malformed email", ErrInvalidProfile)
	}
	return nil
}
