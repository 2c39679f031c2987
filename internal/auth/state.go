package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateIssuer = "stockflow"

// StateSigner はOAuthのstateパラメータを署名付きJWT（HS256）として発行・検証する。
// サーバー側に状態を保持せず、コールバックをこのサーバーが開始したログインに結びつける。
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner はStateSignerを生成する。
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{
		key: []byte(secret),
		ttl: ttl,
		now: time.Now,
	}
}

// Issue は新しいstateを発行する。
func (s *StateSigner) Issue() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign oauth state: %w", err)
	}
	return signed, nil
}

// Validate はstateの署名・発行者・有効期限を検証する。
// 不正な場合はErrInvalidStateをラップしたエラーを返す。
func (s *StateSigner) Validate(state string) error {
	if state == "" {
		return fmt.Errorf("%w: state is empty", ErrInvalidState)
	}

	parsed, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenUnverifiable
			}
			return s.key, nil
		},
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: state has expired", ErrInvalidState)
		}
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if !parsed.Valid {
		return ErrInvalidState
	}

	return nil
}
