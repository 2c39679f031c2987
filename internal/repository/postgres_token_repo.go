package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/stockflow/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したアクセストークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Create はトークンレコードを保存する。
func (r *PostgresTokenRepo) Create(ctx context.Context, token *model.AccessToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_tokens (id, user_id, token_hash, name, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.UserID, token.TokenHash, token.Name, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

// FindByHash はトークンハッシュでレコードを取得する。見つからない場合はnilを返す。
// 有効期限の判定は呼び出し側で行う。
func (r *PostgresTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*model.AccessToken, error) {
	token := &model.AccessToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, name, created_at
		 FROM access_tokens
		 WHERE token_hash = $1`,
		tokenHash,
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.Name, &token.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find access token: %w", err)
	}

	return token, nil
}

// DeleteByHash はトークンハッシュに一致するレコードを削除する。
func (r *PostgresTokenRepo) DeleteByHash(ctx context.Context, tokenHash string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE token_hash = $1`,
		tokenHash,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete access token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteCreatedBefore はcutoffより前に発行されたトークンを削除する。
func (r *PostgresTokenRepo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired access tokens: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var (
	_ TokenRepository = (*PostgresTokenRepo)(nil)
	_ TokenPurger     = (*PostgresTokenRepo)(nil)
)
