package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/stockflow/internal/model"
)

const userColumns = `id, google_id, name, email, COALESCE(avatar, ''), created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// Upsert はgoogle_idの一意インデックスに対するINSERT ... ON CONFLICTで
// ユーザーを作成または更新する。単一文のため同時実行でも重複行は生じない。
// user.IDは新規作成時にのみ使用され、既存行のIDは変更しない。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	var avatar sql.NullString
	if user.AvatarURL != "" {
		avatar = sql.NullString{String: user.AvatarURL, Valid: true}
	}

	stored, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, google_id, name, email, avatar, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (google_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     email = EXCLUDED.email,
		     avatar = EXCLUDED.avatar,
		     updated_at = EXCLUDED.updated_at
		 RETURNING `+userColumns,
		user.ID, user.GoogleID, user.Name, user.Email, avatar, user.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return stored, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.GoogleID, &user.Name, &user.Email, &user.AvatarURL,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
