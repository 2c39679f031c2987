// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/stockflow/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Upsert はgoogle_idをキーにユーザーを作成または更新し、保存後の行を返す。
	// 既存行がある場合はname, email, avatarのみを上書きし、idとcreated_atは維持する。
	// 同一google_idに対する同時実行でも行は1件に収束する。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)
}

// TokenRepository はBearerトークンレコードの永続化インターフェース。
type TokenRepository interface {
	// Create はトークンレコードを保存する。
	Create(ctx context.Context, token *model.AccessToken) error

	// FindByHash はトークンハッシュでレコードを取得する。見つからない場合はnilを返す。
	FindByHash(ctx context.Context, tokenHash string) (*model.AccessToken, error)

	// DeleteByHash はトークンハッシュに一致するレコードを削除する。
	// 削除対象が存在した場合はtrueを返す。
	DeleteByHash(ctx context.Context, tokenHash string) (bool, error)
}

// TokenPurger は期限切れトークンの一括削除インターフェース。
// TTLをネイティブに扱えないストア（PostgreSQL）のみが実装する。
type TokenPurger interface {
	// DeleteCreatedBefore はcutoffより前に発行されたトークンを削除し、削除件数を返す。
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ItemRepository は在庫品目の永続化インターフェース。
type ItemRepository interface {
	// List は品目を名前順で返す。queryが空でない場合は名前の部分一致（大文字小文字無視）で絞り込む。
	List(ctx context.Context, query string) ([]*model.Item, error)

	// FindByID は指定IDの品目を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// Create は品目を作成する。
	Create(ctx context.Context, item *model.Item) error

	// Update は品目を上書き更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, item *model.Item) (bool, error)

	// Delete は指定IDの品目を削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)
}
