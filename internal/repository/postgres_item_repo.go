package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/stockflow/internal/model"
)

const itemColumns = `id, name, quantity, price, location_id, created_at, updated_at`

// likeEscaper はLIKEパターンのメタ文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresItemRepo はPostgreSQLを使用した在庫品目リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// List は品目を名前順で返す。queryが空でない場合は名前の部分一致で絞り込む。
func (r *PostgresItemRepo) List(ctx context.Context, query string) ([]*model.Item, error) {
	var (
		rows *sql.Rows
		err  error
	)
	query = strings.TrimSpace(query)
	if query == "" {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items ORDER BY lower(name), id`,
		)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items
			 WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
			 ORDER BY lower(name), id`,
			likeEscaper.Replace(query),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// FindByID は指定IDの品目を取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by ID: %w", err)
	}
	return item, nil
}

// Create は品目を作成する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, name, quantity, price, location_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.Name, item.Quantity, item.Price, nullableString(item.LocationID),
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// Update は品目を上書き更新する。created_atは変更しない。
func (r *PostgresItemRepo) Update(ctx context.Context, item *model.Item) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items
		 SET name = $2, quantity = $3, price = $4, location_id = $5, updated_at = $6
		 WHERE id = $1`,
		item.ID, item.Name, item.Quantity, item.Price, nullableString(item.LocationID), item.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete は指定IDの品目を削除する。
func (r *PostgresItemRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var locationID sql.NullString
	if err := s.Scan(
		&item.ID, &item.Name, &item.Quantity, &item.Price, &locationID,
		&item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if locationID.Valid {
		item.LocationID = &locationID.String
	}
	return item, nil
}

// nullableString は空のポインタをSQL NULLに変換する。
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
