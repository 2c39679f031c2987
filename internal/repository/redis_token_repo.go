package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/stockflow/internal/model"
)

// tokenKeyPrefix はトークンレコードのRedisキー接頭辞。
const tokenKeyPrefix = "stockflow:token:"

// redisTokenRecord はRedisに保存するトークンレコードのJSON表現。
// ハッシュはキーに含まれるため値には保持しない。
type redisTokenRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisTokenRepo はRedisを使用したアクセストークンリポジトリ。
// ttlが正の場合はキーの有効期限として設定し、期限切れはRedis側で消える。
type RedisTokenRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTokenRepo はRedisTokenRepoを生成する。ttlが0の場合は無期限で保存する。
func NewRedisTokenRepo(client *redis.Client, ttl time.Duration) *RedisTokenRepo {
	return &RedisTokenRepo{client: client, ttl: ttl}
}

// Create はトークンレコードを保存する。
func (r *RedisTokenRepo) Create(ctx context.Context, token *model.AccessToken) error {
	payload, err := json.Marshal(redisTokenRecord{
		ID:        token.ID,
		UserID:    token.UserID,
		Name:      token.Name,
		CreatedAt: token.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode access token: %w", err)
	}

	if err := r.client.Set(ctx, tokenKeyPrefix+token.TokenHash, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

// FindByHash はトークンハッシュでレコードを取得する。見つからない場合はnilを返す。
func (r *RedisTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*model.AccessToken, error) {
	payload, err := r.client.Get(ctx, tokenKeyPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find access token: %w", err)
	}

	var rec redisTokenRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}

	return &model.AccessToken{
		ID:        rec.ID,
		UserID:    rec.UserID,
		TokenHash: tokenHash,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// DeleteByHash はトークンハッシュに一致するレコードを削除する。
func (r *RedisTokenRepo) DeleteByHash(ctx context.Context, tokenHash string) (bool, error) {
	n, err := r.client.Del(ctx, tokenKeyPrefix+tokenHash).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete access token: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ TokenRepository = (*RedisTokenRepo)(nil)
