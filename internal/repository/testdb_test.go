package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/stockflow/internal/database"
)

// setupTestDB はマイグレーション済みのテスト用データベースを返す。
// TEST_DATABASE_URLが未設定または到達不能な場合はテストをスキップする。
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE items, access_tokens, users CASCADE`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// setupTestRedis はテスト用Redisクライアントを返す。
// TEST_REDIS_URLが未設定または到達不能な場合はテストをスキップする。
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL が未設定のためスキップ")
	}

	client, err := database.OpenRedis(context.Background(), redisURL)
	if err != nil {
		t.Skipf("テスト用Redisに接続できません（スキップ）: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
