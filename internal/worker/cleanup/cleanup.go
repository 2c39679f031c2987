// Package cleanup は期限切れアクセストークンの定期削除ジョブを提供する。
// TOKEN_TTLが設定されている場合のみ、発行からTTLを超えたトークンを削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/stockflow/internal/metrics"
	"github.com/hitoshi/stockflow/internal/repository"
)

// TokenPurgeJob は有効期限を過ぎたアクセストークンの削除ジョブ。
// 冪等な削除処理を保証し、繰り返し実行しても安全に動作する。
type TokenPurgeJob struct {
	purger  repository.TokenPurger
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	ttl     time.Duration
	now     func() time.Time
}

// NewTokenPurgeJob は新しいTokenPurgeJobを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewTokenPurgeJob(purger repository.TokenPurger, logger *slog.Logger, collector metrics.MetricsCollector, ttl time.Duration) *TokenPurgeJob {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &TokenPurgeJob{
		purger:  purger,
		logger:  logger,
		metrics: collector,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Enabled はTTLが設定されておりジョブを実行する意味があるかを返す。
func (j *TokenPurgeJob) Enabled() bool {
	return j.ttl > 0
}

// Run はcreated_atが現在時刻からTTLより前のトークンを削除する。
// TTLが0以下の場合は何もしない。
func (j *TokenPurgeJob) Run(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}

	start := time.Now()
	cutoff := j.now().UTC().Add(-j.ttl)

	deleted, err := j.purger.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("トークン削除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("ttl", j.ttl),
		)
		return fmt.Errorf("failed to purge expired tokens: %w", err)
	}

	j.metrics.RecordTokensPurged(deleted)
	j.logger.Info("トークン削除ジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Duration("ttl", j.ttl),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを繰り返し実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *TokenPurgeJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("トークン削除ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("ttl", j.ttl),
	)

	// 起動直後に1回実行（失敗はRun内でログ出力済み）
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("トークン削除ジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
