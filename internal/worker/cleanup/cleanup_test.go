package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/stockflow/internal/metrics"
	"github.com/hitoshi/stockflow/internal/repository"
)

// mockPurger はTokenPurgerのモック実装。
type mockPurger struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	deleted int64
	err     error
}

func (m *mockPurger) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.deleted, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ repository.TokenPurger = (*mockPurger)(nil)

// purgeCountingCollector はRecordTokensPurgedの呼び出しを記録する。
type purgeCountingCollector struct {
	metrics.NopCollector
	purged []int64
}

func (c *purgeCountingCollector) RecordTokensPurged(count int64) {
	c.purged = append(c.purged, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestTokenPurgeJob_Run_DeletesTokensOlderThanTTL(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{deleted: 3}
	collector := &purgeCountingCollector{}
	job := NewTokenPurgeJob(purger, newTestLogger(&buf), collector, 24*time.Hour)
	fixed := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if purger.calls != 1 {
		t.Fatalf("DeleteCreatedBefore calls = %d, want 1", purger.calls)
	}
	want := fixed.Add(-24 * time.Hour)
	if !purger.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", purger.cutoffs[0], want)
	}
	if len(collector.purged) != 1 || collector.purged[0] != 3 {
		t.Errorf("purged metrics = %v, want [3]", collector.purged)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["deleted_count"] != float64(3) {
		t.Errorf("deleted_count = %v, want 3", entry["deleted_count"])
	}
}

func TestTokenPurgeJob_Run_DisabledWhenTTLIsZero(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewTokenPurgeJob(purger, newTestLogger(&buf), nil, 0)

	if job.Enabled() {
		t.Error("job should be disabled when TTL is 0")
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if purger.calls != 0 {
		t.Errorf("DeleteCreatedBefore should not be called, got %d calls", purger.calls)
	}
}

func TestTokenPurgeJob_Run_ReturnsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{err: errors.New("connection refused")}
	job := NewTokenPurgeJob(purger, newTestLogger(&buf), nil, time.Hour)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, purger.err) {
		t.Errorf("error should wrap the repository error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"level":"ERROR"`)) {
		t.Errorf("expected error log, got %s", buf.String())
	}
}

func TestTokenPurgeJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewTokenPurgeJob(purger, newTestLogger(&buf), nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purger.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("job did not run on start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
