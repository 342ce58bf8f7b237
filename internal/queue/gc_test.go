package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubPurger struct {
	calls     int
	retention time.Duration
	purged    int
	err       error
}

func (s *stubPurger) PurgeOlderThan(_ context.Context, retention time.Duration) (int, error) {
	s.calls++
	s.retention = retention
	return s.purged, s.err
}

func TestGarbageCollectorNilPurger(t *testing.T) {
	t.Parallel()

	gc := NewGarbageCollector(nil, time.Minute, 24*time.Hour, nil)
	if err := gc.collect(context.Background()); err != nil {
		t.Errorf("collect with nil purger: %v", err)
	}
}

func TestGarbageCollectorPassesRetention(t *testing.T) {
	t.Parallel()

	purger := &stubPurger{purged: 3}
	gc := NewGarbageCollector(purger, time.Minute, 24*time.Hour, nil)

	if err := gc.collect(context.Background()); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if purger.calls != 1 {
		t.Errorf("purger called %d times, want 1", purger.calls)
	}
	if purger.retention != 24*time.Hour {
		t.Errorf("retention = %v, want 24h", purger.retention)
	}
}

func TestGarbageCollectorPurgeError(t *testing.T) {
	t.Parallel()

	purger := &stubPurger{err: errors.New("broker gone")}
	gc := NewGarbageCollector(purger, time.Minute, time.Hour, nil)

	if err := gc.collect(context.Background()); err == nil {
		t.Error("expected error from collect")
	}
}

func TestGarbageCollectorStopsOnCancel(t *testing.T) {
	t.Parallel()

	gc := NewGarbageCollector(&stubPurger{}, 24*time.Hour, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gc.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start returned %v, want context.Canceled", err)
	}
}
