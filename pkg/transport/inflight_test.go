package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInFlightCancelByRequestID(t *testing.T) {
	r := NewInFlightRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	release := r.Register("req-1", "session-a", cancel)
	defer release()

	if !r.Cancel("req-1") {
		t.Fatal("Cancel(req-1) = false, want true")
	}
	if ctx.Err() == nil {
		t.Error("exchange context not cancelled")
	}
	if r.Cancel("req-unknown") {
		t.Error("Cancel(req-unknown) = true, want false")
	}
	// Cancelled exchanges stay registered until they release.
	if r.Len() != 1 {
		t.Errorf("Len() = %d before release, want 1", r.Len())
	}
}

func TestInFlightReleaseIsIdempotent(t *testing.T) {
	r := NewInFlightRegistry()
	var cancelled atomic.Bool
	release := r.Register("req-1", "s", func() { cancelled.Store(true) })

	release()
	release()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if cancelled.Load() {
		t.Error("release must not cancel the exchange")
	}
}

func TestInFlightReregisterKeepsNewEntry(t *testing.T) {
	r := NewInFlightRegistry()
	releaseOld := r.Register("req-1", "s", func() {})
	releaseNew := r.Register("req-1", "s", func() {})

	releaseOld()
	if r.Len() != 1 {
		t.Fatalf("Len() = %d after releasing the replaced entry, want 1", r.Len())
	}
	releaseNew()
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestInFlightCancelSessionWaitsForRelease(t *testing.T) {
	r := NewInFlightRegistry()

	var committed atomic.Bool
	for i, session := range []string{"a", "a", "b"} {
		ctx, cancel := context.WithCancel(context.Background())
		release := r.Register(fmt.Sprintf("req-%d", i), session, cancel)
		go func() {
			<-ctx.Done()
			if session == "a" {
				time.Sleep(10 * time.Millisecond)
				committed.Store(true)
			}
			release()
		}()
	}

	n, err := r.CancelSession(context.Background(), "a")
	if err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	if n != 2 {
		t.Errorf("cancelled = %d, want 2", n)
	}
	if !committed.Load() {
		t.Error("CancelSession returned before the exchanges released")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (session b untouched)", r.Len())
	}
}

func TestInFlightCancelSessionHonoursContext(t *testing.T) {
	r := NewInFlightRegistry()
	release := r.Register("req-1", "a", func() {}) // never releases on cancel
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	n, err := r.CancelSession(ctx, "a")
	if n != 1 {
		t.Errorf("cancelled = %d, want 1", n)
	}
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestInFlightSnapshotOrder(t *testing.T) {
	r := NewInFlightRegistry()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	offsets := map[string]time.Duration{"req-late": 2 * time.Second, "req-early": 0, "req-mid": time.Second}
	for _, id := range []string{"req-late", "req-early", "req-mid"} {
		r.now = func() time.Time { return base.Add(offsets[id]) }
		r.Register(id, "s", func() {})
	}

	snap := r.Snapshot()
	want := []string{"req-early", "req-mid", "req-late"}
	if len(snap) != len(want) {
		t.Fatalf("snapshot = %+v", snap)
	}
	for i, id := range want {
		if snap[i].RequestID != id || snap[i].Session != "s" {
			t.Errorf("snapshot[%d] = %+v, want %s", i, snap[i], id)
		}
	}
}

func TestInFlightConcurrentAccess(t *testing.T) {
	r := NewInFlightRegistry()
	var cancelCount atomic.Int64
	const n = 100

	var wg sync.WaitGroup
	releases := make([]func(), n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			releases[i] = r.Register(fmt.Sprintf("req-%d", i), fmt.Sprintf("s-%d", i%4), func() { cancelCount.Add(1) })
		}(i)
	}
	wg.Wait()

	if got := r.CancelAll(); got != n {
		t.Errorf("CancelAll() = %d, want %d", got, n)
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			releases[i]()
		}(i)
	}
	wg.Wait()

	if cancelCount.Load() != n {
		t.Errorf("cancellations = %d, want %d", cancelCount.Load(), n)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
