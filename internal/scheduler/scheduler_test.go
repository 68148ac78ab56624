// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/gules/internal/types"
)

func waitFor(t *testing.T, within time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(within)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			t.Fatalf("condition not met within %s", within)
		case <-ticker.C:
			if cond() {
				return
			}
		}
	}
}

func TestSchedulerFiresWatchedSession(t *testing.T) {
	var fires atomic.Int32
	var got atomic.Value
	sched := New(func(ctx context.Context, id types.SessionID) bool {
		got.Store(id)
		fires.Add(1)
		return false
	}, nil)
	if err := sched.Watch("s1", "* * * * * *"); err != nil {
		t.Fatal(err)
	}
	sched.Start(context.Background())
	defer sched.Stop()

	waitFor(t, 2500*time.Millisecond, func() bool { return fires.Load() > 0 })
	if id, _ := got.Load().(types.SessionID); id != "s1" {
		t.Errorf("handler got session %q, want s1", id)
	}
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	sched := New(func(context.Context, types.SessionID) bool { return false }, nil)
	if err := sched.Watch("s1", "every now and then"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if sched.Watched() != 0 {
		t.Errorf("invalid schedule should not be registered")
	}
}

func TestSchedulerUnwatch(t *testing.T) {
	var fires atomic.Int32
	sched := New(func(context.Context, types.SessionID) bool {
		fires.Add(1)
		return false
	}, nil)
	if err := sched.Watch("s1", "* * * * * *"); err != nil {
		t.Fatal(err)
	}
	if !sched.Unwatch("s1") {
		t.Fatal("expected s1 to be watched")
	}
	if sched.Unwatch("s1") {
		t.Error("second unwatch should report false")
	}
	sched.Start(context.Background())
	defer sched.Stop()

	time.Sleep(1500 * time.Millisecond)
	if n := fires.Load(); n != 0 {
		t.Errorf("expected 0 fires after unwatch, got %d", n)
	}
}

func TestSchedulerReplacesSchedule(t *testing.T) {
	sched := New(func(context.Context, types.SessionID) bool { return false }, nil)
	if err := sched.Watch("s1", "@every 1h"); err != nil {
		t.Fatal(err)
	}
	if err := sched.Watch("s1", "@every 2h"); err != nil {
		t.Fatal(err)
	}
	if n := sched.Watched(); n != 1 {
		t.Errorf("expected 1 watched session, got %d", n)
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	var running, maxRunning, fires atomic.Int32
	sched := New(func(ctx context.Context, id types.SessionID) bool {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		fires.Add(1)
		select {
		case <-time.After(2500 * time.Millisecond):
		case <-ctx.Done():
		}
		running.Add(-1)
		return false
	}, nil)
	if err := sched.Watch("s1", "* * * * * *"); err != nil {
		t.Fatal(err)
	}
	sched.Start(context.Background())

	waitFor(t, 2500*time.Millisecond, func() bool { return fires.Load() > 0 })
	time.Sleep(1500 * time.Millisecond)
	sched.Stop()

	if m := maxRunning.Load(); m != 1 {
		t.Errorf("expected at most one concurrent sync per session, saw %d", m)
	}
	if n := fires.Load(); n != 1 {
		t.Errorf("expected overlapping ticks to be skipped, got %d fires", n)
	}
}

func TestSchedulerStopsWatchingSettledSession(t *testing.T) {
	var s1, s2 atomic.Int32
	sched := New(func(ctx context.Context, id types.SessionID) bool {
		if id == "s1" {
			return s1.Add(1) >= 2
		}
		s2.Add(1)
		return true
	}, nil)
	for _, id := range []types.SessionID{"s1", "s2"} {
		if err := sched.Watch(id, "* * * * * *"); err != nil {
			t.Fatal(err)
		}
	}
	sched.Start(context.Background())
	defer sched.Stop()

	select {
	case <-sched.Idle():
	case <-time.After(5 * time.Second):
		t.Fatalf("expected idle once both sessions settled, s1=%d s2=%d", s1.Load(), s2.Load())
	}
	if n := sched.Watched(); n != 0 {
		t.Errorf("expected no watched sessions, got %d", n)
	}

	time.Sleep(1500 * time.Millisecond)
	if n := s2.Load(); n != 1 {
		t.Errorf("settled session should not fire again, got %d fires", n)
	}
	if n := s1.Load(); n != 2 {
		t.Errorf("expected s1 to stop after settling on its second sync, got %d fires", n)
	}
}

func TestSchedulerIdleAfterLastUnwatch(t *testing.T) {
	sched := New(func(context.Context, types.SessionID) bool { return false }, nil)
	sched.Watch("s1", "@every 1h")
	sched.Watch("s2", "@every 1h")

	sched.Unwatch("s1")
	select {
	case <-sched.Idle():
		t.Fatal("idle with a session still watched")
	default:
	}
	sched.Unwatch("s2")
	select {
	case <-sched.Idle():
	default:
		t.Fatal("expected idle after the last unwatch")
	}
}

func TestParseSchedule(t *testing.T) {
	for _, ok := range []string{"*/5 * * * *", "0 */10 * * * *", "@every 30s", "@hourly"} {
		if err := ParseSchedule(ok); err != nil {
			t.Errorf("ParseSchedule(%q): %v", ok, err)
		}
	}
	if err := ParseSchedule("61 * * * *"); err == nil {
		t.Error("expected error for out of range minute")
	}
}
