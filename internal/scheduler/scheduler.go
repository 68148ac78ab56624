// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/user/gules/internal/types"
)

// Handler is called each time a watched session is due for a sync. Returning
// true stops watching the session.
type Handler func(ctx context.Context, id types.SessionID) (done bool)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field, plus descriptors such as
// "@every 5m".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a schedule expression.
func ParseSchedule(spec string) error {
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler syncs watched sessions on cron schedules. A session whose
// previous sync is still running skips its next tick.
type Scheduler struct {
	handler Handler
	log     *slog.Logger
	cron    *cron.Cron

	mu       sync.Mutex
	entries  map[types.SessionID]cron.EntryID
	ctx      context.Context
	cancel   context.CancelFunc
	idle     chan struct{}
	idleOnce sync.Once
}

func New(handler Handler, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{log: logger}
	return &Scheduler{
		handler: handler,
		log:     logger,
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		entries: make(map[types.SessionID]cron.EntryID),
		idle:    make(chan struct{}),
	}
}

// Watch schedules id. Watching an already watched session replaces its
// schedule.
func (s *Scheduler) Watch(id types.SessionID, schedule string) error {
	if err := ParseSchedule(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old)
	}

	var running sync.Mutex
	entry, err := s.cron.AddFunc(schedule, func() {
		if !running.TryLock() {
			s.log.Debug("previous sync still running, skipping tick", "session_id", id)
			return
		}
		defer running.Unlock()
		s.log.Debug("scheduled sync firing", "session_id", id)
		if s.handler(s.context(), id) {
			s.log.Info("session settled, no longer watching", "session_id", id)
			s.Unwatch(id)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule session %s: %w", id, err)
	}
	s.entries[id] = entry
	s.log.Info("watching session", "session_id", id, "schedule", schedule)
	return nil
}

// Unwatch removes id's schedule and reports whether it was watched.
// Removing the last watched session closes Idle.
func (s *Scheduler) Unwatch(id types.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	s.cron.Remove(entry)
	delete(s.entries, id)
	if len(s.entries) == 0 {
		s.idleOnce.Do(func() { close(s.idle) })
	}
	return true
}

// Idle is closed once an Unwatch leaves no session watched.
func (s *Scheduler) Idle() <-chan struct{} {
	return s.idle
}

// Watched returns the number of watched sessions.
func (s *Scheduler) Watched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Start begins firing schedules. Handlers receive a context that is
// cancelled by Stop or when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
}

// Stop cancels running handlers and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
