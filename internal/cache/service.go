// internal/cache/service.go
package cache

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/user/gules/internal/activity"
	"github.com/user/gules/internal/filter"
	"github.com/user/gules/internal/state"
	"github.com/user/gules/internal/syncer"
	"github.com/user/gules/internal/types"
)

// Service is the entry point for callers that want a session's activities.
// It owns the store and the sync engine and never syncs on read-only calls.
type Service struct {
	store   *state.Store
	engine  *syncer.Engine
	enabled bool
	log     *slog.Logger
	flight  singleflight.Group
}

// Config controls a Service. With Enabled false every query fetches from the
// remote and nothing is written to disk.
type Config struct {
	Enabled bool
	Logger  *slog.Logger
}

func NewService(store *state.Store, engine *syncer.Engine, cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, engine: engine, enabled: cfg.Enabled, log: log}
}

// Enabled reports whether results are cached.
func (s *Service) Enabled() bool { return s.enabled }

// EnsureSynced syncs a session's cache. Concurrent calls for the same session
// and mode share one sync.
func (s *Service) EnsureSynced(ctx context.Context, id types.SessionID, forceFull bool) (syncer.Result, error) {
	key := string(id)
	if forceFull {
		key += "\x00full"
	}
	v, err, shared := s.flight.Do(key, func() (any, error) {
		return s.engine.Sync(ctx, id, syncer.Options{Force: forceFull})
	})
	if shared {
		s.log.Debug("joined in-flight sync", "session_id", id)
	}
	res, _ := v.(syncer.Result)
	return res, err
}

// Filter returns the cached activities of a session that match p. It does
// not sync.
func (s *Service) Filter(ctx context.Context, id types.SessionID, p *filter.Predicate) ([]*activity.Activity, error) {
	c, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return filter.Apply(c.Activities, p), nil
}

// Collect fetches a session's activities from the remote without the cache.
func (s *Service) Collect(ctx context.Context, id types.SessionID) ([]*activity.Activity, syncer.Result, error) {
	return s.engine.Collect(ctx, id, syncer.Options{})
}

// QueryOptions selects how Query obtains activities.
type QueryOptions struct {
	// Refresh forces a full resync before filtering.
	Refresh bool
	// Offline reads the cache only.
	Offline bool
	// NoCache fetches from the remote without reading or writing the cache.
	NoCache bool
}

// QueryResult carries the filtered activities and what was done to get them.
// SyncErr is set when a sync failed but cached activities could still be
// served.
type QueryResult struct {
	Activities []*activity.Activity
	Sync       *syncer.Result
	SyncErr    error
	FromCache  bool
}

// Query syncs as opts asks and then filters. A failed sync is not fatal when
// the cache holds activities for the session; the stale view is returned
// with SyncErr set.
func (s *Service) Query(ctx context.Context, id types.SessionID, p *filter.Predicate, opts QueryOptions) (*QueryResult, error) {
	if opts.NoCache || !s.enabled {
		acts, res, err := s.Collect(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch activities: %w", err)
		}
		return &QueryResult{Activities: filter.Apply(acts, p), Sync: &res}, nil
	}

	out := &QueryResult{FromCache: true}
	if !opts.Offline {
		res, err := s.EnsureSynced(ctx, id, opts.Refresh)
		out.Sync = &res
		if err != nil {
			if res.TotalRecords == 0 {
				return nil, fmt.Errorf("sync session %s: %w", id, err)
			}
			s.log.Warn("sync failed, serving cached activities", "session_id", id,
				"added", res.RecordsAdded, "error", err)
			out.SyncErr = err
		}
	}

	acts, err := s.Filter(ctx, id, p)
	if err != nil {
		return nil, err
	}
	out.Activities = acts
	return out, nil
}

// Stats reports cache usage. It never evicts.
func (s *Service) Stats(ctx context.Context) (state.Stats, error) {
	return s.store.Stats(ctx)
}

// Sessions lists cached sessions from least to most recently written.
func (s *Service) Sessions(ctx context.Context) ([]state.IndexEntry, error) {
	return s.store.List(ctx)
}

// Evict drops one session from the cache.
func (s *Service) Evict(ctx context.Context, id types.SessionID) (bool, error) {
	return s.store.Delete(ctx, id)
}

// ClearAll drops every cached session.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	return s.store.ClearAll(ctx)
}

// History returns the last limit sync runs recorded for a session, oldest
// first.
func (s *Service) History(ctx context.Context, id types.SessionID, limit int) ([]*state.SyncRecord, error) {
	return s.store.Journal().Tail(ctx, id, limit)
}
