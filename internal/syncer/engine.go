// internal/syncer/engine.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/gules/internal/activity"
	"github.com/user/gules/internal/state"
	"github.com/user/gules/internal/types"
)

// ErrTransientFetch wraps a failed page fetch. Pages merged before the
// failure are kept.
var ErrTransientFetch = errors.New("transient fetch error")

const (
	DefaultPageSize = 50
	DefaultMaxPages = 20
)

// Store is the part of the cache store the engine needs.
type Store interface {
	Load(ctx context.Context, id types.SessionID) (*state.SessionCache, error)
	Save(ctx context.Context, c *state.SessionCache) (bool, error)
}

// Options controls one sync. Zero values take the engine's defaults; a
// negative MaxPages removes the page budget.
type Options struct {
	Force    bool
	PageSize int
	MaxPages int
}

// Result describes what a sync did. It is meaningful even when Sync returns
// an error.
type Result struct {
	RunID         types.RunID
	RecordsAdded  int
	TotalRecords  int
	PagesFetched  int
	Divergent     int
	NextPageToken string
	// Complete is true when the remote reported no further pages.
	Complete bool
	Saved    bool
}

// Journal records the outcome of each sync run.
type Journal interface {
	Append(ctx context.Context, rec *state.SyncRecord) error
}

// Config holds engine defaults and collaborators.
type Config struct {
	PageSize int
	MaxPages int
	// Journal is optional; when set every Sync appends one record to it.
	Journal Journal
	Now     func() time.Time
	Logger  *slog.Logger
}

// Engine fetches activity pages and merges them into the cache store.
type Engine struct {
	fetcher types.ActivityFetcher
	store   Store
	cfg     Config
}

func NewEngine(fetcher types.ActivityFetcher, store Store, cfg Config) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{fetcher: fetcher, store: store, cfg: cfg}
}

func (e *Engine) resolve(opts Options) Options {
	if opts.PageSize <= 0 {
		opts.PageSize = e.cfg.PageSize
	}
	if opts.MaxPages == 0 {
		opts.MaxPages = e.cfg.MaxPages
	}
	return opts
}

// Sync brings the cached copy of a session up to date. It resumes from the
// stored cursor, or from the beginning when there is none or opts.Force is
// set, and fetches until the remote has no further pages or the page budget
// runs out. The merged cache is saved once at the end, including after a
// failed page when earlier pages added records.
func (e *Engine) Sync(ctx context.Context, id types.SessionID, opts Options) (res Result, err error) {
	opts = e.resolve(opts)
	res = Result{RunID: types.NewRunID()}
	log := e.cfg.Logger.With("session_id", id, "run_id", res.RunID)

	c, err := e.store.Load(ctx, id)
	if err != nil {
		return res, fmt.Errorf("load session cache: %w", err)
	}

	token := c.NextPageToken
	if opts.Force {
		token = ""
	}
	log.Debug("sync start", "cursor", token, "cached", len(c.Activities), "force", opts.Force)

	m := newMerger(c, e.cfg.Now, log)
	prior := len(c.Divergences)
	defer func() {
		e.record(ctx, id, opts, res, m.divergences[prior:], err, log)
	}()

	cursor, fetchErr := e.fetchPages(ctx, id, token, opts, &res, func(page *types.ActivityPage) {
		m.merge(page.Activities)
	})

	res.RecordsAdded = m.added
	res.Divergent = m.divergent
	if fetchErr != nil && m.added == 0 && m.divergent == 0 {
		res.TotalRecords = len(c.Activities)
		res.NextPageToken = c.NextPageToken
		return res, fetchErr
	}

	now := e.cfg.Now()
	c.Activities = m.sorted()
	c.Divergences = m.divergences
	c.NextPageToken = cursor
	c.LastSyncedAt = now
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if _, err := e.store.Save(ctx, c); err != nil {
		return res, errors.Join(fetchErr, fmt.Errorf("save session cache: %w", err))
	}
	res.Saved = true
	res.TotalRecords = len(c.Activities)
	res.NextPageToken = cursor

	log.Info("sync done", "added", res.RecordsAdded, "total", res.TotalRecords,
		"pages", res.PagesFetched, "complete", res.Complete, "divergent", res.Divergent)
	return res, fetchErr
}

func (e *Engine) record(ctx context.Context, id types.SessionID, opts Options, res Result, fresh []state.Divergence, syncErr error, log *slog.Logger) {
	if e.cfg.Journal == nil {
		return
	}
	rec := &state.SyncRecord{
		RunID:       res.RunID,
		SessionID:   id,
		At:          e.cfg.Now(),
		Force:       opts.Force,
		Pages:       res.PagesFetched,
		Added:       res.RecordsAdded,
		Total:       res.TotalRecords,
		Complete:    res.Complete,
		Saved:       res.Saved,
		Cursor:      res.NextPageToken,
		Divergences: fresh,
	}
	if syncErr != nil {
		rec.Error = syncErr.Error()
	}
	// Cancellation should not cost the record of what was fetched.
	if err := e.cfg.Journal.Append(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("append sync journal", "error", err)
	}
}

// Collect fetches a session's activities without reading or writing the
// cache, applying the same deduplication and ordering as Sync.
func (e *Engine) Collect(ctx context.Context, id types.SessionID, opts Options) ([]*activity.Activity, Result, error) {
	opts = e.resolve(opts)
	res := Result{RunID: types.NewRunID()}
	log := e.cfg.Logger.With("session_id", id, "run_id", res.RunID)

	m := newMerger(state.NewSessionCache(id), e.cfg.Now, log)
	cursor, err := e.fetchPages(ctx, id, "", opts, &res, func(page *types.ActivityPage) {
		m.merge(page.Activities)
	})
	res.RecordsAdded = m.added
	res.Divergent = m.divergent
	res.NextPageToken = cursor
	out := m.sorted()
	res.TotalRecords = len(out)
	return out, res, err
}

// fetchPages walks pages from token, calling merge for each, and returns the
// cursor to resume from: the last successfully received next-page token. A
// token that was already requested in this walk ends it with an error.
func (e *Engine) fetchPages(ctx context.Context, id types.SessionID, token string, opts Options, res *Result, merge func(*types.ActivityPage)) (string, error) {
	cursor := token
	seen := map[string]bool{token: true}
	for opts.MaxPages < 0 || res.PagesFetched < opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return cursor, fmt.Errorf("%w: page %d: %w", ErrTransientFetch, res.PagesFetched+1, err)
		}
		page, err := e.fetcher.FetchActivitiesPage(ctx, id, token, opts.PageSize)
		if err != nil {
			return cursor, fmt.Errorf("%w: page %d: %w", ErrTransientFetch, res.PagesFetched+1, err)
		}
		if page == nil {
			page = &types.ActivityPage{}
		}
		res.PagesFetched++
		merge(page)

		cursor = page.NextPageToken
		if cursor == "" {
			res.Complete = true
			return "", nil
		}
		if seen[cursor] {
			return cursor, fmt.Errorf("%w: page %d returned already visited token %q", ErrTransientFetch, res.PagesFetched, cursor)
		}
		seen[cursor] = true
		token = cursor
	}
	return cursor, nil
}
