// internal/state/store.go
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/user/gules/internal/types"
)

// DefaultMaxSessions bounds the number of cached sessions when Options leaves
// MaxSessions unset.
const DefaultMaxSessions = 50

// Options configures a Store.
type Options struct {
	// Dir is the cache root. Session files live in Dir/sessions and the
	// index in Dir/index.json.
	Dir         string
	MaxSessions int
	// Compress writes session files zstd compressed. Either form is read
	// regardless of this setting.
	Compress bool
	// MemoTTL keeps decoded caches in memory for repeated loads. Zero
	// disables the memo.
	MemoTTL time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// Store is a filesystem-backed cache of session activity logs.
// One process is expected to own the directory; there is no file locking.
type Store struct {
	dir         string
	maxSessions int
	compress    bool
	now         func() time.Time
	log         *slog.Logger
	memo        *gocache.Cache
	journal     *Journal
	remove      func(string) error

	mu sync.RWMutex
}

// NewStore creates a Store rooted at opts.Dir. Nothing is read or created
// until the first operation.
func NewStore(opts Options) *Store {
	s := &Store{
		dir:         opts.Dir,
		maxSessions: opts.MaxSessions,
		compress:    opts.Compress,
		now:         opts.Now,
		log:         opts.Logger,
		journal:     NewJournal(filepath.Join(opts.Dir, "journal")),
		remove:      os.Remove,
	}
	if s.maxSessions <= 0 {
		s.maxSessions = DefaultMaxSessions
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if opts.MemoTTL > 0 {
		s.memo = gocache.New(opts.MemoTTL, 2*opts.MemoTTL)
	}
	return s
}

// Dir returns the cache root.
func (s *Store) Dir() string { return s.dir }

// MaxSessions returns the eviction bound.
func (s *Store) MaxSessions() int { return s.maxSessions }

// Journal returns the sync journal kept beside the cache. Its entries are
// dropped together with the session they describe.
func (s *Store) Journal() *Journal { return s.journal }

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, "index.json")
}

func (s *Store) sessionsDir() string {
	return filepath.Join(s.dir, "sessions")
}

func fileName(id types.SessionID) string {
	return url.PathEscape(string(id)) + ".json"
}

func (s *Store) sessionPath(file string) string {
	return filepath.Join(s.sessionsDir(), file)
}

func validID(id types.SessionID) error {
	parsed, err := types.ParseSessionID(string(id))
	if err != nil {
		return err
	}
	if parsed != id {
		return fmt.Errorf("%w: %q is not a bare id", types.ErrInvalidSessionID, id)
	}
	return nil
}

// Load returns the cached copy of a session. A session that was never cached
// yields an empty cache, as does a file the index no longer lists, such as
// one whose removal failed after eviction. A cache file that cannot be read
// back is logged and treated as empty; it is replaced on the next Save.
func (s *Store) Load(_ context.Context, id types.SessionID) (*SessionCache, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	if c, ok := s.memoGet(id); ok {
		return c, nil
	}

	// loadIndex may rebuild and persist the index.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadIndex().find(id) < 0 {
		return NewSessionCache(id), nil
	}
	data, err := os.ReadFile(s.sessionPath(fileName(id)))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("unreadable session cache, treating as empty", "session_id", id, "error", err)
		}
		return NewSessionCache(id), nil
	}

	c, err := unmarshalSession(data)
	if err == nil && c.SessionID != id {
		err = fmt.Errorf("file holds session %s", c.SessionID)
	}
	if err != nil {
		s.log.Warn("corrupt session cache, treating as empty", "session_id", id, "error", err)
		return NewSessionCache(id), nil
	}

	s.memoSet(c)
	return c.Clone(), nil
}

// Save persists c atomically and records it as the most recently written
// entry of the index. created reports whether the session was not indexed
// before; only then may other sessions be evicted to respect MaxSessions.
func (s *Store) Save(_ context.Context, c *SessionCache) (created bool, err error) {
	if err := validID(c.SessionID); err != nil {
		return false, err
	}

	data, err := marshalSession(c, s.compress)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The index is read before the file is written so that a rebuild cannot
	// pick up this session's new file and mistake it for an existing entry.
	idx := s.loadIndex()
	file := fileName(c.SessionID)
	if err := writeAtomic(s.sessionPath(file), data); err != nil {
		return false, fmt.Errorf("write session cache %s: %w", c.SessionID, err)
	}

	created = idx.put(&IndexEntry{
		SessionID:     c.SessionID,
		File:          file,
		NextPageToken: c.NextPageToken,
		LastSyncedAt:  c.LastSyncedAt,
		ActivityCount: len(c.Activities),
		Bytes:         int64(len(data)),
		UpdatedAt:     s.now(),
	})
	if err := s.saveIndex(idx); err != nil {
		return created, err
	}
	s.memoSet(c)

	if created {
		if _, err := s.evict(idx, c.SessionID); err != nil {
			s.log.Warn("eviction incomplete", "error", err)
		}
	}
	return created, nil
}

// Delete removes a session from the index and then its file. It reports
// whether anything was removed. A file left behind by a failed removal is no
// longer indexed, so Load does not serve it.
func (s *Store) Delete(_ context.Context, id types.SessionID) (bool, error) {
	if err := validID(id); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memoDelete(id)
	idx := s.loadIndex()
	_, indexed := idx.remove(id)
	if indexed {
		if err := s.saveIndex(idx); err != nil {
			return false, err
		}
	}
	if err := s.journal.remove(id); err != nil {
		s.log.Warn("remove sync journal", "session_id", id, "error", err)
	}

	err := s.remove(s.sessionPath(fileName(id)))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return indexed, nil
	default:
		return indexed, fmt.Errorf("remove session cache %s: %w", id, err)
	}
}

// ClearAll removes every cached session and returns how many were indexed.
func (s *Store) ClearAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memo != nil {
		s.memo.Flush()
	}
	idx := s.loadIndex()
	n := len(idx.Entries)
	if err := s.saveIndex(&Index{}); err != nil {
		return 0, err
	}
	if err := os.RemoveAll(s.sessionsDir()); err != nil {
		return n, fmt.Errorf("remove sessions dir: %w", err)
	}
	if err := s.journal.removeAll(); err != nil {
		return n, err
	}
	return n, nil
}

// List returns the index entries from least to most recently written.
func (s *Store) List(_ context.Context) ([]IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadIndex()
	out := make([]IndexEntry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		out = append(out, *e)
	}
	return out, nil
}

func (s *Store) memoGet(id types.SessionID) (*SessionCache, bool) {
	if s.memo == nil {
		return nil, false
	}
	v, ok := s.memo.Get(string(id))
	if !ok {
		return nil, false
	}
	return v.(*SessionCache).Clone(), true
}

func (s *Store) memoSet(c *SessionCache) {
	if s.memo != nil {
		s.memo.Set(string(c.SessionID), c.Clone(), gocache.DefaultExpiration)
	}
}

func (s *Store) memoDelete(id types.SessionID) {
	if s.memo != nil {
		s.memo.Delete(string(id))
	}
}

// writeAtomic writes data to a uniquely named temp file beside path and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
