// internal/state/journal.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/gules/internal/types"
)

// SyncRecord describes one sync run against a session.
type SyncRecord struct {
	Seq       int64           `json:"seq"`
	RunID     types.RunID     `json:"run_id"`
	SessionID types.SessionID `json:"session_id"`
	At        time.Time       `json:"at"`
	Force     bool            `json:"force,omitempty"`
	Pages     int             `json:"pages"`
	Added     int             `json:"added"`
	Total     int             `json:"total"`
	Complete  bool            `json:"complete"`
	Saved     bool            `json:"saved"`
	Cursor    string          `json:"cursor,omitempty"`
	// Divergences lists only those first observed during this run.
	Divergences []Divergence `json:"divergences,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Journal is an append-only JSONL log of sync runs, one file per session
// under root.
type Journal struct {
	root  string
	mu    sync.Mutex
	locks map[types.SessionID]*sync.Mutex
}

// NewJournal creates a Journal rooted at root. The directory is created on
// first append.
func NewJournal(root string) *Journal {
	return &Journal{
		root:  root,
		locks: make(map[types.SessionID]*sync.Mutex),
	}
}

func (j *Journal) lock(id types.SessionID) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()

	if l, ok := j.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	j.locks[id] = l
	return l
}

func (j *Journal) path(id types.SessionID) string {
	return filepath.Join(j.root, url.PathEscape(string(id))+".jsonl")
}

// count returns the number of lines in the session's journal. Caller must
// hold the session lock.
func (j *Journal) count(id types.SessionID) (int64, error) {
	f, err := os.Open(j.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var n int64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("scan journal: %w", err)
	}
	return n, nil
}

// Append writes rec to its session's journal, assigning the next sequence
// number.
func (j *Journal) Append(_ context.Context, rec *SyncRecord) error {
	if err := validID(rec.SessionID); err != nil {
		return err
	}
	l := j.lock(rec.SessionID)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(j.root, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	n, err := j.count(rec.SessionID)
	if err != nil {
		return err
	}
	rec.Seq = n + 1

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal sync record: %w", err)
	}
	f, err := os.OpenFile(j.path(rec.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write sync record: %w", err)
	}
	return nil
}

// Tail returns the last limit records for id, oldest first. A limit of zero
// or less returns every record. Lines that do not decode, such as one cut
// short by a crash, are skipped.
func (j *Journal) Tail(_ context.Context, id types.SessionID, limit int) ([]*SyncRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	l := j.lock(id)
	l.Lock()
	defer l.Unlock()

	f, err := os.Open(j.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var recs []*SyncRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec SyncRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		recs = append(recs, &rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs, nil
}

// Count returns the number of records kept for id.
func (j *Journal) Count(_ context.Context, id types.SessionID) (int64, error) {
	if err := validID(id); err != nil {
		return 0, err
	}
	l := j.lock(id)
	l.Lock()
	defer l.Unlock()

	return j.count(id)
}

func (j *Journal) remove(id types.SessionID) error {
	l := j.lock(id)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(j.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove journal %s: %w", id, err)
	}
	return nil
}

func (j *Journal) removeAll() error {
	if err := os.RemoveAll(j.root); err != nil {
		return fmt.Errorf("remove journal dir: %w", err)
	}
	return nil
}
