// internal/state/index.go
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/user/gules/internal/types"
)

// IndexEntry is the index's view of one cached session.
type IndexEntry struct {
	SessionID     types.SessionID `json:"session_id"`
	File          string          `json:"file"`
	NextPageToken string          `json:"next_page_token,omitempty"`
	LastSyncedAt  time.Time       `json:"last_synced_at"`
	ActivityCount int             `json:"activity_count"`
	Bytes         int64           `json:"bytes"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Index lists cached sessions from least to most recently written.
type Index struct {
	Schema  string        `json:"schema"`
	Entries []*IndexEntry `json:"entries"`
}

func (idx *Index) find(id types.SessionID) int {
	for i, e := range idx.Entries {
		if e.SessionID == id {
			return i
		}
	}
	return -1
}

// put moves the entry for e.SessionID to the most recent position and
// reports whether it is new.
func (idx *Index) put(e *IndexEntry) bool {
	_, existed := idx.remove(e.SessionID)
	idx.Entries = append(idx.Entries, e)
	return !existed
}

func (idx *Index) remove(id types.SessionID) (*IndexEntry, bool) {
	i := idx.find(id)
	if i < 0 {
		return nil, false
	}
	e := idx.Entries[i]
	idx.Entries = append(idx.Entries[:i], idx.Entries[i+1:]...)
	return e, true
}

// loadIndex reads index.json. A missing, corrupt or foreign index is rebuilt
// from the session files.
func (s *Store) loadIndex() *Index {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("unreadable cache index, rebuilding", "error", err)
		}
		return s.rebuildIndex()
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		s.log.Warn("corrupt cache index, rebuilding", "error", err)
		return s.rebuildIndex()
	}
	if idx.Schema != IndexSchema {
		s.log.Warn("cache index has unsupported schema, rebuilding", "schema", idx.Schema)
		return s.rebuildIndex()
	}
	return &idx
}

// rebuildIndex scans the sessions directory. Files that do not decode are
// skipped and left for the next Save to replace. The result is persisted
// when anything was found.
func (s *Store) rebuildIndex() *Index {
	idx := &Index{}
	dirEntries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("scan sessions dir", "error", err)
		}
		return idx
	}

	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.sessionsDir(), name))
		if err != nil {
			s.log.Warn("skip unreadable session cache", "file", name, "error", err)
			continue
		}
		c, err := unmarshalSession(data)
		if err != nil || fileName(c.SessionID) != name {
			s.log.Warn("skip corrupt session cache", "file", name, "error", err)
			continue
		}
		info, _ := de.Info()
		var updated time.Time
		if info != nil {
			updated = info.ModTime()
		}
		idx.Entries = append(idx.Entries, &IndexEntry{
			SessionID:     c.SessionID,
			File:          name,
			NextPageToken: c.NextPageToken,
			LastSyncedAt:  c.LastSyncedAt,
			ActivityCount: len(c.Activities),
			Bytes:         int64(len(data)),
			UpdatedAt:     updated,
		})
	}
	sort.SliceStable(idx.Entries, func(i, j int) bool {
		return idx.Entries[i].UpdatedAt.Before(idx.Entries[j].UpdatedAt)
	})

	if len(idx.Entries) > 0 {
		s.log.Info("rebuilt cache index", "sessions", len(idx.Entries))
		if err := s.saveIndex(idx); err != nil {
			s.log.Warn("persist rebuilt index", "error", err)
		}
	}
	return idx
}

func (s *Store) saveIndex(idx *Index) error {
	idx.Schema = IndexSchema
	if idx.Entries == nil {
		idx.Entries = []*IndexEntry{}
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache index: %w", err)
	}
	if err := writeAtomic(s.indexPath(), data); err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}
	return nil
}
