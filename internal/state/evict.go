// internal/state/evict.go
package state

import (
	"errors"
	"fmt"
	"os"

	"github.com/user/gules/internal/types"
)

// evict removes the least recently synced sessions until the index holds at
// most maxSessions entries. keep is never evicted. Ties go to the entry
// written earliest. Each removal persists the index before deleting the file,
// so the index never lists a deleted payload; a file whose removal fails is
// left unindexed and Load ignores it.
func (s *Store) evict(idx *Index, keep types.SessionID) ([]types.SessionID, error) {
	var evicted []types.SessionID
	for len(idx.Entries) > s.maxSessions {
		victim := oldest(idx.Entries, keep)
		if victim < 0 {
			break
		}
		e := idx.Entries[victim]
		idx.Entries = append(idx.Entries[:victim], idx.Entries[victim+1:]...)
		if err := s.saveIndex(idx); err != nil {
			return evicted, fmt.Errorf("evict %s: %w", e.SessionID, err)
		}
		s.memoDelete(e.SessionID)
		if err := s.remove(s.sessionPath(e.File)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("remove evicted session file", "session_id", e.SessionID, "error", err)
		}
		if err := s.journal.remove(e.SessionID); err != nil {
			s.log.Warn("remove sync journal", "session_id", e.SessionID, "error", err)
		}
		s.log.Info("evicted session cache", "session_id", e.SessionID, "last_synced_at", e.LastSyncedAt)
		evicted = append(evicted, e.SessionID)
	}
	return evicted, nil
}

func oldest(entries []*IndexEntry, keep types.SessionID) int {
	best := -1
	for i, e := range entries {
		if e.SessionID == keep {
			continue
		}
		if best < 0 || e.LastSyncedAt.Before(entries[best].LastSyncedAt) {
			best = i
		}
	}
	return best
}
