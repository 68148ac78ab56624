// internal/state/stats.go
package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/gules/internal/types"
)

// Stats summarises the cache directory.
type Stats struct {
	Dir             string
	SessionCount    int
	MaxSessions     int
	TotalActivities int
	TotalBytes      int64
	Sessions        []SessionStats
}

// SessionStats describes one cached session, most recently written first.
type SessionStats struct {
	SessionID     types.SessionID
	Activities    int
	Bytes         int64
	LastSyncedAt  time.Time
	NextPageToken string
}

const statConcurrency = 8

// Stats reports what is cached. File sizes are read from disk; indexed
// sessions whose file has gone are left out.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	sizes := make([]int64, len(entries))
	present := make([]bool, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(statConcurrency)
	for i, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(s.sessionPath(e.File))
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					s.log.Debug("indexed session has no file", "session_id", e.SessionID)
					return nil
				}
				return fmt.Errorf("stat session cache %s: %w", e.SessionID, err)
			}
			sizes[i] = info.Size()
			present[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	st := Stats{Dir: s.dir, MaxSessions: s.maxSessions}
	for i := len(entries) - 1; i >= 0; i-- {
		if !present[i] {
			continue
		}
		e := entries[i]
		st.SessionCount++
		st.TotalActivities += e.ActivityCount
		st.TotalBytes += sizes[i]
		st.Sessions = append(st.Sessions, SessionStats{
			SessionID:     e.SessionID,
			Activities:    e.ActivityCount,
			Bytes:         sizes[i],
			LastSyncedAt:  e.LastSyncedAt,
			NextPageToken: e.NextPageToken,
		})
	}
	return st, nil
}
