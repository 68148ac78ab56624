// internal/state/cache.go
package state

import (
	"slices"
	"time"

	"github.com/user/gules/internal/activity"
	"github.com/user/gules/internal/types"
)

// SessionCache is the locally held copy of one session's activity log.
// Activities are unique by key and ordered by creation time, with ties in
// arrival order.
type SessionCache struct {
	SessionID     types.SessionID
	Activities    []*activity.Activity
	NextPageToken string
	LastSyncedAt  time.Time
	CreatedAt     time.Time
	Divergences   []Divergence
}

// Divergence records a re-fetched activity whose payload differed from the
// stored one. The stored payload is kept.
type Divergence struct {
	ActivityID    types.ActivityID `json:"activity_id"`
	StoredDigest  string           `json:"stored_digest"`
	FetchedDigest string           `json:"fetched_digest"`
	ObservedAt    time.Time        `json:"observed_at"`
}

// NewSessionCache returns an empty cache for id with no cursor.
func NewSessionCache(id types.SessionID) *SessionCache {
	return &SessionCache{SessionID: id}
}

// Empty reports whether the cache has never been synced.
func (c *SessionCache) Empty() bool {
	return len(c.Activities) == 0 && c.LastSyncedAt.IsZero()
}

// Clone returns a copy whose slices can be modified without affecting c.
// Activities are shared; they are not mutated after decoding.
func (c *SessionCache) Clone() *SessionCache {
	out := *c
	out.Activities = slices.Clone(c.Activities)
	out.Divergences = slices.Clone(c.Divergences)
	return &out
}
