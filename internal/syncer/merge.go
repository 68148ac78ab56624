// internal/syncer/merge.go
package syncer

import (
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/user/gules/internal/activity"
	"github.com/user/gules/internal/state"
	"github.com/user/gules/internal/types"
)

// merger folds fetched pages into an ordered, deduplicated activity set.
// The first payload seen for a key is kept.
type merger struct {
	sessionID   types.SessionID
	activities  []*activity.Activity
	byKey       map[types.ActivityID]*activity.Activity
	divergences []state.Divergence
	seen        map[divergenceKey]bool
	added       int
	divergent   int
	now         func() time.Time
	log         *slog.Logger
}

type divergenceKey struct {
	id      types.ActivityID
	fetched string
}

func newMerger(c *state.SessionCache, now func() time.Time, log *slog.Logger) *merger {
	m := &merger{
		sessionID:   c.SessionID,
		activities:  slices.Clone(c.Activities),
		byKey:       make(map[types.ActivityID]*activity.Activity, len(c.Activities)),
		divergences: slices.Clone(c.Divergences),
		seen:        make(map[divergenceKey]bool, len(c.Divergences)),
		now:         now,
		log:         log,
	}
	for _, a := range c.Activities {
		if _, dup := m.byKey[a.Key()]; !dup {
			m.byKey[a.Key()] = a
		}
	}
	for _, d := range c.Divergences {
		m.seen[divergenceKey{d.ActivityID, d.FetchedDigest}] = true
	}
	return m
}

// merge appends the page's new activities in arrival order.
func (m *merger) merge(page []json.RawMessage) int {
	added := 0
	for _, raw := range page {
		a := activity.Decode(raw, m.sessionID)
		if len(a.Drift) > 0 {
			m.log.Debug("activity shape drift", "activity_id", a.Key(), "fields", a.Drift)
		}
		key := a.Key()
		stored, ok := m.byKey[key]
		if !ok {
			m.byKey[key] = a
			m.activities = append(m.activities, a)
			added++
			continue
		}
		m.checkDivergence(key, stored, a)
	}
	m.added += added
	return added
}

func (m *merger) checkDivergence(key types.ActivityID, stored, fetched *activity.Activity) {
	sd, fd := stored.Digest().String(), fetched.Digest().String()
	if sd == fd {
		return
	}
	dk := divergenceKey{key, fd}
	if m.seen[dk] {
		return
	}
	m.seen[dk] = true
	m.divergences = append(m.divergences, state.Divergence{
		ActivityID:    key,
		StoredDigest:  sd,
		FetchedDigest: fd,
		ObservedAt:    m.now(),
	})
	m.divergent++
	m.log.Warn("re-fetched activity differs from stored copy, keeping stored",
		"activity_id", key, "stored_digest", sd[:12], "fetched_digest", fd[:12])
}

// sorted returns the activities ordered by creation time. The sort is stable
// so equal timestamps keep arrival order; activities without a usable
// timestamp sort after all others.
func (m *merger) sorted() []*activity.Activity {
	slices.SortStableFunc(m.activities, compareCreated)
	return m.activities
}

func compareCreated(a, b *activity.Activity) int {
	az, bz := a.CreatedAt.IsZero(), b.CreatedAt.IsZero()
	switch {
	case az && bz:
		return 0
	case az:
		return 1
	case bz:
		return -1
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}
