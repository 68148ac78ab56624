// Package filter selects activities from a cached session without touching
// the cache or the network.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/user/gules/internal/activity"
)

// ErrInvalidPredicate is returned for predicates that cannot be built, such
// as an unknown kind alias or a non-positive last count.
var ErrInvalidPredicate = errors.New("invalid predicate")

var kindAliases = map[string]activity.KindTag{
	"agent":             activity.TagAgentMessaged,
	"agent-message":     activity.TagAgentMessaged,
	"agent-messaged":    activity.TagAgentMessaged,
	"user":              activity.TagUserMessaged,
	"user-message":      activity.TagUserMessaged,
	"user-messaged":     activity.TagUserMessaged,
	"plan":              activity.TagPlanGenerated,
	"plan-generated":    activity.TagPlanGenerated,
	"approved":          activity.TagPlanApproved,
	"plan-approved":     activity.TagPlanApproved,
	"progress":          activity.TagProgressUpdated,
	"progress-updated":  activity.TagProgressUpdated,
	"completed":         activity.TagSessionCompleted,
	"session-completed": activity.TagSessionCompleted,
	"failed":            activity.TagSessionFailed,
	"session-failed":    activity.TagSessionFailed,
	"error":             activity.TagSessionFailed,
	"unknown":           activity.TagUnknown,
}

var artifactAliases = map[string]activity.ArtifactType{
	"bash":        activity.ArtifactBashOutput,
	"bash-output": activity.ArtifactBashOutput,
	"bashoutput":  activity.ArtifactBashOutput,
	"changeset":   activity.ArtifactChangeSet,
	"change-set":  activity.ArtifactChangeSet,
	"media":       activity.ArtifactMedia,
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// ParseKind resolves a kind alias or wire tag, case-insensitively.
func ParseKind(name string) (activity.KindTag, error) {
	n := normalize(name)
	if tag, ok := kindAliases[n]; ok {
		return tag, nil
	}
	for _, tag := range activity.KnownTags {
		if strings.ToLower(string(tag)) == n {
			return tag, nil
		}
	}
	return "", fmt.Errorf("%w: unknown activity type %q (valid: %s)", ErrInvalidPredicate, name, strings.Join(KindAliases(), ", "))
}

// ParseArtifactType resolves an artifact type alias, case-insensitively.
func ParseArtifactType(name string) (activity.ArtifactType, error) {
	if t, ok := artifactAliases[normalize(name)]; ok {
		return t, nil
	}
	valid := make([]string, 0, len(artifactAliases))
	for alias := range artifactAliases {
		valid = append(valid, alias)
	}
	sort.Strings(valid)
	return "", fmt.Errorf("%w: unknown artifact type %q (valid: %s)", ErrInvalidPredicate, name, strings.Join(valid, ", "))
}

// KindAliases returns every accepted kind alias, sorted.
func KindAliases() []string {
	out := make([]string, 0, len(kindAliases))
	for alias := range kindAliases {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Predicate is an AND of the configured conditions. The zero value and a nil
// *Predicate match everything.
type Predicate struct {
	kinds     map[activity.KindTag]bool
	artifacts []activity.ArtifactType
	last      int
}

// Option adds a condition to a Predicate.
type Option func(*Predicate) error

// Kinds keeps activities whose kind is one of names. Repeated use widens the
// set.
func Kinds(names ...string) Option {
	return func(p *Predicate) error {
		if len(names) == 0 {
			return fmt.Errorf("%w: empty activity type set", ErrInvalidPredicate)
		}
		if p.kinds == nil {
			p.kinds = make(map[activity.KindTag]bool)
		}
		for _, name := range names {
			tag, err := ParseKind(name)
			if err != nil {
				return err
			}
			p.kinds[tag] = true
		}
		return nil
	}
}

// HasArtifact keeps activities carrying an artifact of the named type.
// Repeated use requires every type.
func HasArtifact(name string) Option {
	return func(p *Predicate) error {
		t, err := ParseArtifactType(name)
		if err != nil {
			return err
		}
		if !slices.Contains(p.artifacts, t) {
			p.artifacts = append(p.artifacts, t)
		}
		return nil
	}
}

// Last keeps only the final n matches. It applies after every other
// condition.
func Last(n int) Option {
	return func(p *Predicate) error {
		if n <= 0 {
			return fmt.Errorf("%w: last must be positive, got %d", ErrInvalidPredicate, n)
		}
		p.last = n
		return nil
	}
}

// New builds a Predicate. Any invalid option fails the whole predicate.
func New(opts ...Option) (*Predicate, error) {
	p := &Predicate{}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Match reports whether a satisfies the kind and artifact conditions.
func (p *Predicate) Match(a *activity.Activity) bool {
	if p == nil {
		return true
	}
	if p.kinds != nil {
		tag := activity.TagUnknown
		if a.Kind != nil {
			tag = a.Kind.Tag()
		}
		if !p.kinds[tag] {
			return false
		}
	}
	for _, t := range p.artifacts {
		if !a.HasArtifact(t) {
			return false
		}
	}
	return true
}

// Apply returns the matching activities in their input order. The input
// slice is not modified.
func Apply(acts []*activity.Activity, p *Predicate) []*activity.Activity {
	out := make([]*activity.Activity, 0, len(acts))
	for _, a := range acts {
		if p.Match(a) {
			out = append(out, a)
		}
	}
	if p != nil && p.last > 0 && len(out) > p.last {
		out = out[len(out)-p.last:]
	}
	return out
}

// String describes the predicate for logs.
func (p *Predicate) String() string {
	if p == nil {
		return "all"
	}
	var parts []string
	if p.kinds != nil {
		tags := make([]string, 0, len(p.kinds))
		for tag := range p.kinds {
			tags = append(tags, string(tag))
		}
		sort.Strings(tags)
		parts = append(parts, "kind in {"+strings.Join(tags, ",")+"}")
	}
	for _, t := range p.artifacts {
		parts = append(parts, "has "+string(t))
	}
	if p.last > 0 {
		parts = append(parts, fmt.Sprintf("last %d", p.last))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " and ")
}
