// Package activity models a single entry of a session's activity log and
// converts it to and from the remote wire payload.
//
// Decoding never fails. Fields the payload omits stay absent, variants the
// client does not recognise become Unknown and keep their payload, and
// wrongly typed fields are recorded in Drift.
package activity

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/user/gules/internal/types"
)

// Role is the normalised originator of an activity.
type Role string

const (
	RoleUser    Role = "user"
	RoleAgent   Role = "agent"
	RoleSystem  Role = "system"
	RoleUnknown Role = "unknown"
)

// Activity is one record of a session's activity log.
type Activity struct {
	SessionID   types.SessionID
	Name        Text
	ID          Text
	Description Text
	// CreateTime is the wire value; CreatedAt is its parsed form and is zero
	// when the value is absent or unparseable.
	CreateTime Text
	CreatedAt  time.Time
	Originator Text
	Kind       Kind
	// Artifacts is nil when the payload carried no artifacts list.
	Artifacts []Artifact
	// Extra holds top-level fields of a known variant this client does not
	// model. They are written back on Encode.
	Extra map[string]json.RawMessage
	// Drift lists paths of fields that were present with an unexpected shape.
	Drift []string

	raw json.RawMessage
}

// Key returns the identity used for deduplication: the id, else the last
// segment of the resource name, else a digest of the payload.
func (a *Activity) Key() types.ActivityID {
	if a.ID.Valid && a.ID.Value != "" {
		return types.ActivityID(a.ID.Value)
	}
	if a.Name.Valid {
		if i := strings.LastIndex(a.Name.Value, "/activities/"); i >= 0 {
			if id := a.Name.Value[i+len("/activities/"):]; id != "" {
				return types.ActivityID(id)
			}
		}
	}
	return types.ActivityID("digest-" + a.Digest().String()[:32])
}

// Role normalises the originator. Unrecognised values map to RoleUnknown;
// the raw value stays in Originator.
func (a *Activity) Role() Role {
	switch strings.ToLower(a.Originator.Value) {
	case "user":
		return RoleUser
	case "agent":
		return RoleAgent
	case "system":
		return RoleSystem
	default:
		return RoleUnknown
	}
}

// Title returns a human readable name for the activity type.
func (a *Activity) Title() string {
	switch k := a.Kind.(type) {
	case nil:
		return "[ERROR: No Activity Type]"
	case Unknown:
		if k.Field == "" {
			return "[ERROR: No Activity Type]"
		}
		return camelToTitle(k.Field) + " [UNKNOWN]"
	default:
		return k.Tag().Title()
	}
}

// Content returns a one line text summary for kinds that have one.
func (a *Activity) Content() (string, bool) {
	switch k := a.Kind.(type) {
	case AgentMessage:
		return k.Message.Value, k.Message.Valid
	case UserMessage:
		return k.Message.Value, k.Message.Valid
	case ProgressUpdate:
		if b := a.bashOutput(); b != nil && b.Command.Valid {
			return "Ran: " + strings.Join(strings.Fields(b.Command.Value), " "), true
		}
		if !k.Title.Valid && !k.Description.Valid {
			return "", false
		}
		if !k.Description.Valid {
			return k.Title.Value, true
		}
		return k.Title.Or("Progress") + ": " + k.Description.Value, true
	case SessionFailed:
		return "Session failed: " + k.Reason.String(), true
	}
	return "", false
}

// HasArtifact reports whether any artifact carries a sub-payload of type t.
func (a *Activity) HasArtifact(t ArtifactType) bool {
	for _, art := range a.Artifacts {
		if art.Has(t) {
			return true
		}
	}
	return false
}

func (a *Activity) bashOutput() *BashOutput {
	for _, art := range a.Artifacts {
		if art.BashOutput != nil {
			return art.BashOutput
		}
	}
	return nil
}

// Equal reports whether a and b carry the same content. The retained payload
// bytes and drift notes are not compared.
func (a *Activity) Equal(b *Activity) bool {
	if a == nil || b == nil {
		return a == b
	}
	x, y := *a, *b
	x.raw, y.raw = nil, nil
	x.Drift, y.Drift = nil, nil
	return reflect.DeepEqual(x, y)
}
