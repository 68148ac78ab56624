// internal/activity/decode.go
package activity

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/user/gules/internal/types"
)

type fields map[string]json.RawMessage

// standardFields are the top-level keys shared by every variant.
var standardFields = map[string]bool{
	"name":        true,
	"id":          true,
	"description": true,
	"createTime":  true,
	"originator":  true,
	"artifacts":   true,
}

// Decode converts a wire payload into an Activity. It never fails: payloads
// that are not JSON objects decode to an Unknown kind holding the input.
//
// Valid JSON is held and persisted compacted with json.Compact, which only
// drops whitespace between tokens. Key order, escapes and number spelling are
// preserved, so the stored payload equals the received one modulo that
// whitespace, and compacting the stored form again is a no-op.
func Decode(raw []byte, sessionID types.SessionID) *Activity {
	a := &Activity{SessionID: sessionID}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		a.raw = append(json.RawMessage(nil), raw...)
		a.Kind = Unknown{Raw: a.raw}
		a.Drift = []string{"$"}
		return a
	}
	a.raw = buf.Bytes()

	d := &decoder{}
	obj, ok := d.object(a.raw, "$")
	if !ok {
		a.Kind = Unknown{Raw: a.raw}
		a.Drift = []string{"$"}
		return a
	}

	a.Name = d.text(obj, "", "name")
	a.ID = d.text(obj, "", "id")
	a.Description = d.text(obj, "", "description")
	a.Originator = d.text(obj, "", "originator")
	a.CreateTime = d.text(obj, "", "createTime")
	if a.CreateTime.Valid {
		if t, err := time.Parse(time.RFC3339Nano, a.CreateTime.Value); err == nil {
			a.CreatedAt = t.UTC()
		} else {
			d.note("createTime")
		}
	}
	if items, ok := d.array(obj, "", "artifacts"); ok {
		a.Artifacts = make([]Artifact, 0, len(items))
		for _, item := range items {
			if art, ok := d.artifact(item, "artifacts"); ok {
				a.Artifacts = append(a.Artifacts, art)
			}
		}
	}
	a.Kind, a.Extra = d.kind(obj, a.raw)
	sort.Strings(d.drift)
	a.Drift = d.drift
	return a
}

// DecodeMap decodes an already parsed payload, such as one nested inside a
// larger document. Values that cannot be marshalled decode as Unknown.
func DecodeMap(m map[string]any, sessionID types.SessionID) *Activity {
	raw, err := json.Marshal(m)
	if err != nil {
		return &Activity{SessionID: sessionID, Kind: Unknown{}, Drift: []string{"$"}}
	}
	return Decode(raw, sessionID)
}

type decoder struct {
	drift []string
}

func (d *decoder) note(path string) {
	d.drift = append(d.drift, path)
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// object decodes raw as a JSON object. Absent and null values report false
// without noting drift.
func (d *decoder) object(raw json.RawMessage, path string) (fields, bool) {
	if isNull(raw) {
		return nil, false
	}
	var obj fields
	if raw[0] != '{' || json.Unmarshal(raw, &obj) != nil {
		d.note(path)
		return nil, false
	}
	return obj, true
}

func (d *decoder) field(obj fields, path, key string) (fields, bool) {
	raw, ok := obj[key]
	if !ok {
		return nil, false
	}
	return d.object(raw, join(path, key))
}

func (d *decoder) text(obj fields, path, key string) Text {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return Text{}
	}
	var s string
	if raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
		d.note(join(path, key))
		return Text{}
	}
	return Some(s)
}

func (d *decoder) integer(obj fields, path, key string) *int {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		d.note(join(path, key))
		return nil
	}
	return &n
}

func (d *decoder) array(obj fields, path, key string) ([]json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	var items []json.RawMessage
	if raw[0] != '[' || json.Unmarshal(raw, &items) != nil {
		d.note(join(path, key))
		return nil, false
	}
	return items, true
}

// kind classifies the payload by its variant key. A payload with exactly one
// known variant key decodes to that variant; sibling keys the client does not
// know are returned as extras. Anything else is Unknown.
func (d *decoder) kind(obj fields, raw json.RawMessage) (Kind, map[string]json.RawMessage) {
	var known []string
	var other []string
	for key, val := range obj {
		if standardFields[key] || isNull(val) {
			continue
		}
		if isKnownTag(KindTag(key)) {
			known = append(known, key)
		} else {
			other = append(other, key)
		}
	}
	sort.Strings(known)
	sort.Strings(other)

	switch {
	case len(known) > 1:
		d.note("$")
		return Unknown{Field: known[0], Raw: raw}, nil
	case len(known) == 0 && len(other) > 0:
		return Unknown{Field: other[0], Raw: raw}, nil
	case len(known) == 0:
		return Unknown{Raw: raw}, nil
	}

	tag := known[0]
	body, ok := d.object(obj[tag], tag)
	if !ok {
		return Unknown{Field: tag, Raw: raw}, nil
	}
	var extra map[string]json.RawMessage
	if len(other) > 0 {
		extra = make(map[string]json.RawMessage, len(other))
		for _, key := range other {
			extra[key] = obj[key]
		}
	}
	return d.variant(KindTag(tag), body), extra
}

func (d *decoder) variant(tag KindTag, body fields) Kind {
	path := string(tag)
	switch tag {
	case TagAgentMessaged:
		return AgentMessage{Message: d.text(body, path, "agentMessage")}
	case TagUserMessaged:
		return UserMessage{Message: d.text(body, path, "userMessage")}
	case TagPlanGenerated:
		return PlanGenerated{Plan: d.plan(body, path)}
	case TagPlanApproved:
		return PlanApproved{PlanID: d.text(body, path, "planId")}
	case TagProgressUpdated:
		return ProgressUpdate{
			Title:       d.text(body, path, "title"),
			Description: d.text(body, path, "description"),
		}
	case TagSessionCompleted:
		return SessionCompleted{}
	case TagSessionFailed:
		return SessionFailed{Reason: d.text(body, path, "reason")}
	}
	return Unknown{Field: string(tag)}
}

func (d *decoder) plan(body fields, path string) *Plan {
	obj, ok := d.field(body, path, "plan")
	if !ok {
		return nil
	}
	path = join(path, "plan")
	p := &Plan{
		ID:         d.text(obj, path, "id"),
		CreateTime: d.text(obj, path, "createTime"),
	}
	if items, ok := d.array(obj, path, "steps"); ok {
		p.Steps = make([]PlanStep, 0, len(items))
		stepPath := join(path, "steps")
		for _, item := range items {
			step, ok := d.object(item, stepPath)
			if !ok {
				continue
			}
			p.Steps = append(p.Steps, PlanStep{
				ID:          d.text(step, stepPath, "id"),
				Title:       d.text(step, stepPath, "title"),
				Description: d.text(step, stepPath, "description"),
				Index:       d.integer(step, stepPath, "index"),
			})
		}
	}
	return p
}

func (d *decoder) artifact(raw json.RawMessage, path string) (Artifact, bool) {
	obj, ok := d.object(raw, path)
	if !ok {
		if isNull(raw) {
			d.note(path)
		}
		return Artifact{}, false
	}
	var art Artifact
	for key, val := range obj {
		switch ArtifactType(key) {
		case ArtifactChangeSet:
			if cs, ok := d.object(val, join(path, key)); ok {
				art.ChangeSet = d.changeSet(cs, join(path, key))
			}
		case ArtifactMedia:
			if m, ok := d.object(val, join(path, key)); ok {
				p := join(path, key)
				art.Media = &Media{Data: d.text(m, p, "data"), MimeType: d.text(m, p, "mimeType")}
			}
		case ArtifactBashOutput:
			if b, ok := d.object(val, join(path, key)); ok {
				p := join(path, key)
				art.BashOutput = &BashOutput{
					Command:  d.text(b, p, "command"),
					Output:   d.text(b, p, "output"),
					ExitCode: d.integer(b, p, "exitCode"),
				}
			}
		default:
			if isNull(val) {
				continue
			}
			if art.Extra == nil {
				art.Extra = make(map[string]json.RawMessage)
			}
			art.Extra[key] = val
		}
	}
	return art, true
}

func (d *decoder) changeSet(obj fields, path string) *ChangeSet {
	cs := &ChangeSet{Source: d.text(obj, path, "source")}
	if gp, ok := d.field(obj, path, "gitPatch"); ok {
		p := join(path, "gitPatch")
		cs.GitPatch = &GitPatch{
			UnidiffPatch:           d.text(gp, p, "unidiffPatch"),
			BaseCommitID:           d.text(gp, p, "baseCommitId"),
			SuggestedCommitMessage: d.text(gp, p, "suggestedCommitMessage"),
		}
	}
	return cs
}
