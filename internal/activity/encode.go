// internal/activity/encode.go
package activity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Encode converts an Activity back into its wire payload. Absent fields are
// omitted and an Unknown kind is written back as its stored payload.
func Encode(a *Activity) (json.RawMessage, error) {
	if u, ok := a.Kind.(Unknown); ok && len(u.Raw) > 0 {
		return u.Raw, nil
	}

	var o object
	o.text("name", a.Name)
	o.text("id", a.ID)
	o.text("description", a.Description)
	o.text("createTime", a.CreateTime)
	o.text("originator", a.Originator)
	if a.Artifacts != nil {
		items := make([]json.RawMessage, 0, len(a.Artifacts))
		for _, art := range a.Artifacts {
			items = append(items, encodeArtifact(art))
		}
		o.value("artifacts", items)
	}
	if a.Kind != nil {
		if _, unknown := a.Kind.(Unknown); !unknown {
			o.raw(string(a.Kind.Tag()), encodeKind(a.Kind))
		}
	}
	o.extras(a.Extra)
	out, err := o.bytes()
	if err != nil {
		return nil, fmt.Errorf("encode activity %s: %w", a.ID.String(), err)
	}
	return out, nil
}

// Payload returns the bytes the activity was decoded from, or its encoding
// when it was built in memory.
func (a *Activity) Payload() (json.RawMessage, error) {
	if a.raw != nil {
		return a.raw, nil
	}
	return Encode(a)
}

func encodeKind(k Kind) json.RawMessage {
	var o object
	switch k := k.(type) {
	case AgentMessage:
		o.text("agentMessage", k.Message)
	case UserMessage:
		o.text("userMessage", k.Message)
	case PlanGenerated:
		if k.Plan != nil {
			o.raw("plan", encodePlan(k.Plan))
		}
	case PlanApproved:
		o.text("planId", k.PlanID)
	case ProgressUpdate:
		o.text("title", k.Title)
		o.text("description", k.Description)
	case SessionFailed:
		o.text("reason", k.Reason)
	}
	out, _ := o.bytes()
	return out
}

func encodePlan(p *Plan) json.RawMessage {
	var o object
	o.text("id", p.ID)
	if p.Steps != nil {
		steps := make([]json.RawMessage, 0, len(p.Steps))
		for _, s := range p.Steps {
			var so object
			so.text("id", s.ID)
			so.text("title", s.Title)
			so.text("description", s.Description)
			if s.Index != nil {
				so.value("index", *s.Index)
			}
			b, _ := so.bytes()
			steps = append(steps, b)
		}
		o.value("steps", steps)
	}
	o.text("createTime", p.CreateTime)
	out, _ := o.bytes()
	return out
}

func encodeArtifact(art Artifact) json.RawMessage {
	var o object
	if cs := art.ChangeSet; cs != nil {
		var co object
		co.text("source", cs.Source)
		if gp := cs.GitPatch; gp != nil {
			var g object
			g.text("unidiffPatch", gp.UnidiffPatch)
			g.text("baseCommitId", gp.BaseCommitID)
			g.text("suggestedCommitMessage", gp.SuggestedCommitMessage)
			b, _ := g.bytes()
			co.raw("gitPatch", b)
		}
		b, _ := co.bytes()
		o.raw(string(ArtifactChangeSet), b)
	}
	if m := art.Media; m != nil {
		var mo object
		mo.text("data", m.Data)
		mo.text("mimeType", m.MimeType)
		b, _ := mo.bytes()
		o.raw(string(ArtifactMedia), b)
	}
	if bo := art.BashOutput; bo != nil {
		var b object
		b.text("command", bo.Command)
		b.text("output", bo.Output)
		if bo.ExitCode != nil {
			b.value("exitCode", *bo.ExitCode)
		}
		out, _ := b.bytes()
		o.raw(string(ArtifactBashOutput), out)
	}
	o.extras(art.Extra)
	out, _ := o.bytes()
	return out
}

// object writes a JSON object with keys in insertion order.
type object struct {
	buf bytes.Buffer
	n   int
	err error
}

func (o *object) raw(key string, val json.RawMessage) {
	if o.err != nil {
		return
	}
	k, err := json.Marshal(key)
	if err != nil {
		o.err = err
		return
	}
	if o.n == 0 {
		o.buf.WriteByte('{')
	} else {
		o.buf.WriteByte(',')
	}
	o.buf.Write(k)
	o.buf.WriteByte(':')
	o.buf.Write(val)
	o.n++
}

func (o *object) value(key string, v any) {
	if o.err != nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		o.err = fmt.Errorf("field %s: %w", key, err)
		return
	}
	o.raw(key, b)
}

func (o *object) text(key string, t Text) {
	if t.Valid {
		o.value(key, t.Value)
	}
}

// extras writes unmodelled fields in key order.
func (o *object) extras(m map[string]json.RawMessage) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !json.Valid(m[k]) {
			o.err = fmt.Errorf("field %s: invalid JSON", k)
			return
		}
		o.raw(k, m[k])
	}
}

func (o *object) bytes() (json.RawMessage, error) {
	if o.err != nil {
		return nil, o.err
	}
	if o.n == 0 {
		return json.RawMessage("{}"), nil
	}
	o.buf.WriteByte('}')
	return o.buf.Bytes(), nil
}
