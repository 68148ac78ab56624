package activity

import (
	"encoding/json"
	"strings"
	"unicode"
)

// KindTag names an activity variant. Known tags are the wire field names the
// remote API uses for the variant body.
type KindTag string

const (
	TagAgentMessaged    KindTag = "agentMessaged"
	TagUserMessaged     KindTag = "userMessaged"
	TagPlanGenerated    KindTag = "planGenerated"
	TagPlanApproved     KindTag = "planApproved"
	TagProgressUpdated  KindTag = "progressUpdated"
	TagSessionCompleted KindTag = "sessionCompleted"
	TagSessionFailed    KindTag = "sessionFailed"
	TagUnknown          KindTag = "unknown"
)

// KnownTags lists the wire tags this client decodes into typed variants.
var KnownTags = []KindTag{
	TagAgentMessaged,
	TagUserMessaged,
	TagPlanGenerated,
	TagPlanApproved,
	TagProgressUpdated,
	TagSessionCompleted,
	TagSessionFailed,
}

func isKnownTag(tag KindTag) bool {
	for _, known := range KnownTags {
		if tag == known {
			return true
		}
	}
	return false
}

// Title returns the human readable name of the tag, e.g. "Agent Messaged".
func (t KindTag) Title() string {
	return camelToTitle(string(t))
}

// Kind is the closed set of activity variants. Every decoded activity has
// exactly one Kind; payloads this client cannot classify are Unknown.
type Kind interface {
	Tag() KindTag
	isKind()
}

type AgentMessage struct {
	Message Text
}

type UserMessage struct {
	Message Text
}

type PlanGenerated struct {
	Plan *Plan
}

type Plan struct {
	ID         Text
	Steps      []PlanStep
	CreateTime Text
}

type PlanStep struct {
	ID          Text
	Title       Text
	Description Text
	Index       *int
}

type PlanApproved struct {
	PlanID Text
}

type ProgressUpdate struct {
	Title       Text
	Description Text
}

type SessionCompleted struct{}

type SessionFailed struct {
	Reason Text
}

// Unknown carries a payload whose variant this client does not know. Field
// is the unrecognised wire key ("" when the payload named no variant) and Raw
// is the complete activity payload in compact form: the received bytes with
// insignificant whitespace removed and nothing else changed. Input that is not
// valid JSON is kept exactly as received.
type Unknown struct {
	Field string
	Raw   json.RawMessage
}

func (AgentMessage) Tag() KindTag     { return TagAgentMessaged }
func (UserMessage) Tag() KindTag      { return TagUserMessaged }
func (PlanGenerated) Tag() KindTag    { return TagPlanGenerated }
func (PlanApproved) Tag() KindTag     { return TagPlanApproved }
func (ProgressUpdate) Tag() KindTag   { return TagProgressUpdated }
func (SessionCompleted) Tag() KindTag { return TagSessionCompleted }
func (SessionFailed) Tag() KindTag    { return TagSessionFailed }
func (Unknown) Tag() KindTag          { return TagUnknown }

func (AgentMessage) isKind()     {}
func (UserMessage) isKind()      {}
func (PlanGenerated) isKind()    {}
func (PlanApproved) isKind()     {}
func (ProgressUpdate) isKind()   {}
func (SessionCompleted) isKind() {}
func (SessionFailed) isKind()    {}
func (Unknown) isKind()          {}

// camelToTitle converts "agentMessaged" to "Agent Messaged".
func camelToTitle(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
