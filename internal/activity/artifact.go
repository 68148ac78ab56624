package activity

import "encoding/json"

// ArtifactType names one of the sub-payloads an artifact can carry.
type ArtifactType string

const (
	ArtifactChangeSet  ArtifactType = "changeSet"
	ArtifactMedia      ArtifactType = "media"
	ArtifactBashOutput ArtifactType = "bashOutput"
)

// Artifact is one entry of an activity's artifacts list. The wire format
// allows several sub-payloads on one entry, so each is optional. Extra holds
// sub-payloads this client does not know.
type Artifact struct {
	ChangeSet  *ChangeSet
	Media      *Media
	BashOutput *BashOutput
	Extra      map[string]json.RawMessage
}

type ChangeSet struct {
	Source   Text
	GitPatch *GitPatch
}

type GitPatch struct {
	UnidiffPatch           Text
	BaseCommitID           Text
	SuggestedCommitMessage Text
}

type Media struct {
	Data     Text
	MimeType Text
}

type BashOutput struct {
	Command  Text
	Output   Text
	ExitCode *int
}

// Has reports whether the artifact carries a sub-payload of type t.
func (a Artifact) Has(t ArtifactType) bool {
	switch t {
	case ArtifactChangeSet:
		return a.ChangeSet != nil
	case ArtifactMedia:
		return a.Media != nil
	case ArtifactBashOutput:
		return a.BashOutput != nil
	default:
		_, ok := a.Extra[string(t)]
		return ok
	}
}
