// internal/types/models.go
package types

import (
	"encoding/json"
)

// ActivityPage is one page of raw activity payloads. NextPageToken is empty
// when the remote has no further pages.
type ActivityPage struct {
	Activities    []json.RawMessage `json:"activities"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

// SessionState is the remote lifecycle state of a session.
type SessionState string

const (
	StateUnspecified          SessionState = "STATE_UNSPECIFIED"
	StateQueued               SessionState = "QUEUED"
	StatePlanning             SessionState = "PLANNING"
	StateAwaitingPlanApproval SessionState = "AWAITING_PLAN_APPROVAL"
	StateAwaitingUserFeedback SessionState = "AWAITING_USER_FEEDBACK"
	StateInProgress           SessionState = "IN_PROGRESS"
	StatePaused               SessionState = "PAUSED"
	StateFailed               SessionState = "FAILED"
	StateCompleted            SessionState = "COMPLETED"
)

// DisplayName returns a human readable label, or the raw value for states
// this client does not know.
func (s SessionState) DisplayName() string {
	switch s {
	case StateUnspecified, "":
		return "Unspecified"
	case StateQueued:
		return "Queued"
	case StatePlanning:
		return "Planning"
	case StateAwaitingPlanApproval:
		return "Awaiting Plan Approval"
	case StateAwaitingUserFeedback:
		return "Awaiting Feedback"
	case StateInProgress:
		return "In Progress"
	case StatePaused:
		return "Paused"
	case StateFailed:
		return "Failed"
	case StateCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// Terminal reports whether no further activities are expected.
func (s SessionState) Terminal() bool {
	return s == StateFailed || s == StateCompleted
}

// Settled reports whether the session has stopped making progress on its
// own: it is terminal or waiting paused.
func (s SessionState) Settled() bool {
	return s.Terminal() || s == StatePaused
}

type Session struct {
	Name          string          `json:"name"`
	ID            SessionID       `json:"id"`
	Prompt        string          `json:"prompt,omitempty"`
	Title         string          `json:"title,omitempty"`
	SourceContext *SourceContext  `json:"sourceContext,omitempty"`
	CreateTime    string          `json:"createTime,omitempty"`
	UpdateTime    string          `json:"updateTime,omitempty"`
	State         SessionState    `json:"state,omitempty"`
	URL           string          `json:"url,omitempty"`
	Outputs       []SessionOutput `json:"outputs,omitempty"`
}

type SourceContext struct {
	Source            string             `json:"source"`
	GitHubRepoContext *GitHubRepoContext `json:"githubRepoContext,omitempty"`
}

type GitHubRepoContext struct {
	StartingBranch string `json:"startingBranch"`
}

type SessionOutput struct {
	PullRequest *PullRequest `json:"pullRequest,omitempty"`
}

type PullRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type SessionPage struct {
	Sessions      []*Session `json:"sessions"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
}
