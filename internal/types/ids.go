// internal/types/ids.go
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type SessionID string
type ActivityID string
type RunID string

// ErrInvalidSessionID is returned for session ids that cannot name a cache entry.
var ErrInvalidSessionID = errors.New("invalid session id")

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// ParseSessionID accepts either a bare id or the resource name form
// "sessions/<id>" and returns the bare id.
func ParseSessionID(s string) (SessionID, error) {
	id := strings.TrimSpace(s)
	id = strings.TrimPrefix(id, "sessions/")
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, "/\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, s)
	}
	return SessionID(id), nil
}

// ResourceName returns the API resource name for the session.
func (id SessionID) ResourceName() string {
	return "sessions/" + string(id)
}
