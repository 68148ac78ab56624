package main

import (
	"errors"
	"testing"

	"github.com/user/gules/internal/activity"
	"github.com/user/gules/internal/types"
)

func TestSettled(t *testing.T) {
	progress := activity.Decode([]byte(`{"id":"1","createTime":"2025-03-01T12:00:00Z","progressUpdated":{"title":"t"}}`), "s")
	completed := activity.Decode([]byte(`{"id":"2","createTime":"2025-03-01T12:01:00Z","sessionCompleted":{}}`), "s")
	failed := activity.Decode([]byte(`{"id":"3","createTime":"2025-03-01T12:02:00Z","sessionFailed":{"reason":"boom"}}`), "s")
	unreachable := errors.New("unreachable")

	tests := []struct {
		name   string
		sess   *types.Session
		err    error
		cached []*activity.Activity
		label  string
		done   bool
	}{
		{"completed", &types.Session{State: types.StateCompleted}, nil, nil, "Completed", true},
		{"failed", &types.Session{State: types.StateFailed}, nil, nil, "Failed", true},
		{"paused", &types.Session{State: types.StatePaused}, nil, nil, "Paused", true},
		{"in progress", &types.Session{State: types.StateInProgress}, nil, []*activity.Activity{completed}, "In Progress", false},
		{"remote error, trailing completed", nil, unreachable, []*activity.Activity{progress, completed}, "Completed", true},
		{"remote error, trailing failed", nil, unreachable, []*activity.Activity{progress, failed}, "Failed", true},
		{"remote error, still running", nil, unreachable, []*activity.Activity{completed, progress}, "", false},
		{"remote error, empty cache", nil, unreachable, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, done := settled(tt.sess, tt.err, tt.cached)
			if done != tt.done || label != tt.label {
				t.Errorf("got (%q, %v), want (%q, %v)", label, done, tt.label, tt.done)
			}
		})
	}
}
