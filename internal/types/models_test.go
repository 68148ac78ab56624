// internal/types/models_test.go
package types

import (
	"encoding/json"
	"testing"
)

func TestSessionDecodeUnknownState(t *testing.T) {
	data := []byte(`{"name":"sessions/1","id":"1","state":"ARCHIVED","title":"t"}`)

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatal(err)
	}
	if s.State.DisplayName() != "ARCHIVED" {
		t.Errorf("expected raw state preserved, got %s", s.State.DisplayName())
	}
	if s.State.Terminal() {
		t.Error("unknown state should not be terminal")
	}
}

func TestSessionStateTerminal(t *testing.T) {
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Error("expected completed and failed to be terminal")
	}
	if StateInProgress.Terminal() {
		t.Error("in progress should not be terminal")
	}
	if StateAwaitingPlanApproval.DisplayName() != "Awaiting Plan Approval" {
		t.Errorf("unexpected display name %q", StateAwaitingPlanApproval.DisplayName())
	}
}

func TestSessionStateSettled(t *testing.T) {
	for _, st := range []SessionState{StateCompleted, StateFailed, StatePaused} {
		if !st.Settled() {
			t.Errorf("%s should be settled", st)
		}
	}
	for _, st := range []SessionState{StateInProgress, StateAwaitingPlanApproval, StateUnspecified, "ARCHIVED"} {
		if st.Settled() {
			t.Errorf("%s should not be settled", st)
		}
	}
}

func TestActivityPageKeepsRawPayloads(t *testing.T) {
	data := []byte(`{"activities":[{"id":"a","x":1},{"id":"b"}],"nextPageToken":"p2"}`)

	var page ActivityPage
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(page.Activities))
	}
	if string(page.Activities[0]) != `{"id":"a","x":1}` {
		t.Errorf("expected raw payload preserved, got %s", page.Activities[0])
	}
	if page.NextPageToken != "p2" {
		t.Errorf("expected token p2, got %q", page.NextPageToken)
	}
}
