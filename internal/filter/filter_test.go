package filter

import (
	"errors"
	"testing"

	"github.com/user/gules/internal/activity"
)

func scenario() []*activity.Activity {
	return []*activity.Activity{
		activity.Decode([]byte(`{"id":"A","createTime":"2025-01-01T00:00:01Z","agentMessaged":{"agentMessage":"hi"}}`), "s"),
		activity.Decode([]byte(`{"id":"B","createTime":"2025-01-01T00:00:02Z","progressUpdated":{"title":"run"},"artifacts":[{"bashOutput":{"command":"ls","output":"x","exitCode":0}}]}`), "s"),
		activity.Decode([]byte(`{"id":"C","createTime":"2025-01-01T00:00:03Z","sessionFailed":{"reason":"boom"}}`), "s"),
	}
}

func ids(acts []*activity.Activity) string {
	s := ""
	for _, a := range acts {
		s += string(a.Key())
	}
	return s
}

func mustNew(t *testing.T, opts ...Option) *Predicate {
	t.Helper()
	p, err := New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestApply_Scenario(t *testing.T) {
	acts := scenario()

	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"agent messages", []Option{Kinds("agent")}, "A"},
		{"bash output", []Option{HasArtifact("bash")}, "B"},
		{"last two", []Option{Last(2)}, "BC"},
		{"no conditions", nil, "ABC"},
		{"last larger than matches", []Option{Last(10)}, "ABC"},
		{"kind set", []Option{Kinds("agent-message", "failed")}, "AC"},
		{"and composition", []Option{Kinds("progress"), HasArtifact("bash-output")}, "B"},
		{"last after kind", []Option{Kinds("agent", "error"), Last(1)}, "C"},
		{"no matches", []Option{Kinds("plan")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(acts, mustNew(t, tt.opts...))
			if ids(got) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, ids(got))
			}
		})
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"last zero", Last(0)},
		{"last negative", Last(-3)},
		{"unknown kind", Kinds("telepathy")},
		{"empty kinds", Kinds()},
		{"unknown artifact", HasArtifact("hologram")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.opt)
			if !errors.Is(err, ErrInvalidPredicate) {
				t.Errorf("expected ErrInvalidPredicate, got %v", err)
			}
			if p != nil {
				t.Error("expected no predicate on error")
			}
		})
	}
}

func TestParseKind_Aliases(t *testing.T) {
	tests := map[string]activity.KindTag{
		"agent":            activity.TagAgentMessaged,
		"Agent-Messaged":   activity.TagAgentMessaged,
		"agentMessaged":    activity.TagAgentMessaged,
		"user_message":     activity.TagUserMessaged,
		"plan":             activity.TagPlanGenerated,
		"approved":         activity.TagPlanApproved,
		"progress-updated": activity.TagProgressUpdated,
		"completed":        activity.TagSessionCompleted,
		"error":            activity.TagSessionFailed,
		"unknown":          activity.TagUnknown,
	}
	for name, want := range tests {
		got, err := ParseKind(name)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestApply_UnknownKind(t *testing.T) {
	acts := append(scenario(), activity.Decode([]byte(`{"id":"D","codeReviewed":{}}`), "s"))
	got := Apply(acts, mustNew(t, Kinds("unknown")))
	if ids(got) != "D" {
		t.Errorf("expected D, got %q", ids(got))
	}
}

func TestApply_Purity(t *testing.T) {
	acts := scenario()
	before := ids(acts)
	p := mustNew(t, Kinds("agent", "failed"), Last(1))

	first := Apply(acts, p)
	second := Apply(acts, p)
	if ids(first) != ids(second) {
		t.Errorf("repeated apply differs: %q vs %q", ids(first), ids(second))
	}
	if ids(acts) != before {
		t.Errorf("input was modified: %q", ids(acts))
	}
	first[0] = nil
	if acts[2] == nil {
		t.Error("result aliases the input slice")
	}
}

func TestApply_NilPredicate(t *testing.T) {
	if got := Apply(scenario(), nil); ids(got) != "ABC" {
		t.Errorf("nil predicate should match all, got %q", ids(got))
	}
}

func TestPredicate_String(t *testing.T) {
	p := mustNew(t, Kinds("failed", "agent"), HasArtifact("bash"), Last(3))
	want := "kind in {agentMessaged,sessionFailed} and has bashOutput and last 3"
	if p.String() != want {
		t.Errorf("expected %q, got %q", want, p.String())
	}
}
