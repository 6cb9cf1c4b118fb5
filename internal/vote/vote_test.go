package vote

import (
	"context"
	"testing"
)

func TestRecordVoteRejectsUnknownAction(t *testing.T) {
	a := New(nil)

	// Rejected before any store call, so a nil client is safe here.
	for _, action := range []string{"", "jump", "A", "up ", "move:0"} {
		if _, err := a.RecordVote(context.Background(), "g", 0, "a1", action); err == nil {
			t.Errorf("expected error for action %q", action)
		}
	}
}

func TestAllowedActions(t *testing.T) {
	want := []string{"up", "down", "left", "right", "a", "b", "start", "select"}
	if len(AllowedActions) != len(want) {
		t.Fatalf("expected %d actions, got %d", len(want), len(AllowedActions))
	}
	for i, action := range want {
		if AllowedActions[i] != action {
			t.Errorf("AllowedActions[%d] = %q, want %q", i, AllowedActions[i], action)
		}
		if !isAllowed(action) {
			t.Errorf("isAllowed(%q) = false", action)
		}
	}
}
