package orchestrator

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateConnected, true},
		{StateConnected, StateBackedUp, true},
		{StateBackedUp, StateStaged, true},
		{StateStaged, StateDiffed, true},
		{StateDiffed, StateCommitted, true},
		{StateDiffed, StateDiscarded, true},
		{StateCommitted, StateClosed, true},
		{StateDiscarded, StateClosed, true},
		{StateStaged, StateAborted, true},
		{StateIdle, StateStaged, false},
		{StateBackedUp, StateDiffed, false},
		{StateStaged, StateCommitted, false},
		{StateDiscarded, StateCommitted, false},
		{StateCommitted, StateDiscarded, false},
		{StateClosed, StateConnected, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStepError(t *testing.T) {
	inner := errors.New("refused")
	err := stepError(KindConnect, "S1", "connect", inner)

	if err.Error() != "S1 connect: refused" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("StepError should unwrap to its cause")
	}
	wrapped := errors.Join(errors.New("outer"), err)
	if KindOf(wrapped) != KindConnect {
		t.Errorf("KindOf(wrapped) = %q", KindOf(wrapped))
	}
	if KindOf(inner) != "" {
		t.Error("KindOf(plain error) should be empty")
	}
}
