package batch

import "testing"

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StatePending, StateExtracting, true},
		{StatePending, StateSkipped, true},
		{StatePending, StateFailed, true},
		{StatePending, StateCancelled, true},
		{StateExtracting, StateTranscribing, true},
		{StateTranscribing, StateWriting, true},
		{StateWriting, StateCompleted, true},
		{StateTranscribing, StateCancelled, true},

		// No skipping ahead or moving backwards.
		{StatePending, StateTranscribing, false},
		{StatePending, StateCompleted, false},
		{StateExtracting, StatePending, false},
		{StateWriting, StateTranscribing, false},

		// Terminal states are final.
		{StateCompleted, StateFailed, false},
		{StateFailed, StateExtracting, false},
		{StateCancelled, StateCancelled, false},
		{StateSkipped, StateCompleted, false},
	}

	for _, tt := range tests {
		if got := validTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("validTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestTerminal(t *testing.T) {
	terminal := []State{StateCompleted, StateSkipped, StateFailed, StateCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false", s)
		}
	}
	for _, s := range []State{StatePending, StateExtracting, StateTranscribing, StateWriting} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true", s)
		}
	}
}
