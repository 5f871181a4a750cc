package voice

import "testing"

func TestStateGraph(t *testing.T) {
	all := []State{StateIdle, StateConnecting, StateActive, StateClosing, StateClosed, StateError}
	legal := map[[2]State]bool{
		{StateIdle, StateConnecting}:    true,
		{StateClosed, StateConnecting}:  true,
		{StateError, StateConnecting}:   true,
		{StateConnecting, StateActive}:  true,
		{StateConnecting, StateClosing}: true,
		{StateConnecting, StateError}:   true,
		{StateActive, StateClosing}:     true,
		{StateActive, StateError}:       true,
		{StateClosing, StateClosed}:     true,
	}
	for _, from := range all {
		for _, to := range all {
			want := legal[[2]State{from, to}]
			if got := canTransition(from, to); got != want {
				t.Errorf("canTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStateBusy(t *testing.T) {
	tests := []struct {
		s    State
		busy bool
	}{
		{StateIdle, false},
		{StateConnecting, true},
		{StateActive, true},
		{StateClosing, true},
		{StateClosed, false},
		{StateError, false},
	}
	for _, tt := range tests {
		t.Run(tt.s.String(), func(t *testing.T) {
			if tt.s.Busy() != tt.busy {
				t.Errorf("Busy() = %v, want %v", tt.s.Busy(), tt.busy)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if StateActive.String() != "active" {
		t.Errorf("got %q", StateActive.String())
	}
	if State(42).String() != "unknown" {
		t.Errorf("got %q", State(42).String())
	}
	b, _ := StateClosing.MarshalText()
	if string(b) != "closing" {
		t.Errorf("MarshalText = %q", b)
	}
}
