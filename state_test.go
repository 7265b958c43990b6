package dispatcher

import "testing"

func TestDispatchStateTransitions(t *testing.T) {
	var s dispatchState

	if got := s.Load(); got != StateIdle {
		t.Fatalf("initial state = %v, want Idle", got)
	}

	if !s.TryTransition(StateIdle, StateDispatching) {
		t.Fatal("Idle -> Dispatching failed")
	}
	if s.TryTransition(StateIdle, StateDispatching) {
		t.Fatal("second Idle -> Dispatching succeeded, want CAS failure")
	}
	if !s.TryTransition(StateDispatching, StateWaiting) {
		t.Fatal("Dispatching -> Waiting failed")
	}
	if !s.TryTransition(StateWaiting, StateDispatching) {
		t.Fatal("Waiting -> Dispatching failed")
	}

	s.Store(StateStopped)
	if got := s.Load(); got != StateStopped {
		t.Fatalf("state = %v, want Stopped", got)
	}
	if s.TryTransition(StateIdle, StateDispatching) {
		t.Fatal("transition out of Stopped via Idle CAS succeeded")
	}
}

func TestStateString(t *testing.T) {
	for _, tc := range []struct {
		state State
		want  string
	}{
		{StateIdle, "Idle"},
		{StateDispatching, "Dispatching"},
		{StateWaiting, "Waiting"},
		{StateStopped, "Stopped"},
		{State(99), "Unknown"},
	} {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
