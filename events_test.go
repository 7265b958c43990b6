package dispatcher

import "testing"

func TestIOEventsString(t *testing.T) {
	for _, tc := range []struct {
		events IOEvents
		want   string
	}{
		{0, "none"},
		{EventRead, "read"},
		{EventWrite, "write"},
		{EventRead | EventWrite, "read|write"},
		{EventException | EventHangup, "exception|hangup"},
		{EventRead | EventWrite | EventException | EventHangup, "read|write|exception|hangup"},
	} {
		if got := tc.events.String(); got != tc.want {
			t.Errorf("IOEvents(%#x).String() = %q, want %q", uint32(tc.events), got, tc.want)
		}
	}
}

func TestInterestMaskExcludesHangup(t *testing.T) {
	if interestMask&EventHangup != 0 {
		t.Fatal("hangup must not be a registrable interest")
	}
	if interestMask != EventRead|EventWrite|EventException {
		t.Fatalf("interestMask = %v", interestMask)
	}
}
