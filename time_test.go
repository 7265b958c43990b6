package dispatcher

import (
	"testing"
	"time"
)

func TestNewTimeNormalizesCarry(t *testing.T) {
	v := NewTime(1, 2_500_000)
	if v.Sec != 3 || v.Usec != 500_000 {
		t.Fatalf("NewTime(1, 2500000) = %+v, want {3 500000}", v)
	}
}

func TestNewTimeNormalizesBorrow(t *testing.T) {
	v := NewTime(1, -1)
	if v.Sec != 0 || v.Usec != 999_999 {
		t.Fatalf("NewTime(1, -1) = %+v, want {0 999999}", v)
	}

	v = NewTime(0, -2_000_001)
	if v.Sec != -3 || v.Usec != 999_999 {
		t.Fatalf("NewTime(0, -2000001) = %+v, want {-3 999999}", v)
	}
}

func TestTimeAddSub(t *testing.T) {
	a := NewTime(1, 700_000)
	b := NewTime(2, 600_000)

	sum := a.Add(b)
	if sum.Sec != 4 || sum.Usec != 300_000 {
		t.Fatalf("Add = %+v, want {4 300000}", sum)
	}

	diff := b.Sub(a)
	if diff.Sec != 0 || diff.Usec != 900_000 {
		t.Fatalf("Sub = %+v, want {0 900000}", diff)
	}

	// Subtraction that crosses zero borrows from the seconds component.
	neg := a.Sub(b)
	if neg.Sec != -1 || neg.Usec != 100_000 {
		t.Fatalf("Sub = %+v, want {-1 100000}", neg)
	}

	if got := neg.Add(b); got != a {
		t.Fatalf("round trip = %+v, want %+v", got, a)
	}
}

func TestTimeOrdering(t *testing.T) {
	early := NewTime(5, 0)
	late := NewTime(5, 1)

	if !early.Before(late) {
		t.Error("early.Before(late) = false")
	}
	if !late.After(early) {
		t.Error("late.After(early) = false")
	}
	if early.Before(early) || early.After(early) {
		t.Error("a time must not be before or after itself")
	}
	if c := early.Compare(late); c != -1 {
		t.Errorf("Compare = %d, want -1", c)
	}
	if c := late.Compare(early); c != 1 {
		t.Errorf("Compare = %d, want 1", c)
	}
	if c := early.Compare(early); c != 0 {
		t.Errorf("Compare = %d, want 0", c)
	}
}

func TestTimeDurationConversion(t *testing.T) {
	d := 1500*time.Millisecond + 250*time.Microsecond
	v := TimeFromDuration(d)
	if v.Sec != 1 || v.Usec != 500_250 {
		t.Fatalf("TimeFromDuration = %+v, want {1 500250}", v)
	}
	if got := v.Duration(); got != d {
		t.Fatalf("Duration = %v, want %v", got, d)
	}
}

func TestTimeGoTimeConversion(t *testing.T) {
	ref := time.Unix(1_700_000_000, 123_456_000)
	v := TimeFromGoTime(ref)
	if v.Sec != 1_700_000_000 || v.Usec != 123_456 {
		t.Fatalf("TimeFromGoTime = %+v", v)
	}
	if got := v.GoTime(); !got.Equal(ref) {
		t.Fatalf("GoTime = %v, want %v", got, ref)
	}
}

func TestTimeIsZero(t *testing.T) {
	if !(Time{}).IsZero() {
		t.Error("zero Time reported non-zero")
	}
	if NewTime(0, 1).IsZero() {
		t.Error("non-zero Time reported zero")
	}
}

func TestTimeString(t *testing.T) {
	if got := NewTime(3, 42).String(); got != "3.000042s" {
		t.Errorf("String = %q", got)
	}
}
