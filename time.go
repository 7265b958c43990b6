package dispatcher

import (
	"fmt"
	"time"
)

const usecPerSecond = 1_000_000

// Time is a (seconds, microseconds) pair representing either an absolute
// point in time or a duration. Microseconds are always normalized to
// [0, 1e6); negative values are expressed by borrowing from the seconds
// component, so Time{-1, 999999} is one microsecond before the epoch.
type Time struct {
	Sec  int64
	Usec int64
}

// NewTime returns a normalized Time from the given seconds and microseconds.
// Out-of-range microseconds carry into the seconds component.
func NewTime(sec, usec int64) Time {
	return Time{Sec: sec, Usec: usec}.normalize()
}

// TimeFromDuration converts a duration to a Time, truncating to
// microsecond precision.
func TimeFromDuration(d time.Duration) Time {
	us := d.Microseconds()
	return NewTime(us/usecPerSecond, us%usecPerSecond)
}

// TimeFromGoTime converts an absolute time.Time to a Time measured from
// the Unix epoch, truncating to microsecond precision.
func TimeFromGoTime(t time.Time) Time {
	return NewTime(t.Unix(), int64(t.Nanosecond())/1000)
}

func (t Time) normalize() Time {
	if t.Usec >= usecPerSecond {
		t.Sec += t.Usec / usecPerSecond
		t.Usec %= usecPerSecond
	} else if t.Usec < 0 {
		borrow := (-t.Usec + usecPerSecond - 1) / usecPerSecond
		t.Sec -= borrow
		t.Usec += borrow * usecPerSecond
	}
	return t
}

// Add returns t + u, normalized.
func (t Time) Add(u Time) Time {
	return Time{Sec: t.Sec + u.Sec, Usec: t.Usec + u.Usec}.normalize()
}

// Sub returns t - u, normalized.
func (t Time) Sub(u Time) Time {
	return Time{Sec: t.Sec - u.Sec, Usec: t.Usec - u.Usec}.normalize()
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool {
	if t.Sec != u.Sec {
		return t.Sec < u.Sec
	}
	return t.Usec < u.Usec
}

// After reports whether t is strictly later than u.
func (t Time) After(u Time) bool {
	return u.Before(t)
}

// Compare returns -1, 0, or 1 as t is earlier than, equal to, or later
// than u.
func (t Time) Compare(u Time) int {
	switch {
	case t.Before(u):
		return -1
	case u.Before(t):
		return 1
	default:
		return 0
	}
}

// IsZero reports whether t is the zero Time. The zero Time doubles as the
// "one-shot" interval marker for timer listeners.
func (t Time) IsZero() bool {
	return t.Sec == 0 && t.Usec == 0
}

// Duration converts t, interpreted as a duration, to a time.Duration.
func (t Time) Duration() time.Duration {
	return time.Duration(t.Sec)*time.Second + time.Duration(t.Usec)*time.Microsecond
}

// GoTime converts t, interpreted as an absolute time since the Unix
// epoch, to a time.Time.
func (t Time) GoTime() time.Time {
	return time.Unix(t.Sec, t.Usec*1000)
}

// String returns the time formatted as seconds with six fractional digits.
func (t Time) String() string {
	return fmt.Sprintf("%d.%06ds", t.Sec, t.Usec)
}
