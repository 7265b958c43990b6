package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTimer(key ListenerKey, fire Time) *timerListener {
	return &timerListener{
		key:      key,
		nextFire: fire,
		callback: func(ListenerKey, Time, any) Disposition { return KeepListener },
	}
}

func TestTimerQueuePopOrder(t *testing.T) {
	q := newTimerQueue()

	// Insert out of order.
	q.push(newTestTimer(3, NewTime(30, 0)))
	q.push(newTestTimer(1, NewTime(10, 0)))
	q.push(newTestTimer(2, NewTime(20, 0)))

	now := NewTime(100, 0)
	var got []ListenerKey
	for timer := q.popDue(now); timer != nil; timer = q.popDue(now) {
		got = append(got, timer.key)
	}
	assert.Equal(t, []ListenerKey{1, 2, 3}, got)
	assert.Zero(t, q.len())
}

func TestTimerQueueTieBreakByKey(t *testing.T) {
	q := newTimerQueue()
	fire := NewTime(10, 500)

	// Same fire time, registered in reverse key order.
	q.push(newTestTimer(9, fire))
	q.push(newTestTimer(4, fire))
	q.push(newTestTimer(7, fire))

	var got []ListenerKey
	for timer := q.popDue(fire); timer != nil; timer = q.popDue(fire) {
		got = append(got, timer.key)
	}
	assert.Equal(t, []ListenerKey{4, 7, 9}, got)
}

func TestTimerQueuePopDueBoundary(t *testing.T) {
	q := newTimerQueue()
	q.push(newTestTimer(1, NewTime(10, 0)))

	// Not due strictly before the fire time.
	assert.Nil(t, q.popDue(NewTime(9, 999_999)))

	// Due at exactly the fire time.
	timer := q.popDue(NewTime(10, 0))
	require.NotNil(t, timer)
	assert.Equal(t, ListenerKey(1), timer.key)
}

func TestTimerQueueRemoveInterior(t *testing.T) {
	q := newTimerQueue()
	for i := 1; i <= 8; i++ {
		q.push(newTestTimer(ListenerKey(i), NewTime(int64(i*10), 0)))
	}

	// Remove an element that is not the root.
	require.True(t, q.remove(5))
	assert.Equal(t, 7, q.len())

	now := NewTime(1000, 0)
	var got []ListenerKey
	for timer := q.popDue(now); timer != nil; timer = q.popDue(now) {
		got = append(got, timer.key)
	}
	assert.Equal(t, []ListenerKey{1, 2, 3, 4, 6, 7, 8}, got,
		"heap must stay ordered after an interior removal")
}

func TestTimerQueueRemoveUnknown(t *testing.T) {
	q := newTimerQueue()
	q.push(newTestTimer(1, NewTime(10, 0)))

	assert.False(t, q.remove(42))
	assert.True(t, q.remove(1))
	assert.False(t, q.remove(1), "second removal of the same key must be a no-op")
}

func TestTimerQueuePeek(t *testing.T) {
	q := newTimerQueue()
	assert.Nil(t, q.peek())

	q.push(newTestTimer(2, NewTime(20, 0)))
	q.push(newTestTimer(1, NewTime(10, 0)))

	require.NotNil(t, q.peek())
	assert.Equal(t, ListenerKey(1), q.peek().key)
	assert.Equal(t, 2, q.len(), "peek must not remove")
}
