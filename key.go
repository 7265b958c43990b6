package dispatcher

import "sync/atomic"

// ListenerKey identifies a registered listener. Keys are unique across all
// listener categories for the lifetime of one Dispatcher instance, assigned
// monotonically starting at 1; 0 is never a valid key.
//
// The allocator is a 64-bit counter. Wraparound would require more than
// 10^19 registrations and is treated as unreachable.
type ListenerKey uint64

// keyAllocator issues listener keys. Safe for concurrent use.
type keyAllocator struct {
	next atomic.Uint64
}

// NextKey returns a key never returned before by this allocator.
func (a *keyAllocator) NextKey() ListenerKey {
	return ListenerKey(a.next.Add(1))
}
