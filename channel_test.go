package dispatcher

import (
	"sync"
	"testing"
)

func newTestChannel(t *testing.T) *crossThreadChannel {
	t.Helper()
	c, err := newCrossThreadChannel(0)
	if err != nil {
		t.Fatalf("newCrossThreadChannel: %v", err)
	}
	t.Cleanup(func() { _ = c.close() })
	return c
}

func TestChannelPostDrainOrder(t *testing.T) {
	c := newTestChannel(t)

	for i := 1; i <= 5; i++ {
		if err := c.post(pipeMessage{kind: msgInterrupt, key: ListenerKey(i)}); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}

	msgs, err := c.drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("drained %d messages, want 5", len(msgs))
	}
	for i, msg := range msgs {
		if msg.key != ListenerKey(i+1) {
			t.Fatalf("message %d has key %d, want %d (FIFO order)", i, msg.key, i+1)
		}
	}
}

func TestChannelDrainEmpty(t *testing.T) {
	c := newTestChannel(t)

	msgs, err := c.drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("drained %d messages from an empty channel", len(msgs))
	}
}

func TestChannelWakeDedup(t *testing.T) {
	c := newTestChannel(t)

	if err := c.post(pipeMessage{kind: msgInterrupt}); err != nil {
		t.Fatalf("post: %v", err)
	}
	if got := c.wakePending.Load(); got != 1 {
		t.Fatalf("wakePending = %d after first post, want 1", got)
	}

	// Subsequent posts ride the pending wake instead of writing again.
	for i := 0; i < 10; i++ {
		if err := c.post(pipeMessage{kind: msgInterrupt}); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	msgs, err := c.drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(msgs) != 11 {
		t.Fatalf("drained %d messages, want 11", len(msgs))
	}
	if got := c.wakePending.Load(); got != 0 {
		t.Fatalf("wakePending = %d after drain, want 0", got)
	}
}

func TestChannelConcurrentPosts(t *testing.T) {
	const (
		goroutines = 8
		perG       = 500
	)

	c := newTestChannel(t)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				if err := c.post(pipeMessage{kind: msgInterrupt}); err != nil {
					t.Errorf("post: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for {
		msgs, err := c.drain()
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		if len(msgs) == 0 {
			break
		}
		total += len(msgs)
	}
	if total != goroutines*perG {
		t.Fatalf("drained %d messages, want %d", total, goroutines*perG)
	}
}

func TestChannelPostAfterClose(t *testing.T) {
	c, err := newCrossThreadChannel(0)
	if err != nil {
		t.Fatalf("newCrossThreadChannel: %v", err)
	}
	if err := c.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := c.post(pipeMessage{kind: msgInterrupt}); err != ErrChannelClosed {
		t.Fatalf("post after close = %v, want ErrChannelClosed", err)
	}

	// Closing twice is a no-op.
	if err := c.close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
