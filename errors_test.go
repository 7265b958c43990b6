package dispatcher

import (
	"errors"
	"io"
	"testing"
)

func TestInvalidArgumentErrorMatching(t *testing.T) {
	err := error(&InvalidArgumentError{Op: "AddIOEventListener", Reason: "negative file descriptor"})

	if !errors.Is(err, &InvalidArgumentError{}) {
		t.Error("errors.Is failed to match a zero *InvalidArgumentError")
	}

	var ia *InvalidArgumentError
	if !errors.As(err, &ia) {
		t.Fatal("errors.As failed")
	}
	if ia.Op != "AddIOEventListener" {
		t.Errorf("Op = %q", ia.Op)
	}

	want := "dispatcher: AddIOEventListener: invalid argument: negative file descriptor"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestChannelErrorUnwrap(t *testing.T) {
	err := error(&ChannelError{Op: "write", Err: io.ErrClosedPipe})

	if !errors.Is(err, io.ErrClosedPipe) {
		t.Error("errors.Is failed to reach the wrapped error")
	}

	var ce *ChannelError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As failed")
	}
	if ce.Op != "write" {
		t.Errorf("Op = %q", ce.Op)
	}
}
