package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
)

func TestRun_SettlesOnceAfterOutcome(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation[int]
		want    []string
		wantVal int
	}{
		{
			name: "success",
			op:   func(context.Context) (int, error) { return 7, nil },
			want: []string{"success", "settled"},
		},
		{
			name: "error",
			op:   func(context.Context) (int, error) { return 0, errors.New("boom") },
			want: []string{"error", "settled"},
		},
		{
			name: "panic",
			op:   func(context.Context) (int, error) { panic("kaboom") },
			want: []string{"error", "settled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop := newTestLoop()
			var events []string
			Run(context.Background(), loop, tt.op, Callbacks[int]{
				OnSuccess: func(int) { events = append(events, "success") },
				OnError:   func(error) { events = append(events, "error") },
				OnSettled: func() { events = append(events, "settled") },
			})

			if n := loop.flush(t); n != 1 {
				t.Fatalf("posted %d continuations, want 1", n)
			}
			if strings.Join(events, ",") != strings.Join(tt.want, ",") {
				t.Errorf("events = %v, want %v", events, tt.want)
			}
		})
	}
}

func TestRun_SettledWithoutOtherCallbacks(t *testing.T) {
	loop := newTestLoop()
	settled := 0
	Run(context.Background(), loop, func(context.Context) (string, error) {
		return "", errors.New("unreachable host")
	}, Callbacks[string]{OnSettled: func() { settled++ }})
	loop.flush(t)

	if settled != 1 {
		t.Errorf("OnSettled ran %d times, want 1", settled)
	}
}

func TestRun_SettledAfterCallbackPanic(t *testing.T) {
	loop := newTestLoop()
	settled := false
	Run(context.Background(), loop, func(context.Context) (int, error) {
		return 1, nil
	}, Callbacks[int]{
		OnSuccess: func(int) { panic("render failed") },
		OnSettled: func() { settled = true },
	})

	func() {
		defer func() { _ = recover() }()
		loop.next(t)
	}()
	if !settled {
		t.Error("OnSettled did not run after OnSuccess panicked")
	}
}

func TestRun_PanicBecomesError(t *testing.T) {
	loop := newTestLoop()
	var got error
	Run(context.Background(), loop, func(context.Context) (int, error) {
		panic("nil map")
	}, Callbacks[int]{OnError: func(err error) { got = err }})
	loop.next(t)

	if got == nil || !strings.Contains(got.Error(), "nil map") {
		t.Errorf("error = %v, want it to mention the panic value", got)
	}
	if len(eris.Unpack(got).ErrRoot.Stack) == 0 {
		t.Error("panic error carries no stack")
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"reason", &reasonError{reason: "Invalid recipient: bob"}, "Invalid recipient: bob"},
		{"wrapped reason", fmt.Errorf("send: %w", &reasonError{reason: "nope"}), "nope"},
		{"empty reason", &reasonError{}, GenericFailure},
		{"plain error", errors.New("dial tcp: refused"), GenericFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureReason(tt.err, GenericFailure); got != tt.want {
				t.Errorf("FailureReason() = %q, want %q", got, tt.want)
			}
		})
	}
}
