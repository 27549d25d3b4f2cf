package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseTimer,
				Kind:   KindInvalidArgs,
				Op:     "TimerSet",
				Detail: "start out of range",
			},
			contains: []string{"[timer]", "invalid_args", "in TimerSet", "start out of range"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseIDMap,
				Kind:  KindNoFreeIDs,
			},
			contains: []string{"[idmap]", "no_free_ids"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhasePort,
				Kind:   KindTimerInternal,
				Detail: "arm failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[port]", "timer_internal", "arm failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseModule, KindError, cause, "compile")

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
}

func TestError_Is(t *testing.T) {
	err := NameTaken(PhaseQueue, "Q1")

	if !errors.Is(err, &Error{Phase: PhaseQueue, Kind: KindNameTaken}) {
		t.Error("expected match on phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseTask, Kind: KindNameTaken}) {
		t.Error("phase mismatch should not match")
	}
	if !errors.Is(err, ErrNameTaken) {
		t.Error("sentinel should match any phase")
	}
	if errors.Is(err, ErrNameNotFound) {
		t.Error("different kind should not match")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrNameTaken) {
		t.Error("sentinel should match through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseTimeBase, KindInvalidArgs).
		Op("TimeBaseSet").
		Value(uint32(1_000_000_000)).
		Detail("interval %d out of range", 1_000_000_000).
		Build()

	if err.Op != "TimeBaseSet" {
		t.Errorf("Op = %q", err.Op)
	}
	if err.Value != uint32(1_000_000_000) {
		t.Errorf("Value = %v", err.Value)
	}
	if !strings.Contains(err.Detail, "1000000000") {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Code() != StatusTimerInvalidArgs {
		t.Errorf("Code = %d, want %d", err.Code(), StatusTimerInvalidArgs)
	}
}

func TestCodeAndName(t *testing.T) {
	tests := []struct {
		err  error
		code int32
		name string
	}{
		{nil, StatusSuccess, "OS_SUCCESS"},
		{errors.New("plain"), StatusError, "OS_ERROR"},
		{InvalidID(PhaseIDMap, 7), StatusInvalidID, "OS_ERR_INVALID_ID"},
		{ObjectInUse(PhaseIDMap, 7), StatusObjectInUse, "OS_ERR_OBJECT_IN_USE"},
		{IncorrectObjState(PhaseTimer, "x"), StatusIncorrectObjState, "OS_ERR_INCORRECT_OBJ_STATE"},
		{fmt.Errorf("wrapped: %w", NameNotFound(PhaseTask, "t")), StatusNameNotFound, "OS_ERR_NAME_NOT_FOUND"},
		{NotImplemented(PhaseIDMap, "x"), StatusNotImplemented, "OS_ERR_NOT_IMPLEMENTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.code {
				t.Errorf("Code = %d, want %d", got, tt.code)
			}
			if got := Name(Code(tt.err)); got != tt.name {
				t.Errorf("Name = %q, want %q", got, tt.name)
			}
		})
	}

	if got := Name(-99); got != "OS_UNKNOWN(-99)" {
		t.Errorf("Name(-99) = %q", got)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(queueFullErr()) != KindQueueFull {
		t.Error("expected queue_full")
	}
	if KindOf(errors.New("x")) != KindError {
		t.Error("foreign errors map to KindError")
	}
}

func queueFullErr() error {
	return fmt.Errorf("put: %w", New(PhaseQueue, KindQueueFull).Build())
}
