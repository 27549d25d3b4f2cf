package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates which subsystem produced the error
type Phase string

const (
	PhaseIDMap    Phase = "idmap"    // object registry and lock engine
	PhaseTask     Phase = "task"     // task records
	PhaseQueue    Phase = "queue"    // message queues
	PhaseBinSem   Phase = "binsem"   // binary semaphores
	PhaseCountSem Phase = "countsem" // counting semaphores
	PhaseMutex    Phase = "mutex"    // mutex semaphores
	PhaseTimeBase Phase = "timebase" // timebase engine
	PhaseTimer    Phase = "timer"    // timer callback facade
	PhaseModule   Phase = "module"   // loadable modules
	PhaseInit     Phase = "init"     // API init and shutdown
	PhasePort     Phase = "port"     // kernel port layer
)

// Kind categorizes the error
type Kind string

const (
	KindError             Kind = "error"
	KindInvalidPointer    Kind = "invalid_pointer"
	KindTimeout           Kind = "timeout"
	KindSemFailure        Kind = "sem_failure"
	KindSemTimeout        Kind = "sem_timeout"
	KindQueueEmpty        Kind = "queue_empty"
	KindQueueFull         Kind = "queue_full"
	KindQueueTimeout      Kind = "queue_timeout"
	KindQueueInvalidSize  Kind = "queue_invalid_size"
	KindNameTooLong       Kind = "name_too_long"
	KindNoFreeIDs         Kind = "no_free_ids"
	KindNameTaken         Kind = "name_taken"
	KindInvalidID         Kind = "invalid_id"
	KindNameNotFound      Kind = "name_not_found"
	KindSemNotFull        Kind = "sem_not_full"
	KindInvalidPriority   Kind = "invalid_priority"
	KindInvalidSemValue   Kind = "invalid_sem_value"
	KindNotImplemented    Kind = "not_implemented"
	KindInvalidArgs       Kind = "invalid_args"
	KindTimerInternal     Kind = "timer_internal"
	KindObjectInUse       Kind = "object_in_use"
	KindIncorrectObjState Kind = "incorrect_obj_state"
	KindIncorrectObjType  Kind = "incorrect_obj_type"
)

// Sentinels match any error of the same Kind regardless of Phase:
//
//	if errors.Is(err, osalerrors.ErrInvalidID) { ... }
var (
	ErrError             = &Error{Kind: KindError}
	ErrInvalidPointer    = &Error{Kind: KindInvalidPointer}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrSemFailure        = &Error{Kind: KindSemFailure}
	ErrSemTimeout        = &Error{Kind: KindSemTimeout}
	ErrQueueEmpty        = &Error{Kind: KindQueueEmpty}
	ErrQueueFull         = &Error{Kind: KindQueueFull}
	ErrQueueTimeout      = &Error{Kind: KindQueueTimeout}
	ErrQueueInvalidSize  = &Error{Kind: KindQueueInvalidSize}
	ErrNameTooLong       = &Error{Kind: KindNameTooLong}
	ErrNoFreeIDs         = &Error{Kind: KindNoFreeIDs}
	ErrNameTaken         = &Error{Kind: KindNameTaken}
	ErrInvalidID         = &Error{Kind: KindInvalidID}
	ErrNameNotFound      = &Error{Kind: KindNameNotFound}
	ErrSemNotFull        = &Error{Kind: KindSemNotFull}
	ErrInvalidPriority   = &Error{Kind: KindInvalidPriority}
	ErrInvalidSemValue   = &Error{Kind: KindInvalidSemValue}
	ErrNotImplemented    = &Error{Kind: KindNotImplemented}
	ErrInvalidArgs       = &Error{Kind: KindInvalidArgs}
	ErrTimerInternal     = &Error{Kind: KindTimerInternal}
	ErrObjectInUse       = &Error{Kind: KindObjectInUse}
	ErrIncorrectObjState = &Error{Kind: KindIncorrectObjState}
	ErrIncorrectObjType  = &Error{Kind: KindIncorrectObjType}
)

// Error is the structured error type used throughout the OSAL
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Code returns the OSAL status code for this error's kind
func (e *Error) Code() int32 {
	if c, ok := kindCodes[e.Kind]; ok {
		return c
	}
	return StatusError
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the name of the failing operation
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidID creates an error for a handle that is stale or does not decode
func InvalidID(phase Phase, id any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidID,
		Value:  id,
		Detail: fmt.Sprintf("object id %v is not valid", id),
	}
}

// InvalidPointer creates an error for a missing required argument
func InvalidPointer(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidPointer,
		Detail: what + " is required",
	}
}

// NameTooLong creates an error for a name at or over the configured limit
func NameTooLong(phase Phase, name string, limit int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNameTooLong,
		Value:  name,
		Detail: fmt.Sprintf("name %q must be shorter than %d bytes", name, limit),
	}
}

// NameTaken creates an error for a duplicate object name
func NameTaken(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNameTaken,
		Value:  name,
		Detail: fmt.Sprintf("name %q already in use", name),
	}
}

// NameNotFound creates an error for a failed name lookup
func NameNotFound(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNameNotFound,
		Value:  name,
		Detail: fmt.Sprintf("no object named %q", name),
	}
}

// NoFreeIDs creates an error for an exhausted object type
func NoFreeIDs(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNoFreeIDs,
		Detail: "no free " + what + " slots",
	}
}

// NotImplemented creates an error for a disabled or unsupported feature
func NotImplemented(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotImplemented,
		Detail: what,
	}
}

// ObjectInUse creates an error for an exclusive request that ran out of retries
func ObjectInUse(phase Phase, id any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindObjectInUse,
		Value:  id,
		Detail: fmt.Sprintf("object %v is in use", id),
	}
}

// IncorrectObjState creates an error for an operation invalid in the current state
func IncorrectObjState(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIncorrectObjState,
		Detail: detail,
	}
}

// IncorrectObjType creates an error for a handle of the wrong object type
func IncorrectObjType(phase Phase, got any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIncorrectObjType,
		Value:  got,
		Detail: fmt.Sprintf("unexpected object type %v", got),
	}
}

// InvalidArgs creates an error for out-of-range timer arguments
func InvalidArgs(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgs,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindError.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindError
}

// Is reports whether any error in err's chain matches target.
// It forwards to the standard library so callers need one import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
