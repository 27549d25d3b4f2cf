// Package errors provides structured error types for the OSAL.
//
// Errors are categorized by Phase (the subsystem that failed) and Kind
// (error category). Each Kind maps to a stable OSAL status code so callers
// that speak the numeric protocol can keep doing so.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTimer, errors.KindInvalidArgs).
//		Op("TimerSet").
//		Value(start).
//		Detail("start time %d out of range", start).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NameTaken(errors.PhaseQueue, "CMD_PIPE")
//	err := errors.ObjectInUse(errors.PhaseIDMap, id)
//
// Kind sentinels match across phases:
//
//	if errors.Is(err, errors.ErrObjectInUse) { retry() }
//
// and Code/Name translate back to the numeric form:
//
//	errors.Name(errors.Code(err)) // "OS_ERR_OBJECT_IN_USE"
package errors
