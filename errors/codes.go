package errors

import (
	"errors"
	"fmt"
)

// OSAL status codes. Zero is success; every failure is negative.
const (
	StatusSuccess           int32 = 0
	StatusError             int32 = -1
	StatusInvalidPointer    int32 = -2
	StatusTimeout           int32 = -4
	StatusSemFailure        int32 = -6
	StatusSemTimeout        int32 = -7
	StatusQueueEmpty        int32 = -8
	StatusQueueFull         int32 = -9
	StatusQueueTimeout      int32 = -10
	StatusQueueInvalidSize  int32 = -11
	StatusNameTooLong       int32 = -13
	StatusNoFreeIDs         int32 = -14
	StatusNameTaken         int32 = -15
	StatusInvalidID         int32 = -16
	StatusNameNotFound      int32 = -17
	StatusSemNotFull        int32 = -18
	StatusInvalidPriority   int32 = -19
	StatusInvalidSemValue   int32 = -20
	StatusNotImplemented    int32 = -28
	StatusTimerInvalidArgs  int32 = -29
	StatusTimerInternal     int32 = -32
	StatusObjectInUse       int32 = -33
	StatusIncorrectObjState int32 = -35
	StatusIncorrectObjType  int32 = -36
)

var kindCodes = map[Kind]int32{
	KindError:             StatusError,
	KindInvalidPointer:    StatusInvalidPointer,
	KindTimeout:           StatusTimeout,
	KindSemFailure:        StatusSemFailure,
	KindSemTimeout:        StatusSemTimeout,
	KindQueueEmpty:        StatusQueueEmpty,
	KindQueueFull:         StatusQueueFull,
	KindQueueTimeout:      StatusQueueTimeout,
	KindQueueInvalidSize:  StatusQueueInvalidSize,
	KindNameTooLong:       StatusNameTooLong,
	KindNoFreeIDs:         StatusNoFreeIDs,
	KindNameTaken:         StatusNameTaken,
	KindInvalidID:         StatusInvalidID,
	KindNameNotFound:      StatusNameNotFound,
	KindSemNotFull:        StatusSemNotFull,
	KindInvalidPriority:   StatusInvalidPriority,
	KindInvalidSemValue:   StatusInvalidSemValue,
	KindNotImplemented:    StatusNotImplemented,
	KindInvalidArgs:       StatusTimerInvalidArgs,
	KindTimerInternal:     StatusTimerInternal,
	KindObjectInUse:       StatusObjectInUse,
	KindIncorrectObjState: StatusIncorrectObjState,
	KindIncorrectObjType:  StatusIncorrectObjType,
}

var codeNames = map[int32]string{
	StatusSuccess:           "OS_SUCCESS",
	StatusError:             "OS_ERROR",
	StatusInvalidPointer:    "OS_INVALID_POINTER",
	StatusTimeout:           "OS_ERROR_TIMEOUT",
	StatusSemFailure:        "OS_SEM_FAILURE",
	StatusSemTimeout:        "OS_SEM_TIMEOUT",
	StatusQueueEmpty:        "OS_QUEUE_EMPTY",
	StatusQueueFull:         "OS_QUEUE_FULL",
	StatusQueueTimeout:      "OS_QUEUE_TIMEOUT",
	StatusQueueInvalidSize:  "OS_QUEUE_INVALID_SIZE",
	StatusNameTooLong:       "OS_ERR_NAME_TOO_LONG",
	StatusNoFreeIDs:         "OS_ERR_NO_FREE_IDS",
	StatusNameTaken:         "OS_ERR_NAME_TAKEN",
	StatusInvalidID:         "OS_ERR_INVALID_ID",
	StatusNameNotFound:      "OS_ERR_NAME_NOT_FOUND",
	StatusSemNotFull:        "OS_ERR_SEM_NOT_FULL",
	StatusInvalidPriority:   "OS_ERR_INVALID_PRIORITY",
	StatusInvalidSemValue:   "OS_INVALID_SEM_VALUE",
	StatusNotImplemented:    "OS_ERR_NOT_IMPLEMENTED",
	StatusTimerInvalidArgs:  "OS_TIMER_ERR_INVALID_ARGS",
	StatusTimerInternal:     "OS_TIMER_ERR_INTERNAL",
	StatusObjectInUse:       "OS_ERR_OBJECT_IN_USE",
	StatusIncorrectObjState: "OS_ERR_INCORRECT_OBJ_STATE",
	StatusIncorrectObjType:  "OS_ERR_INCORRECT_OBJ_TYPE",
}

// Code maps err to an OSAL status code.
// nil is success and errors outside this package map to StatusError.
func Code(err error) int32 {
	if err == nil {
		return StatusSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return StatusError
}

// Name returns the symbolic name of an OSAL status code.
func Name(code int32) string {
	if n, ok := codeNames[code]; ok {
		return n
	}
	return fmt.Sprintf("OS_UNKNOWN(%d)", code)
}
