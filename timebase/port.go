package timebase

import (
	"context"

	"github.com/wippyai/osal/idmap"
)

// SyncFunc blocks until the timebase's time reference advances and returns
// the elapsed ticks, or 0 if the wait was interrupted. Units are whatever
// the timebase owner chooses; software timebases use microseconds.
//
// ctx is cancelled when the timebase is deleted. A SyncFunc that can block
// indefinitely must return once ctx is done, or deleting the timebase
// leaves its service loop parked.
type SyncFunc func(ctx context.Context, id idmap.ID) uint32

// Port is the kernel layer the timebase engine relies on.
type Port interface {
	// Lock takes the per-timebase lock that excludes the service loop.
	Lock(slot int)
	// Unlock releases the per-timebase lock.
	Unlock(slot int)

	// Create prepares the tick source of a new timebase.
	Create(slot int, external bool) error
	// Set programs the software tick source.
	Set(slot int, start, interval uint32) error
	// Delete stops the tick source and wakes a blocked Sync.
	Delete(slot int) error
	// Sync is the software SyncFunc of slot.
	Sync(slot int) uint32

	// Start runs a timebase service loop on a dedicated thread of control.
	Start(slot int, loop func())
	// Delay suspends the caller for at least ms milliseconds.
	Delay(ms uint32)
}
