// Package sem implements OSAL binary semaphores, counting semaphores and
// mutexes on top of the object registry.
//
// Blocking operations take a Refcount hold for their whole wait, so an
// object cannot be deleted under a waiter; Delete fails with ObjectInUse
// until the waiters are gone.
package sem

import (
	"github.com/wippyai/osal/idmap"
)

// MaxCountValue is the largest count a counting semaphore can hold.
const MaxCountValue = 0x7FFFFFFF

type semRecord struct {
	core *semCore
}

type mutexRecord struct {
	core *mutexCore
}

// Info describes a semaphore.
type Info struct {
	Name    string
	Creator idmap.ID
	Value   uint32
}

// MutexInfo describes a mutex.
type MutexInfo struct {
	Name    string
	Creator idmap.ID
	Owner   idmap.ID
}

// Manager owns the semaphore and mutex records of a registry.
type Manager struct {
	reg     *idmap.Registry
	binsem  *idmap.Table[semRecord]
	count   *idmap.Table[semRecord]
	mutexes *idmap.Table[mutexRecord]
}

// New creates a semaphore manager.
func New(reg *idmap.Registry) *Manager {
	return &Manager{
		reg:     reg,
		binsem:  idmap.NewTable[semRecord](reg, idmap.TypeBinSem),
		count:   idmap.NewTable[semRecord](reg, idmap.TypeCountSem),
		mutexes: idmap.NewTable[mutexRecord](reg, idmap.TypeMutex),
	}
}
