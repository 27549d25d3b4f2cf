// Package idmap implements the object registry every OSAL resource type is
// built on.
//
// # Handles
//
// Each object is addressed by a 32-bit ID packing its type, a per-slot
// generation serial and its slot index:
//
//	id, _ := idmap.Encode(idmap.TypeQueue, gen, 3)
//	idx, err := idmap.Decode(id, idmap.TypeQueue, capacity)
//
// The generation advances every time a slot is reissued, so a stale handle
// to a recycled slot fails with InvalidID instead of reaching the new owner.
//
// # Allocation
//
// Creation is a two-step protocol. AllocateNew returns with the type lock
// held so the caller can fill in its extension record atomically, then
// FinalizeNew commits or rolls back and unlocks:
//
//	tok, err := reg.AllocateNew(ctx, idmap.TypeQueue, "CMD_PIPE")
//	if err != nil {
//	    return err
//	}
//	status := setup(queues.Get(tok))
//	id, err := reg.FinalizeNew(tok, status)
//
// # Lock Modes
//
// Lookups pick how long the object must stay safe:
//
//	LockNone      - no locking, caller accepts torn reads
//	LockGlobal    - type lock held until Release
//	LockExclusive - type lock held and no shared holders (used to delete)
//	LockRefcount  - type lock released, shared hold until Release
//
// Exclusive requests wait for shared holders with a bounded retry
// (MaxLockAttempts, sleeping attempt milliseconds between tries) and fail
// with ObjectInUse rather than block indefinitely.
//
// # Extension Records
//
// Type-specific data lives in a Table indexed like the registry slots and
// zeroed whenever a slot is freed:
//
//	queues := idmap.NewTable[queueRecord](reg, idmap.TypeQueue)
package idmap
