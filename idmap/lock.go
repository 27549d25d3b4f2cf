package idmap

import (
	"github.com/wippyai/osal/errors"
	"go.uber.org/zap"
)

// MaxLockAttempts bounds how often a contended Refcount or Exclusive
// request is retried before failing with ObjectInUse.
const MaxLockAttempts = 5

// convertLock turns a freshly taken type lock into the state requested by
// tok.Mode. It is entered with the type lock held. On failure the lock is
// always released; on success it is held for Global and Exclusive and
// released for Refcount.
func (r *Registry) convertLock(tok *Token) error {
	t := tok.Type
	rec := r.record(t, tok.Index)
	owned := false
	attempts := 0

	var err error
	for {
		if rec.ActiveID() != tok.ID {
			err = errors.InvalidID(errors.PhaseIDMap, tok.ID)
			break
		}

		granted := false
		switch tok.Mode {
		case LockRefcount:
			granted = rec.hold.acquire()
		case LockExclusive:
			granted, owned = rec.hold.requestExclusive(owned)
		default:
			granted = true
		}
		if granted {
			break
		}

		attempts++
		r.notify(Event{Type: EventContention, ObjType: t, ID: tok.ID, Name: rec.name, Attempt: attempts})
		if attempts >= MaxLockAttempts {
			r.notify(Event{Type: EventInUse, ObjType: t, ID: tok.ID, Name: rec.name, Attempt: attempts})
			err = errors.ObjectInUse(errors.PhaseIDMap, tok.ID)
			break
		}

		Logger().Debug("object lock contended",
			zap.Stringer("id", tok.ID),
			zap.Stringer("mode", tok.Mode),
			zap.Int("attempt", attempts))

		r.port.UnlockGlobal(t)
		r.port.Delay(uint32(attempts))
		r.port.LockGlobal(t)
	}

	// A stale id means the slot was recycled; its hold belongs to the new object.
	if owned && rec.ActiveID() == tok.ID {
		rec.hold.cancelExclusive()
	}

	if err != nil || tok.Mode == LockRefcount {
		r.port.UnlockGlobal(t)
	}
	return err
}
