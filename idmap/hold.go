package idmap

// holdKind is the shared/exclusive state of a record.
type holdKind uint8

const (
	holdIdle     holdKind = iota // no holders, no exclusive request
	holdShared                   // refs > 0, no exclusive request
	holdDraining                 // exclusive requested, waiting for refs to drain
)

// hold tracks refcount holders and a pending exclusive request.
// Transitions happen only under the owning type lock.
//
//	Idle --acquire--> Shared(1) --release--> Idle
//	Shared(n) --requestExclusive--> Draining(n) --release...--> Draining(0)
//	Draining(0) --requestExclusive(owned)--> Idle (granted)
//	Draining(n) --cancelExclusive--> Shared(n) or Idle
type hold struct {
	kind holdKind
	refs uint32
}

// acquire adds a shared holder. It fails while an exclusive request drains.
func (h *hold) acquire() bool {
	if h.kind == holdDraining {
		return false
	}
	h.refs++
	h.kind = holdShared
	return true
}

// release drops a shared holder. It fails if there are none.
func (h *hold) release() bool {
	if h.refs == 0 {
		return false
	}
	h.refs--
	if h.refs == 0 && h.kind == holdShared {
		h.kind = holdIdle
	}
	return true
}

// requestExclusive asks for exclusive access. owned reports whether the
// caller already placed the pending request on a previous attempt.
// It returns whether access is granted now and whether the caller owns
// the pending request afterwards.
func (h *hold) requestExclusive(owned bool) (granted, nowOwned bool) {
	if h.kind == holdDraining && !owned {
		return false, false
	}
	if h.refs == 0 {
		h.kind = holdIdle
		return true, false
	}
	h.kind = holdDraining
	return false, true
}

// cancelExclusive withdraws a pending request placed by the caller.
func (h *hold) cancelExclusive() {
	if h.kind != holdDraining {
		return
	}
	if h.refs > 0 {
		h.kind = holdShared
	} else {
		h.kind = holdIdle
	}
}

func (h *hold) draining() bool {
	return h.kind == holdDraining
}
