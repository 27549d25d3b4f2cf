package idmap

import "go.uber.org/zap"

// Token is the result of a successful allocation or lookup. It records the
// lock mode that was applied so the caller can undo it with Release.
type Token struct {
	reg   *Registry
	Mode  LockMode
	Type  ObjectType
	Index int
	ID    ID
	done  bool
}

// Record returns the generic record the token refers to.
func (t *Token) Record() *Record {
	return t.reg.record(t.Type, t.Index)
}

// Release undoes the token's lock mode: Global and Exclusive release the
// type lock, Refcount drops the shared hold. Releasing twice is a no-op.
func (t *Token) Release() {
	if t == nil || t.done {
		return
	}
	t.done = true
	switch t.Mode {
	case LockGlobal, LockExclusive:
		t.reg.port.UnlockGlobal(t.Type)
	case LockRefcount:
		if err := t.reg.RefcountDecr(t); err != nil {
			Logger().Warn("refcount release failed", zap.Stringer("id", t.ID), zap.Error(err))
		}
	}
}
