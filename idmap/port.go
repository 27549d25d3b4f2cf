package idmap

// Port is the kernel layer the registry relies on.
type Port interface {
	// LockGlobal takes the mutual-exclusion lock scoped to one object type.
	LockGlobal(t ObjectType)

	// UnlockGlobal releases the lock taken by LockGlobal.
	UnlockGlobal(t ObjectType)

	// Delay suspends the caller for at least ms milliseconds.
	Delay(ms uint32)
}
