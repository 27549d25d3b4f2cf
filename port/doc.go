// Package port is the kernel layer the OSAL core runs on.
//
// The core never touches threads, locks or clocks directly. It calls a
// small set of primitives supplied here:
//
//	LockGlobal/UnlockGlobal - one mutex per object type
//	Lock/Unlock             - one mutex per timebase slot
//	Delay                   - bounded sleep for lock backoff and spin yield
//	Create/Set/Delete/Sync  - software tick source per timebase
//	Start                   - dedicated service goroutine per timebase
//
// Native implements all of them on the Go runtime. A software timebase
// set with (start, interval) microseconds makes Sync return start on the
// first tick after each Set, then interval on every following tick:
//
//	p := port.New()
//	_ = p.Create(0, false)
//	_ = p.Set(0, 500_000, 100_000)
//	p.Sync(0) // 500000 after ~0.5s
//	p.Sync(0) // 100000 after ~0.1s more
package port
