package port

import (
	"sync"
	"time"

	"github.com/wippyai/osal/idmap"
	"go.uber.org/zap"
)

// Native implements the kernel port on the Go runtime: type locks and
// timebase locks are sync.Mutex values, delays sleep, service loops run on
// goroutines, and software timebases tick from time.AfterFunc.
type Native struct {
	types [idmap.TypeUser]sync.Mutex
	mu    sync.Mutex
	bases map[int]*softBase
	wg    sync.WaitGroup
}

// softBase is the tick source behind one timebase slot. The slot's lock
// and the struct itself outlive individual timebases so a service loop
// draining out of a deleted timebase never races a nil entry.
type softBase struct {
	lock sync.Mutex

	ctl      sync.Mutex
	tick     chan struct{}
	stop     chan struct{}
	timer    *time.Timer
	epoch    uint64
	start    uint32
	interval uint32
	reset    bool
	external bool
	stopped  bool
}

// New creates a native port.
func New() *Native {
	return &Native{
		bases: make(map[int]*softBase),
	}
}

// LockGlobal takes the lock for object type t.
func (n *Native) LockGlobal(t idmap.ObjectType) {
	n.types[t].Lock()
}

// UnlockGlobal releases the lock for object type t.
func (n *Native) UnlockGlobal(t idmap.ObjectType) {
	n.types[t].Unlock()
}

// Delay sleeps for ms milliseconds.
func (n *Native) Delay(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (n *Native) base(slot int) *softBase {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.bases[slot]
	if !ok {
		b = &softBase{stopped: true}
		n.bases[slot] = b
	}
	return b
}

// Lock takes the per-timebase lock of slot.
func (n *Native) Lock(slot int) {
	n.base(slot).lock.Lock()
}

// Unlock releases the per-timebase lock of slot.
func (n *Native) Unlock(slot int) {
	n.base(slot).lock.Unlock()
}

// Create prepares the tick source for a new timebase in slot. Externally
// synchronized timebases get no software timer.
func (n *Native) Create(slot int, external bool) error {
	b := n.base(slot)
	b.ctl.Lock()
	defer b.ctl.Unlock()

	b.disarm()
	b.tick = make(chan struct{}, 1)
	b.stop = make(chan struct{})
	b.stopped = false
	b.start, b.interval = 0, 0
	b.reset = false
	b.external = external
	return nil
}

// Set arms the software timer to fire first after start microseconds and
// then every interval microseconds. A zero start disarms it; a zero
// interval makes it one-shot.
func (n *Native) Set(slot int, start, interval uint32) error {
	b := n.base(slot)
	b.ctl.Lock()
	defer b.ctl.Unlock()

	b.reset = true
	if b.external || b.stopped {
		return nil
	}

	b.disarm()
	b.start, b.interval = start, interval
	select {
	case <-b.tick:
	default:
	}
	if start == 0 {
		return nil
	}

	epoch := b.epoch
	b.timer = time.AfterFunc(micros(start), func() { b.fire(epoch) })
	Logger().Debug("software timebase armed",
		zap.Int("slot", slot),
		zap.Uint32("start_us", start),
		zap.Uint32("interval_us", interval))
	return nil
}

// Delete stops the tick source of slot and wakes its service loop.
func (n *Native) Delete(slot int) error {
	b := n.base(slot)
	b.ctl.Lock()
	defer b.ctl.Unlock()

	b.disarm()
	if !b.stopped {
		b.stopped = true
		close(b.stop)
	}
	return nil
}

// Sync blocks until the next software tick of slot and returns the elapsed
// time in microseconds: the start time for the first tick after Set, the
// interval afterwards. It returns 0 once the timebase is deleted.
func (n *Native) Sync(slot int) uint32 {
	b := n.base(slot)
	b.ctl.Lock()
	tick, stop := b.tick, b.stop
	b.ctl.Unlock()

	if tick == nil {
		return 0
	}

	select {
	case <-tick:
	case <-stop:
		return 0
	}

	b.ctl.Lock()
	defer b.ctl.Unlock()
	if b.reset {
		b.reset = false
		return b.start
	}
	return b.interval
}

// Start runs loop on its own goroutine.
func (n *Native) Start(slot int, loop func()) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		loop()
	}()
}

// Close stops every software tick source. Service loops exit once their
// timebases are deleted.
func (n *Native) Close() {
	n.mu.Lock()
	bases := make([]*softBase, 0, len(n.bases))
	for _, b := range n.bases {
		bases = append(bases, b)
	}
	n.mu.Unlock()

	for _, b := range bases {
		b.ctl.Lock()
		b.disarm()
		b.ctl.Unlock()
	}
}

// Wait blocks until every goroutine started through Start has returned.
func (n *Native) Wait() {
	n.wg.Wait()
}

// disarm stops the timer and invalidates pending fires. ctl must be held.
func (b *softBase) disarm() {
	b.epoch++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *softBase) fire(epoch uint64) {
	b.ctl.Lock()
	defer b.ctl.Unlock()
	if epoch != b.epoch || b.stopped {
		return
	}
	select {
	case b.tick <- struct{}{}:
	default:
	}
	if b.interval > 0 && b.timer != nil {
		b.timer.Reset(micros(b.interval))
	}
}

func micros(us uint32) time.Duration {
	return time.Duration(us) * time.Microsecond
}
