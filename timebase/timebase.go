package timebase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
)

// MaxTimeBaseValue bounds start and interval values of TimeBaseSet.
const MaxTimeBaseValue = 1_000_000_000

// DefaultMicroSecPerTick is the accuracy reported for software timebases.
const DefaultMicroSecPerTick = 10_000

// Config tunes the timebase engine.
type Config struct {
	// MicroSecPerTick is the accuracy of software timebases and timers.
	// 0 means DefaultMicroSecPerTick.
	MicroSecPerTick uint32
}

// baseRecord is the timebase extension. freerun is written by the service
// loop and read without the timebase lock, so it is accessed atomically.
type baseRecord struct {
	sync            SyncFunc
	stop            context.CancelFunc
	firstCB         idmap.ID
	freerun         uint32
	accuracy        uint32
	nominalStart    uint32
	nominalInterval uint32
	external        bool
}

// Info describes a timebase.
type Info struct {
	Name            string
	Creator         idmap.ID
	NominalInterval uint32
	FreeRun         uint32
	Accuracy        uint32
}

// Manager owns the timebase and timer callback records of one registry.
type Manager struct {
	reg           *idmap.Registry
	port          Port
	bases         *idmap.Table[baseRecord]
	cbs           *idmap.Table[callbackRecord]
	ring          ring
	observers     []Observer
	obsMu         sync.RWMutex
	microsPerTick uint32
}

// New creates a timebase manager with the default configuration.
func New(reg *idmap.Registry, port Port) *Manager {
	return NewWithConfig(reg, port, nil)
}

// NewWithConfig creates a timebase manager.
func NewWithConfig(reg *idmap.Registry, port Port, cfg *Config) *Manager {
	m := &Manager{
		reg:           reg,
		port:          port,
		bases:         idmap.NewTable[baseRecord](reg, idmap.TypeTimeBase),
		cbs:           idmap.NewTable[callbackRecord](reg, idmap.TypeTimeCB),
		microsPerTick: DefaultMicroSecPerTick,
	}
	if cfg != nil && cfg.MicroSecPerTick > 0 {
		m.microsPerTick = cfg.MicroSecPerTick
	}
	m.ring = ring{cbs: m.cbs}
	return m
}

// MicroSecPerTick returns the configured software tick accuracy.
func (m *Manager) MicroSecPerTick() uint32 {
	return m.microsPerTick
}

// checkContext rejects calls made from a timebase service loop.
func checkContext(ctx context.Context, phase errors.Phase) error {
	if idmap.SelfFrom(ctx).Type() == idmap.TypeTimeBase {
		return errors.IncorrectObjState(phase, "timer API called from a timebase callback")
	}
	return nil
}

// TimeBaseCreate creates a timebase named name. A nil sync selects a
// software tick source; otherwise sync is called by the service loop to
// wait for each external tick. The context passed to sync is cancelled
// when the timebase is deleted.
func (m *Manager) TimeBaseCreate(ctx context.Context, name string, sync SyncFunc) (idmap.ID, error) {
	if err := m.reg.CheckName(errors.PhaseTimeBase, name); err != nil {
		return idmap.Undefined, err
	}
	if err := checkContext(ctx, errors.PhaseTimeBase); err != nil {
		return idmap.Undefined, err
	}

	tok, err := m.reg.AllocateNew(ctx, idmap.TypeTimeBase, name)
	if err != nil {
		return idmap.Undefined, err
	}

	slot, id := tok.Index, tok.ID
	loopCtx, stop := context.WithCancel(idmap.WithSelf(context.Background(), id))
	b := m.bases.Get(tok)
	*b = baseRecord{sync: sync, stop: stop, external: sync != nil}
	if sync == nil {
		b.accuracy = m.microsPerTick
		b.sync = func(context.Context, idmap.ID) uint32 { return m.port.Sync(slot) }
	}

	status := m.port.Create(slot, b.external)
	if status == nil {
		// The loop blocks on the type lock until FinalizeNew releases it.
		m.port.Start(slot, func() { m.serviceLoop(loopCtx, slot, id) })
	}
	newID, err := m.reg.FinalizeNew(tok, status)
	if err != nil {
		stop()
	}
	return newID, err
}

// TimeBaseSet configures the start and interval of a timebase.
func (m *Manager) TimeBaseSet(ctx context.Context, id idmap.ID, start, interval uint32) error {
	if start >= MaxTimeBaseValue || interval >= MaxTimeBaseValue {
		return errors.New(errors.PhaseTimeBase, errors.KindInvalidArgs).
			Op("TimeBaseSet").
			Detail("start %d and interval %d must be below %d", start, interval, MaxTimeBaseValue).
			Build()
	}
	if err := checkContext(ctx, errors.PhaseTimeBase); err != nil {
		return err
	}

	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeTimeBase, id)
	if err != nil {
		return err
	}
	defer tok.Release()

	m.port.Lock(tok.Index)
	defer m.port.Unlock(tok.Index)

	if err := m.port.Set(tok.Index, start, interval); err != nil {
		return err
	}
	b := m.bases.Get(tok)
	b.nominalStart = start
	b.nominalInterval = interval
	return nil
}

// TimeBaseDelete deletes a timebase and stops its service loop. Every
// attached timer holds a reference, so deletion fails with ObjectInUse
// until they are gone.
func (m *Manager) TimeBaseDelete(ctx context.Context, id idmap.ID) error {
	if err := checkContext(ctx, errors.PhaseTimeBase); err != nil {
		return err
	}

	tok, err := m.reg.GetByID(idmap.LockExclusive, idmap.TypeTimeBase, id)
	if err != nil {
		return err
	}

	// Holding the timebase lock across delete and finalize means the woken
	// service loop sees the slot already freed.
	slot := tok.Index
	m.port.Lock(slot)
	defer m.port.Unlock(slot)

	stop := m.bases.Get(tok).stop
	if err := m.reg.FinalizeDelete(tok, m.port.Delete(slot)); err != nil {
		return err
	}
	// Wakes an external sync that is still waiting for its source.
	if stop != nil {
		stop()
	}
	return nil
}

// TimeBaseGetIdByName looks up a timebase by name.
func (m *Manager) TimeBaseGetIdByName(ctx context.Context, name string) (idmap.ID, error) {
	if err := m.reg.CheckName(errors.PhaseTimeBase, name); err != nil {
		return idmap.Undefined, err
	}
	if err := checkContext(ctx, errors.PhaseTimeBase); err != nil {
		return idmap.Undefined, err
	}
	return m.reg.FindByName(idmap.TypeTimeBase, name)
}

// TimeBaseGetInfo returns the state of a timebase.
func (m *Manager) TimeBaseGetInfo(ctx context.Context, id idmap.ID) (Info, error) {
	if err := checkContext(ctx, errors.PhaseTimeBase); err != nil {
		return Info{}, err
	}

	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeTimeBase, id)
	if err != nil {
		return Info{}, err
	}
	defer tok.Release()

	rec := tok.Record()
	b := m.bases.Get(tok)

	m.port.Lock(tok.Index)
	defer m.port.Unlock(tok.Index)
	return Info{
		Name:            rec.Name(),
		Creator:         rec.Creator(),
		NominalInterval: b.nominalInterval,
		FreeRun:         atomic.LoadUint32(&b.freerun),
		Accuracy:        b.accuracy,
	}, nil
}

// TimeBaseGetFreeRun returns the free-running tick count of a timebase.
// It takes no timebase lock, so any callback may read any timebase.
func (m *Manager) TimeBaseGetFreeRun(_ context.Context, id idmap.ID) (uint32, error) {
	tok, err := m.reg.GetByID(idmap.LockNone, idmap.TypeTimeBase, id)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&m.bases.Get(tok).freerun), nil
}
