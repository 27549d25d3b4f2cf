package timebase

import (
	"context"
	"math"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
)

// MaxTimerValue bounds start and interval values of TimerSet.
const MaxTimerValue = math.MaxUint32 / 2

// flagDedicated marks a timer whose timebase was created for it.
const flagDedicated uint32 = 1 << 0

// Callback is invoked by a timebase service loop when a timer expires.
// ctx identifies the calling timebase; timer API calls made with it fail.
type Callback func(ctx context.Context, id idmap.ID, arg any)

// TimerCallback is the argument-less callback used by TimerCreate.
type TimerCallback func(ctx context.Context, id idmap.ID)

type callbackRecord struct {
	link
	callback   Callback
	arg        any
	tbHold     *idmap.Token
	timebase   int
	timebaseID idmap.ID
	wait       int32
	interval   int32
	backlog    uint32
	flags      uint32
}

// TimerInfo describes a timer.
type TimerInfo struct {
	Name     string
	Creator  idmap.ID
	TimeBase idmap.ID
	Start    int32
	Interval int32
	Backlog  uint32
	Accuracy uint32
}

// TimerAdd attaches a timer callback named name to an existing timebase.
// The timer stays idle until TimerSet arms it.
func (m *Manager) TimerAdd(ctx context.Context, name string, timebase idmap.ID, cb Callback, arg any) (idmap.ID, error) {
	return m.add(ctx, name, timebase, cb, arg, 0)
}

func (m *Manager) add(ctx context.Context, name string, timebase idmap.ID, cb Callback, arg any, flags uint32) (idmap.ID, error) {
	if err := m.reg.CheckName(errors.PhaseTimer, name); err != nil {
		return idmap.Undefined, err
	}
	if cb == nil {
		return idmap.Undefined, errors.InvalidArgs(errors.PhaseTimer, "callback is nil")
	}
	if err := checkContext(ctx, errors.PhaseTimer); err != nil {
		return idmap.Undefined, err
	}

	// The hold keeps the timebase alive until the timer is deleted.
	tbHold, err := m.reg.GetByID(idmap.LockRefcount, idmap.TypeTimeBase, timebase)
	if err != nil {
		return idmap.Undefined, err
	}

	tok, err := m.reg.AllocateNew(ctx, idmap.TypeTimeCB, name)
	if err != nil {
		tbHold.Release()
		return idmap.Undefined, err
	}

	slot := tbHold.Index
	c := m.cbs.Get(tok)
	*c = callbackRecord{
		callback:   cb,
		arg:        arg,
		tbHold:     tbHold,
		timebase:   slot,
		timebaseID: timebase,
		flags:      flags,
	}
	m.ring.detach(tok.Index)

	m.port.Lock(slot)
	b := m.bases.At(slot)
	if first, err := m.reg.ToArrayIndex(idmap.TypeTimeCB, b.firstCB); err == nil {
		m.ring.insertBefore(tok.Index, first)
	}
	b.firstCB = tok.ID
	m.port.Unlock(slot)

	return m.reg.FinalizeNew(tok, nil)
}

// TimerCreate creates a timer driven by its own software timebase of the
// same name and returns the timer handle with the tick accuracy in
// microseconds.
func (m *Manager) TimerCreate(ctx context.Context, name string, cb TimerCallback) (idmap.ID, uint32, error) {
	if cb == nil {
		return idmap.Undefined, 0, errors.InvalidArgs(errors.PhaseTimer, "callback is nil")
	}

	tb, err := m.TimeBaseCreate(ctx, name, nil)
	if err != nil {
		return idmap.Undefined, 0, err
	}

	wrapped := func(ctx context.Context, id idmap.ID, _ any) { cb(ctx, id) }
	id, err := m.add(ctx, name, tb, wrapped, nil, flagDedicated)
	if err != nil {
		_ = m.TimeBaseDelete(ctx, tb)
		return idmap.Undefined, 0, err
	}
	return id, m.microsPerTick, nil
}

// TimerSet arms a timer to fire after start ticks and then every interval
// ticks. interval 0 makes a one-shot timer.
//
// For a timer made by TimerCreate the dedicated timebase is reprogrammed
// afterwards, outside the timer lock. A tick landing in between may fire
// the old schedule once more.
func (m *Manager) TimerSet(ctx context.Context, id idmap.ID, start, interval uint32) error {
	if start >= MaxTimerValue || interval >= MaxTimerValue {
		return errors.InvalidArgs(errors.PhaseTimer, "start %d and interval %d must be below %d", start, interval, uint32(MaxTimerValue))
	}
	if start == 0 && interval == 0 {
		return errors.New(errors.PhaseTimer, errors.KindError).
			Op("TimerSet").
			Detail("start and interval are both zero").
			Build()
	}
	if err := checkContext(ctx, errors.PhaseTimer); err != nil {
		return err
	}

	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeTimeCB, id)
	if err != nil {
		return err
	}

	c := m.cbs.Get(tok)
	dedicated := idmap.Undefined
	m.port.Lock(c.timebase)
	if c.flags&flagDedicated != 0 {
		dedicated = c.timebaseID
	}
	c.wait = int32(start)
	c.interval = int32(interval)
	m.port.Unlock(c.timebase)
	tok.Release()

	if dedicated.Defined() {
		return m.TimeBaseSet(ctx, dedicated, start, interval)
	}
	return nil
}

// TimerDelete detaches and frees a timer. A dedicated timebase is deleted
// with it.
func (m *Manager) TimerDelete(ctx context.Context, id idmap.ID) error {
	if err := checkContext(ctx, errors.PhaseTimer); err != nil {
		return err
	}

	tok, err := m.reg.GetByID(idmap.LockExclusive, idmap.TypeTimeCB, id)
	if err != nil {
		return err
	}

	c := m.cbs.Get(tok)
	slot := c.timebase
	tbHold := c.tbHold
	dedicated := idmap.Undefined
	if c.flags&flagDedicated != 0 {
		dedicated = c.timebaseID
	}

	m.port.Lock(slot)
	b := m.bases.At(slot)
	next := m.ring.remove(tok.Index)
	if b.firstCB == id {
		b.firstCB = idmap.Undefined
		if next >= 0 {
			b.firstCB = m.reg.Record(idmap.TypeTimeCB, next).ActiveID()
		}
	}
	// Freeing the slot under the timebase lock keeps the service loop from
	// seeing a half-removed record.
	err = m.reg.FinalizeDelete(tok, nil)
	m.port.Unlock(slot)
	if err != nil {
		return err
	}

	tbHold.Release()
	if dedicated.Defined() {
		return m.TimeBaseDelete(ctx, dedicated)
	}
	return nil
}

// TimerGetIdByName looks up a timer by name.
func (m *Manager) TimerGetIdByName(ctx context.Context, name string) (idmap.ID, error) {
	if err := m.reg.CheckName(errors.PhaseTimer, name); err != nil {
		return idmap.Undefined, err
	}
	if err := checkContext(ctx, errors.PhaseTimer); err != nil {
		return idmap.Undefined, err
	}
	return m.reg.FindByName(idmap.TypeTimeCB, name)
}

// TimerGetInfo returns the configuration of a timer.
func (m *Manager) TimerGetInfo(ctx context.Context, id idmap.ID) (TimerInfo, error) {
	if err := checkContext(ctx, errors.PhaseTimer); err != nil {
		return TimerInfo{}, err
	}

	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeTimeCB, id)
	if err != nil {
		return TimerInfo{}, err
	}
	defer tok.Release()

	rec := tok.Record()
	c := m.cbs.Get(tok)

	m.port.Lock(c.timebase)
	defer m.port.Unlock(c.timebase)
	return TimerInfo{
		Name:     rec.Name(),
		Creator:  rec.Creator(),
		TimeBase: c.timebaseID,
		Start:    c.wait,
		Interval: c.interval,
		Backlog:  c.backlog,
		Accuracy: m.bases.At(c.timebase).accuracy,
	}, nil
}
