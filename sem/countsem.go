package sem

import (
	"context"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
)

// CountSemCreate creates a counting semaphore holding initial.
func (m *Manager) CountSemCreate(ctx context.Context, name string, initial uint32) (idmap.ID, error) {
	if err := m.reg.CheckName(errors.PhaseCountSem, name); err != nil {
		return idmap.Undefined, err
	}
	if initial > MaxCountValue {
		return idmap.Undefined, errors.New(errors.PhaseCountSem, errors.KindInvalidSemValue).
			Op("CountSemCreate").
			Value(initial).
			Build()
	}
	tok, err := m.reg.AllocateNew(ctx, idmap.TypeCountSem, name)
	if err != nil {
		return idmap.Undefined, err
	}
	m.count.Get(tok).core = newSemCore(initial, MaxCountValue)
	return m.reg.FinalizeNew(tok, nil)
}

// CountSemDelete deletes a counting semaphore.
func (m *Manager) CountSemDelete(ctx context.Context, id idmap.ID) error {
	tok, err := m.reg.GetByID(idmap.LockExclusive, idmap.TypeCountSem, id)
	if err != nil {
		return err
	}
	return m.reg.FinalizeDelete(tok, nil)
}

// CountSemGive increments the count.
func (m *Manager) CountSemGive(ctx context.Context, id idmap.ID) error {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeCountSem, id)
	if err != nil {
		return err
	}
	core := m.count.Get(tok).core
	tok.Release()
	return core.give()
}

// CountSemTake decrements the count, waiting while it is zero.
func (m *Manager) CountSemTake(ctx context.Context, id idmap.ID) error {
	return m.countWait(ctx, id, Pend)
}

// CountSemTimedWait is CountSemTake bounded by ms milliseconds.
func (m *Manager) CountSemTimedWait(ctx context.Context, id idmap.ID, ms uint32) error {
	if ms > MaxCountValue {
		return errors.InvalidArgs(errors.PhaseCountSem, "timeout %d ms out of range", ms)
	}
	return m.countWait(ctx, id, int32(ms))
}

func (m *Manager) countWait(ctx context.Context, id idmap.ID, timeoutMs int32) error {
	tok, err := m.reg.GetByID(idmap.LockRefcount, idmap.TypeCountSem, id)
	if err != nil {
		return err
	}
	defer tok.Release()
	return m.count.Get(tok).core.take(ctx, errors.PhaseCountSem, timeoutMs)
}

// CountSemGetIdByName looks up a counting semaphore by name.
func (m *Manager) CountSemGetIdByName(ctx context.Context, name string) (idmap.ID, error) {
	return m.reg.FindByName(idmap.TypeCountSem, name)
}

// CountSemGetInfo returns the state of a counting semaphore.
func (m *Manager) CountSemGetInfo(ctx context.Context, id idmap.ID) (Info, error) {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeCountSem, id)
	if err != nil {
		return Info{}, err
	}
	defer tok.Release()
	rec := tok.Record()
	return Info{
		Name:    rec.Name(),
		Creator: rec.Creator(),
		Value:   m.count.Get(tok).core.current(),
	}, nil
}
