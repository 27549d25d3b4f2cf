package sem

import (
	"context"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
)

// BinSemCreate creates a binary semaphore. Any nonzero initial value
// starts it full.
func (m *Manager) BinSemCreate(ctx context.Context, name string, initial uint32) (idmap.ID, error) {
	if err := m.reg.CheckName(errors.PhaseBinSem, name); err != nil {
		return idmap.Undefined, err
	}
	if initial > 1 {
		initial = 1
	}
	tok, err := m.reg.AllocateNew(ctx, idmap.TypeBinSem, name)
	if err != nil {
		return idmap.Undefined, err
	}
	m.binsem.Get(tok).core = newSemCore(initial, 1)
	return m.reg.FinalizeNew(tok, nil)
}

// BinSemDelete deletes a binary semaphore.
func (m *Manager) BinSemDelete(ctx context.Context, id idmap.ID) error {
	tok, err := m.reg.GetByID(idmap.LockExclusive, idmap.TypeBinSem, id)
	if err != nil {
		return err
	}
	return m.reg.FinalizeDelete(tok, nil)
}

func (m *Manager) binCore(id idmap.ID) (*semCore, error) {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeBinSem, id)
	if err != nil {
		return nil, err
	}
	defer tok.Release()
	return m.binsem.Get(tok).core, nil
}

// BinSemGive fills the semaphore, releasing one waiter.
func (m *Manager) BinSemGive(ctx context.Context, id idmap.ID) error {
	core, err := m.binCore(id)
	if err != nil {
		return err
	}
	return core.give()
}

// BinSemFlush releases every waiter without filling the semaphore.
func (m *Manager) BinSemFlush(ctx context.Context, id idmap.ID) error {
	core, err := m.binCore(id)
	if err != nil {
		return err
	}
	core.flushAll()
	return nil
}

// BinSemTake empties the semaphore, waiting until it is given or flushed.
func (m *Manager) BinSemTake(ctx context.Context, id idmap.ID) error {
	return m.binWait(ctx, id, Pend)
}

// BinSemTimedWait is BinSemTake bounded by ms milliseconds.
func (m *Manager) BinSemTimedWait(ctx context.Context, id idmap.ID, ms uint32) error {
	if ms > MaxCountValue {
		return errors.InvalidArgs(errors.PhaseBinSem, "timeout %d ms out of range", ms)
	}
	return m.binWait(ctx, id, int32(ms))
}

func (m *Manager) binWait(ctx context.Context, id idmap.ID, timeoutMs int32) error {
	tok, err := m.reg.GetByID(idmap.LockRefcount, idmap.TypeBinSem, id)
	if err != nil {
		return err
	}
	defer tok.Release()
	return m.binsem.Get(tok).core.take(ctx, errors.PhaseBinSem, timeoutMs)
}

// BinSemGetIdByName looks up a binary semaphore by name.
func (m *Manager) BinSemGetIdByName(ctx context.Context, name string) (idmap.ID, error) {
	return m.reg.FindByName(idmap.TypeBinSem, name)
}

// BinSemGetInfo returns the state of a binary semaphore.
func (m *Manager) BinSemGetInfo(ctx context.Context, id idmap.ID) (Info, error) {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeBinSem, id)
	if err != nil {
		return Info{}, err
	}
	defer tok.Release()
	rec := tok.Record()
	return Info{
		Name:    rec.Name(),
		Creator: rec.Creator(),
		Value:   m.binsem.Get(tok).core.current(),
	}, nil
}
