package sem

import (
	"context"
	"sync"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
)

// mutexCore is a recursive mutex owned by a task identity. Callers with no
// identity never recurse.
type mutexCore struct {
	mu    sync.Mutex
	wake  chan struct{}
	owner idmap.ID
	depth int
}

func newMutexCore() *mutexCore {
	return &mutexCore{wake: make(chan struct{})}
}

func (c *mutexCore) lock(ctx context.Context) error {
	self := idmap.SelfFrom(ctx)

	c.mu.Lock()
	for c.depth > 0 {
		if self.Defined() && c.owner == self {
			break
		}
		wake := c.wake
		c.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return errors.Wrap(errors.PhaseMutex, errors.KindSemFailure, ctx.Err(), "wait abandoned")
		}
		c.mu.Lock()
	}
	c.owner = self
	c.depth++
	c.mu.Unlock()
	return nil
}

func (c *mutexCore) unlock(ctx context.Context) error {
	self := idmap.SelfFrom(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth == 0 {
		return errors.New(errors.PhaseMutex, errors.KindSemFailure).Op("Give").Detail("mutex not held").Build()
	}
	if c.owner != self {
		return errors.New(errors.PhaseMutex, errors.KindSemFailure).
			Op("Give").
			Detail("held by %s", c.owner).
			Build()
	}
	c.depth--
	if c.depth == 0 {
		c.owner = idmap.Undefined
		close(c.wake)
		c.wake = make(chan struct{})
	}
	return nil
}

func (c *mutexCore) holder() idmap.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// MutexCreate creates an unlocked mutex.
func (m *Manager) MutexCreate(ctx context.Context, name string) (idmap.ID, error) {
	if err := m.reg.CheckName(errors.PhaseMutex, name); err != nil {
		return idmap.Undefined, err
	}
	tok, err := m.reg.AllocateNew(ctx, idmap.TypeMutex, name)
	if err != nil {
		return idmap.Undefined, err
	}
	m.mutexes.Get(tok).core = newMutexCore()
	return m.reg.FinalizeNew(tok, nil)
}

// MutexDelete deletes a mutex.
func (m *Manager) MutexDelete(ctx context.Context, id idmap.ID) error {
	tok, err := m.reg.GetByID(idmap.LockExclusive, idmap.TypeMutex, id)
	if err != nil {
		return err
	}
	return m.reg.FinalizeDelete(tok, nil)
}

// MutexTake locks the mutex, waiting until it is free or ctx is done.
// The owning task may take it again recursively.
func (m *Manager) MutexTake(ctx context.Context, id idmap.ID) error {
	tok, err := m.reg.GetByID(idmap.LockRefcount, idmap.TypeMutex, id)
	if err != nil {
		return err
	}
	defer tok.Release()
	return m.mutexes.Get(tok).core.lock(ctx)
}

// MutexGive releases one level of the caller's hold.
func (m *Manager) MutexGive(ctx context.Context, id idmap.ID) error {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeMutex, id)
	if err != nil {
		return err
	}
	core := m.mutexes.Get(tok).core
	tok.Release()
	return core.unlock(ctx)
}

// MutexGetIdByName looks up a mutex by name.
func (m *Manager) MutexGetIdByName(ctx context.Context, name string) (idmap.ID, error) {
	return m.reg.FindByName(idmap.TypeMutex, name)
}

// MutexGetInfo returns the state of a mutex.
func (m *Manager) MutexGetInfo(ctx context.Context, id idmap.ID) (MutexInfo, error) {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeMutex, id)
	if err != nil {
		return MutexInfo{}, err
	}
	defer tok.Release()
	rec := tok.Record()
	return MutexInfo{
		Name:    rec.Name(),
		Creator: rec.Creator(),
		Owner:   m.mutexes.Get(tok).core.holder(),
	}, nil
}
