// Package task runs OSAL tasks as goroutines registered in the object
// registry.
//
// A task's context carries its own handle, so GetId, Exit and
// InstallDeleteHandler work from inside the entry function. Go cannot stop
// a goroutine from outside; Delete cancels the task context and frees the
// handle, and the entry function is expected to return once ctx is done.
package task

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
	"go.uber.org/zap"
)

// MaxPriority is the numerically largest (lowest) task priority.
const MaxPriority = 255

// Entry is the body of a task.
type Entry func(ctx context.Context)

// DeleteHook runs after a task has been deleted.
type DeleteHook func()

type taskRecord struct {
	entry     Entry
	hook      DeleteHook
	cancel    context.CancelFunc
	stackSize uint32
	priority  uint32
	flags     uint32
}

// Info describes a task.
type Info struct {
	Name      string
	Creator   idmap.ID
	StackSize uint32
	Priority  uint32
}

// Manager owns the task records of a registry.
type Manager struct {
	reg   *idmap.Registry
	tasks *idmap.Table[taskRecord]
	wg    sync.WaitGroup
}

// New creates a task manager.
func New(reg *idmap.Registry) *Manager {
	return &Manager{
		reg:   reg,
		tasks: idmap.NewTable[taskRecord](reg, idmap.TypeTask),
	}
}

// Create starts a task named name running entry. stackSize and flags are
// recorded for GetInfo; Go sizes goroutine stacks itself.
func (m *Manager) Create(ctx context.Context, name string, entry Entry, stackSize, priority, flags uint32) (idmap.ID, error) {
	if priority > MaxPriority {
		return idmap.Undefined, errors.New(errors.PhaseTask, errors.KindInvalidPriority).
			Op("Create").
			Value(priority).
			Detail("priority %d exceeds %d", priority, MaxPriority).
			Build()
	}
	if entry == nil {
		return idmap.Undefined, errors.InvalidPointer(errors.PhaseTask, "entry")
	}
	if err := m.reg.CheckName(errors.PhaseTask, name); err != nil {
		return idmap.Undefined, err
	}

	tok, err := m.reg.AllocateNew(ctx, idmap.TypeTask, name)
	if err != nil {
		return idmap.Undefined, err
	}

	taskCtx, cancel := context.WithCancel(idmap.WithSelf(context.WithoutCancel(ctx), tok.ID))
	*m.tasks.Get(tok) = taskRecord{
		entry:     entry,
		cancel:    cancel,
		stackSize: stackSize,
		priority:  priority,
		flags:     flags,
	}

	id, err := m.reg.FinalizeNew(tok, nil)
	if err != nil {
		cancel()
		return idmap.Undefined, err
	}

	m.wg.Add(1)
	go m.run(taskCtx, id, entry)
	return id, nil
}

func (m *Manager) run(ctx context.Context, id idmap.ID, entry Entry) {
	defer m.wg.Done()
	defer m.exited(id)
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("task panicked", zap.Stringer("task", id), zap.Any("panic", r))
		}
	}()
	entry(ctx)
}

// exited frees the handle of a task whose goroutine finished on its own.
func (m *Manager) exited(id idmap.ID) {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeTask, id)
	if err != nil {
		return
	}
	m.tasks.Get(tok).cancel()
	_ = m.reg.FinalizeDelete(tok, nil)
}

// Delete cancels a task and frees its handle. An installed delete hook
// runs once the registry is unlocked.
func (m *Manager) Delete(ctx context.Context, id idmap.ID) error {
	tok, err := m.reg.GetByID(idmap.LockExclusive, idmap.TypeTask, id)
	if err != nil {
		return err
	}

	rec := m.tasks.Get(tok)
	hook := rec.hook
	rec.cancel()
	if err := m.reg.FinalizeDelete(tok, nil); err != nil {
		return err
	}

	if hook != nil {
		hook()
	}
	return nil
}

// Exit ends the calling task. It must be called from the task's own
// goroutine and does not return there; elsewhere it is a no-op.
func (m *Manager) Exit(ctx context.Context) {
	self := idmap.SelfFrom(ctx)
	if self.Type() != idmap.TypeTask {
		return
	}
	runtime.Goexit()
}

// Delay suspends the caller for ms milliseconds or until ctx is done.
func (m *Manager) Delay(ctx context.Context, ms uint32) error {
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.PhaseTask, errors.KindError, ctx.Err(), "delay interrupted")
	}
}

// SetPriority changes the recorded priority of a task.
func (m *Manager) SetPriority(ctx context.Context, id idmap.ID, priority uint32) error {
	if priority > MaxPriority {
		return errors.New(errors.PhaseTask, errors.KindInvalidPriority).
			Op("SetPriority").
			Value(priority).
			Build()
	}
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeTask, id)
	if err != nil {
		return err
	}
	defer tok.Release()
	m.tasks.Get(tok).priority = priority
	return nil
}

// GetId returns the handle of the calling task, or Undefined when ctx does
// not belong to a live task.
func (m *Manager) GetId(ctx context.Context) idmap.ID {
	self := idmap.SelfFrom(ctx)
	if self.Type() != idmap.TypeTask {
		return idmap.Undefined
	}
	if _, err := m.reg.GetByID(idmap.LockNone, idmap.TypeTask, self); err != nil {
		return idmap.Undefined
	}
	return self
}

// GetIdByName looks up a task by name.
func (m *Manager) GetIdByName(ctx context.Context, name string) (idmap.ID, error) {
	return m.reg.FindByName(idmap.TypeTask, name)
}

// GetInfo returns the properties of a task.
func (m *Manager) GetInfo(ctx context.Context, id idmap.ID) (Info, error) {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeTask, id)
	if err != nil {
		return Info{}, err
	}
	defer tok.Release()

	rec := tok.Record()
	t := m.tasks.Get(tok)
	return Info{
		Name:      rec.Name(),
		Creator:   rec.Creator(),
		StackSize: t.stackSize,
		Priority:  t.priority,
	}, nil
}

// InstallDeleteHandler sets the hook run when the calling task is deleted.
func (m *Manager) InstallDeleteHandler(ctx context.Context, hook DeleteHook) error {
	self := idmap.SelfFrom(ctx)
	if self.Type() != idmap.TypeTask {
		return errors.InvalidID(errors.PhaseTask, self)
	}
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeTask, self)
	if err != nil {
		return err
	}
	defer tok.Release()
	m.tasks.Get(tok).hook = hook
	return nil
}

// Wait blocks until every task goroutine has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
