// Package queue implements OSAL message queues: fixed-depth FIFOs of
// copied messages up to a fixed size.
package queue

import (
	"context"
	"time"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
)

// Timeout values accepted by Get besides a positive millisecond count.
const (
	Pend  int32 = -1 // wait forever
	Check int32 = 0  // do not wait
)

// MaxDepth is the largest queue depth Create accepts.
const MaxDepth = 50

type queueRecord struct {
	ch      chan []byte
	depth   uint32
	msgSize uint32
}

// Info describes a queue.
type Info struct {
	Name    string
	Creator idmap.ID
	Depth   uint32
	MsgSize uint32
	Count   int
}

// Manager owns the queue records of a registry.
type Manager struct {
	reg    *idmap.Registry
	queues *idmap.Table[queueRecord]
}

// New creates a queue manager.
func New(reg *idmap.Registry) *Manager {
	return &Manager{
		reg:    reg,
		queues: idmap.NewTable[queueRecord](reg, idmap.TypeQueue),
	}
}

// Create makes a queue holding up to depth messages of at most msgSize
// bytes each.
func (m *Manager) Create(ctx context.Context, name string, depth, msgSize uint32) (idmap.ID, error) {
	if err := m.reg.CheckName(errors.PhaseQueue, name); err != nil {
		return idmap.Undefined, err
	}
	if depth == 0 || depth > MaxDepth || msgSize == 0 {
		return idmap.Undefined, errors.New(errors.PhaseQueue, errors.KindQueueInvalidSize).
			Op("Create").
			Detail("depth %d (max %d), message size %d", depth, MaxDepth, msgSize).
			Build()
	}

	tok, err := m.reg.AllocateNew(ctx, idmap.TypeQueue, name)
	if err != nil {
		return idmap.Undefined, err
	}
	*m.queues.Get(tok) = queueRecord{
		ch:      make(chan []byte, depth),
		depth:   depth,
		msgSize: msgSize,
	}
	return m.reg.FinalizeNew(tok, nil)
}

// Delete deletes a queue and drops any pending messages.
func (m *Manager) Delete(ctx context.Context, id idmap.ID) error {
	tok, err := m.reg.GetByID(idmap.LockExclusive, idmap.TypeQueue, id)
	if err != nil {
		return err
	}
	return m.reg.FinalizeDelete(tok, nil)
}

// Put appends a copy of data without blocking.
func (m *Manager) Put(ctx context.Context, id idmap.ID, data []byte) error {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeQueue, id)
	if err != nil {
		return err
	}
	q := *m.queues.Get(tok)
	tok.Release()

	if uint32(len(data)) > q.msgSize {
		return errors.New(errors.PhaseQueue, errors.KindQueueInvalidSize).
			Op("Put").
			Detail("message of %d bytes exceeds %d", len(data), q.msgSize).
			Build()
	}

	msg := append([]byte(nil), data...)
	select {
	case q.ch <- msg:
		return nil
	default:
		return errors.New(errors.PhaseQueue, errors.KindQueueFull).Op("Put").Value(id).Build()
	}
}

// Get copies the oldest message into buf and returns its length. buf must
// hold the queue's maximum message size. timeout is Pend, Check or a wait
// in milliseconds.
func (m *Manager) Get(ctx context.Context, id idmap.ID, buf []byte, timeout int32) (int, error) {
	tok, err := m.reg.GetByID(idmap.LockRefcount, idmap.TypeQueue, id)
	if err != nil {
		return 0, err
	}
	defer tok.Release()
	q := *m.queues.Get(tok)

	if uint32(len(buf)) < q.msgSize {
		return 0, errors.New(errors.PhaseQueue, errors.KindQueueInvalidSize).
			Op("Get").
			Detail("buffer of %d bytes is smaller than %d", len(buf), q.msgSize).
			Build()
	}

	var msg []byte
	switch {
	case timeout == Check:
		select {
		case msg = <-q.ch:
		default:
			return 0, errors.New(errors.PhaseQueue, errors.KindQueueEmpty).Op("Get").Value(id).Build()
		}
	case timeout < 0:
		select {
		case msg = <-q.ch:
		case <-ctx.Done():
			return 0, errors.Wrap(errors.PhaseQueue, errors.KindError, ctx.Err(), "wait abandoned")
		}
	default:
		t := time.NewTimer(time.Duration(timeout) * time.Millisecond)
		defer t.Stop()
		select {
		case msg = <-q.ch:
		case <-t.C:
			return 0, errors.New(errors.PhaseQueue, errors.KindQueueTimeout).
				Op("Get").
				Detail("no message within %d ms", timeout).
				Build()
		case <-ctx.Done():
			return 0, errors.Wrap(errors.PhaseQueue, errors.KindError, ctx.Err(), "wait abandoned")
		}
	}
	return copy(buf, msg), nil
}

// GetIdByName looks up a queue by name.
func (m *Manager) GetIdByName(ctx context.Context, name string) (idmap.ID, error) {
	return m.reg.FindByName(idmap.TypeQueue, name)
}

// GetInfo returns the properties of a queue.
func (m *Manager) GetInfo(ctx context.Context, id idmap.ID) (Info, error) {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeQueue, id)
	if err != nil {
		return Info{}, err
	}
	defer tok.Release()
	rec := tok.Record()
	q := m.queues.Get(tok)
	return Info{
		Name:    rec.Name(),
		Creator: rec.Creator(),
		Depth:   q.depth,
		MsgSize: q.msgSize,
		Count:   len(q.ch),
	}, nil
}
