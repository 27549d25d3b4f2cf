package timebase

import (
	"context"
	"sync/atomic"

	"github.com/wippyai/osal/idmap"
	"go.uber.org/zap"
)

// SpinLimit is the number of consecutive zero-tick syncs tolerated before
// the service loop starts yielding between syncs.
const SpinLimit = 4

// spinDelayMs is how long a spinning service loop yields per iteration.
const spinDelayMs = 10

// serviceLoop runs for the lifetime of the timebase id in slot. It exits
// once the slot no longer holds id. ctx identifies the timebase and is
// cancelled on delete.
func (m *Manager) serviceLoop(ctx context.Context, slot int, id idmap.ID) {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeTimeBase, id)
	if err != nil {
		Logger().Debug("timebase gone before service loop started",
			zap.Stringer("timebase", id), zap.Error(err))
		return
	}
	sync := m.bases.Get(tok).sync
	name := tok.Record().Name()
	tok.Release()

	spins := 0
	for {
		ticks := sync(ctx, id)

		switch {
		case ticks != 0:
			spins = 0
		case spins < SpinLimit:
			spins++
		default:
			m.port.Delay(spinDelayMs)
			if spins == SpinLimit {
				spins++
				Logger().Warn("timebase sync spin loop detected",
					zap.String("name", name), zap.Stringer("timebase", id))
				m.notify(Event{Type: EventSpin, Name: name, TimeBase: id})
			}
		}

		m.port.Lock(slot)
		if !m.reg.Live(idmap.TypeTimeBase, slot, id) {
			m.port.Unlock(slot)
			break
		}
		m.advance(ctx, slot, id, name, ticks)
		m.port.Unlock(slot)
	}

	Logger().Debug("timebase service loop exited", zap.Stringer("timebase", id))
}

// advance accounts ticks against the timebase in slot and runs every
// callback that expires. The timebase lock must be held.
func (m *Manager) advance(ctx context.Context, slot int, id idmap.ID, name string, ticks uint32) {
	b := m.bases.At(slot)
	atomic.AddUint32(&b.freerun, ticks)
	m.notify(Event{Type: EventTick, Name: name, TimeBase: id, Ticks: ticks})

	first, err := m.reg.ToArrayIndex(idmap.TypeTimeCB, b.firstCB)
	if err != nil {
		return
	}

	m.ring.walk(first, func(idx int) {
		cb := m.cbs.At(idx)
		pubID := m.reg.Record(idmap.TypeTimeCB, idx).ActiveID()

		saved := cb.wait
		cb.wait -= int32(ticks)
		for cb.wait <= 0 {
			cb.wait += cb.interval

			// Lag is bounded to one interval so short intervals cannot
			// accumulate an unbounded backlog. Idle and one-shot timers are
			// clamped too, so their wait never underflows, but only periodic
			// timers count a reset.
			if cb.wait < -cb.interval {
				cb.wait = -cb.interval
				if cb.interval > 0 {
					cb.backlog++
					m.notify(Event{Type: EventBacklog, Name: name, TimeBase: id, Timer: pubID})
				}
			}

			// Only a positive to non-positive transition fires, which
			// makes interval 0 a one-shot.
			if saved > 0 && cb.callback != nil {
				cb.callback(ctx, pubID, cb.arg)
				m.notify(Event{Type: EventCallback, Name: name, TimeBase: id, Timer: pubID, Ticks: ticks})
			}

			if cb.interval <= 0 {
				break
			}
		}
	})
}
