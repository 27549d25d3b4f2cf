package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/osal"
	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
	"github.com/wippyai/osal/queue"
)

const telemetryMsgSize = 8

// demo is a small flight-software style workload: scheduler slots on a
// shared timebase, a housekeeping timer feeding a telemetry queue and a
// task draining it.
type demo struct {
	os  *osal.OS
	log *zap.Logger

	mu      sync.Mutex
	fires   map[idmap.ID]uint64
	dropped uint64
	drained uint64

	sched idmap.ID
	hk    idmap.ID
	tlm   idmap.ID
}

func newDemo(o *osal.OS, log *zap.Logger) *demo {
	return &demo{os: o, log: log, fires: make(map[idmap.ID]uint64)}
}

func (d *demo) count(id idmap.ID) {
	d.mu.Lock()
	d.fires[id]++
	d.mu.Unlock()
}

// Fires returns how often the timer id has called back.
func (d *demo) Fires(id idmap.ID) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fires[id]
}

// Counters returns the telemetry totals.
func (d *demo) Counters() (drained, dropped uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drained, d.dropped
}

func (d *demo) start(ctx context.Context, slots int, periodUs uint32) error {
	tbs := d.os.TimeBases()

	sched, err := tbs.TimeBaseCreate(ctx, "SCHED", nil)
	if err != nil {
		return fmt.Errorf("create scheduler timebase: %w", err)
	}
	d.sched = sched

	for i := 0; i < slots; i++ {
		period := periodUs * uint32(i+1)
		id, err := tbs.TimerAdd(ctx, fmt.Sprintf("SLOT_%d", i), sched, func(ctx context.Context, id idmap.ID, _ any) {
			d.count(id)
		}, nil)
		if err != nil {
			return fmt.Errorf("add slot %d: %w", i, err)
		}
		if err := tbs.TimerSet(ctx, id, period, period); err != nil {
			return fmt.Errorf("arm slot %d: %w", i, err)
		}
	}
	if err := tbs.TimeBaseSet(ctx, sched, periodUs, periodUs); err != nil {
		return fmt.Errorf("start scheduler timebase: %w", err)
	}

	tlm, err := d.os.Queues().Create(ctx, "TLM", queue.MaxDepth, telemetryMsgSize)
	if err != nil {
		return fmt.Errorf("create telemetry queue: %w", err)
	}
	d.tlm = tlm

	if _, err := d.os.Tasks().Create(ctx, "TLM_SINK", d.drain, 0, 100, 0); err != nil {
		return fmt.Errorf("create telemetry task: %w", err)
	}

	var seq uint64
	hk, _, err := tbs.TimerCreate(ctx, "HK", func(ctx context.Context, id idmap.ID) {
		d.count(id)
		seq++
		msg := binary.LittleEndian.AppendUint64(nil, seq)
		if err := d.os.Queues().Put(ctx, tlm, msg); err != nil {
			if errors.Is(err, errors.ErrQueueFull) {
				d.mu.Lock()
				d.dropped++
				d.mu.Unlock()
				return
			}
			d.log.Warn("telemetry put failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("create housekeeping timer: %w", err)
	}
	d.hk = hk
	hkPeriod := periodUs * 10
	if err := tbs.TimerSet(ctx, hk, hkPeriod, hkPeriod); err != nil {
		return fmt.Errorf("arm housekeeping timer: %w", err)
	}

	d.log.Info("demo started",
		zap.Int("slots", slots),
		zap.Uint32("period_us", periodUs))
	return nil
}

func (d *demo) drain(ctx context.Context) {
	buf := make([]byte, telemetryMsgSize)
	for {
		n, err := d.os.Queues().Get(ctx, d.tlm, buf, queue.Pend)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			d.log.Warn("telemetry get failed", zap.Error(err))
			if d.os.Tasks().Delay(ctx, 10) != nil {
				return
			}
			continue
		}
		if n == telemetryMsgSize {
			d.mu.Lock()
			d.drained++
			d.mu.Unlock()
		}
	}
}
