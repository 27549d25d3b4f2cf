package osal

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
)

func TestOS_InitTwice(t *testing.T) {
	ctx := context.Background()
	o := New(ctx)
	defer o.Close(ctx)

	if err := o.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := o.Init(ctx); !errors.Is(err, errors.ErrError) {
		t.Fatalf("second Init: expected Error, got %v", err)
	}
}

func TestOS_DeleteAllObjects(t *testing.T) {
	ctx := context.Background()
	o := NewWithConfig(ctx, &Config{Logger: zap.NewNop()})
	if err := o.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := o.Queues().Create(ctx, "Q", 4, 16); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if _, err := o.Sems().BinSemCreate(ctx, "B", 1); err != nil {
		t.Fatalf("binsem: %v", err)
	}
	if _, err := o.Sems().MutexCreate(ctx, "M"); err != nil {
		t.Fatalf("mutex: %v", err)
	}
	if _, err := o.Tasks().Create(ctx, "T", func(ctx context.Context) { <-ctx.Done() }, 0, 10, 0); err != nil {
		t.Fatalf("task: %v", err)
	}

	// A timebase with a timer attached needs two passes.
	tb, err := o.TimeBases().TimeBaseCreate(ctx, "TB", nil)
	if err != nil {
		t.Fatalf("timebase: %v", err)
	}
	if _, err := o.TimeBases().TimerAdd(ctx, "TCB", tb, func(context.Context, idmap.ID, any) {}, nil); err != nil {
		t.Fatalf("timer: %v", err)
	}
	if _, _, err := o.TimeBases().TimerCreate(ctx, "DED", func(context.Context, idmap.ID) {}); err != nil {
		t.Fatalf("dedicated timer: %v", err)
	}

	count := 0
	o.ForEachObject(idmap.Undefined, func(idmap.ID) { count++ })
	if count != 8 {
		t.Fatalf("expected 8 objects, found %d", count)
	}

	o.Shutdown(ctx)
	if _, err := o.Queues().GetIdByName(ctx, "Q"); !errors.Is(err, errors.ErrIncorrectObjState) {
		t.Fatalf("lookup during shutdown: expected IncorrectObjState, got %v", err)
	}

	if err := o.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if snap := o.Registry().Snapshot(); len(snap) != 0 {
		t.Fatalf("objects left after Close: %+v", snap)
	}
}

func TestOS_IdleLoop(t *testing.T) {
	ctx := context.Background()
	o := New(ctx)
	defer o.Close(ctx)

	done := make(chan error, 1)
	go func() { done <- o.IdleLoop(ctx) }()

	select {
	case <-done:
		t.Fatal("IdleLoop returned before shutdown")
	case <-time.After(10 * time.Millisecond):
	}

	o.Shutdown(ctx)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("IdleLoop returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("IdleLoop did not return after shutdown")
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	idle := New(ctx)
	defer idle.Close(ctx)
	if err := idle.IdleLoop(cctx); err != context.Canceled {
		t.Fatalf("IdleLoop with cancelled ctx = %v", err)
	}
}

func TestOS_TickConversions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		tps    uint32
		ms     uint32
		ticks  uint32
		micros uint32
	}{
		{100, 10, 1, 10_000},
		{100, 15, 2, 10_000},
		{100, 0, 0, 10_000},
		{1000, 7, 7, 1000},
		{0, 1000, 100, 10_000},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%dms", tt.tps, tt.ms), func(t *testing.T) {
			o := NewWithConfig(ctx, &Config{TicksPerSecond: tt.tps})
			defer o.Close(ctx)
			if got := o.Milli2Ticks(tt.ms); got != tt.ticks {
				t.Fatalf("Milli2Ticks(%d) = %d, want %d", tt.ms, got, tt.ticks)
			}
			if got := o.Tick2Micros(); got != tt.micros {
				t.Fatalf("Tick2Micros = %d, want %d", got, tt.micros)
			}
		})
	}

	o := NewWithConfig(ctx, &Config{TicksPerSecond: 1000})
	defer o.Close(ctx)
	_, accuracy, err := o.TimeBases().TimerCreate(ctx, "ACC", func(context.Context, idmap.ID) {})
	if err != nil {
		t.Fatalf("TimerCreate failed: %v", err)
	}
	if accuracy != 1000 {
		t.Fatalf("timer accuracy = %d, want the tick length 1000", accuracy)
	}
}

func TestGetErrorName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "OS_SUCCESS"},
		{errors.InvalidID(errors.PhaseIDMap, 7), "OS_ERR_INVALID_ID"},
		{errors.NameTaken(errors.PhaseQueue, "Q"), "OS_ERR_NAME_TAKEN"},
		{errors.ObjectInUse(errors.PhaseTimeBase, 1), "OS_ERR_OBJECT_IN_USE"},
		{fmt.Errorf("foreign"), "OS_ERROR"},
	}
	for _, tt := range tests {
		if got := GetErrorName(tt.err); got != tt.want {
			t.Errorf("GetErrorName(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestOS_MetricsWiring(t *testing.T) {
	ctx := context.Background()
	r := prometheus.NewRegistry()
	o := NewWithConfig(ctx, &Config{Metrics: r})
	defer o.Close(ctx)
	if err := o.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	var fired atomic.Int32
	tm, _, err := o.TimeBases().TimerCreate(ctx, "METER", func(context.Context, idmap.ID) { fired.Add(1) })
	if err != nil {
		t.Fatalf("TimerCreate failed: %v", err)
	}
	if err := o.TimeBases().TimerSet(ctx, tm, 1000, 1000); err != nil {
		t.Fatalf("TimerSet failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fired.Load() < 3 {
		t.Fatalf("timer fired %d times", fired.Load())
	}

	n, err := testutil.GatherAndCount(r, "osal_objects_allocated_total", "osal_timebase_callbacks_total")
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	// One allocation series each for timebase and timecb, plus the callback series.
	if n != 3 {
		t.Fatalf("expected 3 series, got %d", n)
	}
}
