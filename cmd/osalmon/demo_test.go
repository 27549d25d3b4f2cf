package main

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/osal"
	"github.com/wippyai/osal/idmap"
)

func TestDemo_Runs(t *testing.T) {
	ctx := context.Background()
	o := osal.New(ctx)
	defer o.Close(ctx)

	d := newDemo(o, zap.NewNop())
	if err := d.start(ctx, 2, 1000); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	slot0, err := o.TimeBases().TimerGetIdByName(ctx, "SLOT_0")
	if err != nil {
		t.Fatalf("SLOT_0 lookup: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		drained, _ := d.Counters()
		if d.Fires(slot0) >= 5 && drained >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if d.Fires(slot0) < 5 {
		t.Fatalf("SLOT_0 fired %d times", d.Fires(slot0))
	}
	if drained, _ := d.Counters(); drained < 2 {
		t.Fatalf("telemetry drained %d messages", drained)
	}

	types := map[idmap.ObjectType]int{}
	for _, s := range o.Registry().Snapshot() {
		types[s.Type]++
	}
	// SCHED plus the dedicated HK timebase; two slots plus HK.
	if types[idmap.TypeTimeBase] != 2 || types[idmap.TypeTimeCB] != 3 {
		t.Fatalf("unexpected object mix: %v", types)
	}
	if types[idmap.TypeQueue] != 1 || types[idmap.TypeTask] != 1 {
		t.Fatalf("unexpected object mix: %v", types)
	}
}

func TestMonitor_AddAndDelete(t *testing.T) {
	ctx := context.Background()
	o := osal.New(ctx)
	defer o.Close(ctx)

	d := newDemo(o, zap.NewNop())
	if err := d.start(ctx, 1, 1000); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	m := newMonitorModel(o, d)
	before := len(m.ids)

	m.addTimer("bogus")
	if m.err == nil {
		t.Fatal("expected error for a bogus period")
	}

	m.addTimer("5")
	if m.err != nil {
		t.Fatalf("addTimer failed: %v", m.err)
	}
	m.refresh()
	if len(m.ids) != before+1 {
		t.Fatalf("expected %d rows, got %d", before+1, len(m.ids))
	}

	id, err := o.TimeBases().TimerGetIdByName(ctx, "USER_1")
	if err != nil {
		t.Fatalf("USER_1 lookup: %v", err)
	}
	for i, rid := range m.ids {
		if rid == id {
			m.table.SetCursor(i)
		}
	}
	m.deleteSelected()
	if m.err != nil {
		t.Fatalf("deleteSelected failed: %v", m.err)
	}
	if _, err := o.TimeBases().TimerGetIdByName(ctx, "USER_1"); err == nil {
		t.Fatal("USER_1 still registered after delete")
	}
}
