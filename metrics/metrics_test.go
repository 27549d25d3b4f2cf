package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wippyai/osal/idmap"
	"github.com/wippyai/osal/port"
	"github.com/wippyai/osal/timebase"
)

func TestCollector_RegistryEvents(t *testing.T) {
	ctx := context.Background()
	reg := idmap.NewRegistry(port.New())
	c := New(prometheus.NewRegistry())
	reg.Subscribe(c)

	var ids []idmap.ID
	for _, name := range []string{"A", "B"} {
		tok, err := reg.AllocateNew(ctx, idmap.TypeQueue, name)
		if err != nil {
			t.Fatalf("AllocateNew failed: %v", err)
		}
		id, _ := reg.FinalizeNew(tok, nil)
		ids = append(ids, id)
	}

	tok, _ := reg.GetByID(idmap.LockExclusive, idmap.TypeQueue, ids[0])
	_ = reg.FinalizeDelete(tok, nil)

	queue := idmap.TypeQueue.String()
	if got := testutil.ToFloat64(c.allocated.WithLabelValues(queue)); got != 2 {
		t.Fatalf("allocated = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.deleted.WithLabelValues(queue)); got != 1 {
		t.Fatalf("deleted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.active.WithLabelValues(queue)); got != 1 {
		t.Fatalf("active = %v, want 1", got)
	}

	// A held refcount makes an exclusive request back off until it gives up.
	hold, _ := reg.GetByID(idmap.LockRefcount, idmap.TypeQueue, ids[1])
	if _, err := reg.GetByID(idmap.LockExclusive, idmap.TypeQueue, ids[1]); err == nil {
		t.Fatal("exclusive lock granted under a refcount hold")
	}
	hold.Release()

	if got := testutil.ToFloat64(c.contention.WithLabelValues(queue)); got != idmap.MaxLockAttempts {
		t.Fatalf("contention = %v, want %d", got, idmap.MaxLockAttempts)
	}
	if got := testutil.ToFloat64(c.inUse.WithLabelValues(queue)); got != 1 {
		t.Fatalf("in use = %v, want 1", got)
	}
}

func TestCollector_TimeBaseEvents(t *testing.T) {
	c := New(prometheus.NewRegistry())

	events := []timebase.Event{
		{Type: timebase.EventTick, Name: "TB", Ticks: 10},
		{Type: timebase.EventTick, Name: "TB", Ticks: 5},
		{Type: timebase.EventCallback, Name: "TB"},
		{Type: timebase.EventBacklog, Name: "TB"},
		{Type: timebase.EventSpin, Name: "TB"},
	}
	for _, e := range events {
		c.OnTimeBaseEvent(e)
	}

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"ticks", c.ticks.WithLabelValues("TB"), 15},
		{"callbacks", c.callbacks.WithLabelValues("TB"), 1},
		{"backlog", c.backlog.WithLabelValues("TB"), 1},
		{"spins", c.spins.WithLabelValues("TB"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	r := prometheus.NewRegistry()
	c := New(r)
	c.OnObjectEvent(idmap.Event{Type: idmap.EventAllocated, ObjType: idmap.TypeTask})

	srv := httptest.NewServer(Handler(r))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `osal_objects_allocated_total{type="`+idmap.TypeTask.String()+`"} 1`) {
		t.Fatalf("allocation counter missing from scrape:\n%s", body)
	}
}
