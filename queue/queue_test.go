package queue

import (
	"context"
	"testing"
	"time"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
	"github.com/wippyai/osal/port"
)

func newTestManager() *Manager {
	return New(idmap.NewRegistry(port.New()))
}

func TestQueue_PutGetFIFO(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	id, err := m.Create(ctx, "CMD_PIPE", 3, 8)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	src := []byte("abc")
	if err := m.Put(ctx, id, src); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	src[0] = 'X' // the queue holds its own copy
	if err := m.Put(ctx, id, []byte("defgh")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	info, err := m.GetInfo(ctx, id)
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.Count != 2 || info.Depth != 3 || info.MsgSize != 8 || info.Name != "CMD_PIPE" {
		t.Fatalf("unexpected info %+v", info)
	}

	buf := make([]byte, 8)
	for _, want := range []string{"abc", "defgh"} {
		n, err := m.Get(ctx, id, buf, Check)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got := string(buf[:n]); got != want {
			t.Fatalf("Get = %q, want %q", got, want)
		}
	}
}

func TestQueue_Errors(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	id, _ := m.Create(ctx, "SMALL", 1, 4)
	_ = m.Put(ctx, id, []byte("one"))

	tests := []struct {
		name string
		err  error
		want *errors.Error
	}{
		{"full", m.Put(ctx, id, []byte("two")), errors.ErrQueueFull},
		{"oversize", m.Put(ctx, id, []byte("toolong")), errors.ErrQueueInvalidSize},
		{"small buffer", func() error {
			_, err := m.Get(ctx, id, make([]byte, 2), Check)
			return err
		}(), errors.ErrQueueInvalidSize},
		{"zero depth", func() error {
			_, err := m.Create(ctx, "ZERO", 0, 4)
			return err
		}(), errors.ErrQueueInvalidSize},
		{"too deep", func() error {
			_, err := m.Create(ctx, "DEEP", MaxDepth+1, 4)
			return err
		}(), errors.ErrQueueInvalidSize},
		{"duplicate", func() error {
			_, err := m.Create(ctx, "SMALL", 1, 4)
			return err
		}(), errors.ErrNameTaken},
		{"stale id", m.Put(ctx, idmap.Undefined, nil), errors.ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, tt.err)
			}
		})
	}
}

func TestQueue_GetTimeouts(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	id, _ := m.Create(ctx, "WAIT", 2, 4)
	buf := make([]byte, 4)

	if _, err := m.Get(ctx, id, buf, Check); !errors.Is(err, errors.ErrQueueEmpty) {
		t.Fatalf("Check on empty queue: expected QueueEmpty, got %v", err)
	}

	start := time.Now()
	if _, err := m.Get(ctx, id, buf, 10); !errors.Is(err, errors.ErrQueueTimeout) {
		t.Fatalf("timed get: expected QueueTimeout, got %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("timed get returned early")
	}

	done := make(chan int, 1)
	go func() {
		n, err := m.Get(ctx, id, buf, Pend)
		if err != nil {
			t.Errorf("pending get failed: %v", err)
		}
		done <- n
	}()
	time.Sleep(10 * time.Millisecond)
	_ = m.Put(ctx, id, []byte("hi"))

	select {
	case n := <-done:
		if n != 2 {
			t.Fatalf("pending get returned %d bytes, want 2", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending get never woke")
	}
}

func TestQueue_DeleteWhilePending(t *testing.T) {
	m := newTestManager()
	id, _ := m.Create(context.Background(), "PENDING", 1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx, id, make([]byte, 4), Pend)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if err := m.Delete(context.Background(), id); !errors.Is(err, errors.ErrObjectInUse) {
		t.Fatalf("delete under reader: expected ObjectInUse, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, errors.ErrError) {
			t.Fatalf("cancelled get: expected Error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled get never returned")
	}

	if err := m.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.GetIdByName(context.Background(), "PENDING"); !errors.Is(err, errors.ErrNameNotFound) {
		t.Fatalf("deleted queue still found: %v", err)
	}
}
