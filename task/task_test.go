package task

import (
	"context"
	"testing"
	"time"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
	"github.com/wippyai/osal/port"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := New(idmap.NewRegistry(port.New()))
	t.Cleanup(m.Wait)
	return m
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestTask_CreateRunsWithOwnIdentity(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	seen := make(chan idmap.ID, 1)
	release := make(chan struct{})
	id, err := m.Create(ctx, "WORKER", func(ctx context.Context) {
		seen <- m.GetId(ctx)
		<-release
	}, 4096, 100, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	select {
	case got := <-seen:
		if got != id {
			t.Fatalf("GetId inside task = %s, want %s", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task did not start")
	}

	info, err := m.GetInfo(ctx, id)
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.Name != "WORKER" || info.StackSize != 4096 || info.Priority != 100 {
		t.Fatalf("unexpected info %+v", info)
	}
	if byName, err := m.GetIdByName(ctx, "WORKER"); err != nil || byName != id {
		t.Fatalf("GetIdByName = %s, %v", byName, err)
	}
	if m.GetId(ctx) != idmap.Undefined {
		t.Fatal("GetId outside a task should be undefined")
	}

	close(release)
	m.Wait()
	if _, err := m.GetInfo(ctx, id); !errors.Is(err, errors.ErrInvalidID) {
		t.Fatalf("returned task still registered: %v", err)
	}
}

func TestTask_DeleteCancelsAndRunsHook(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	installed := make(chan struct{})
	stopped := make(chan struct{})
	hooked := make(chan struct{})
	id, err := m.Create(ctx, "VICTIM", func(ctx context.Context) {
		if err := m.InstallDeleteHandler(ctx, func() { close(hooked) }); err != nil {
			t.Errorf("InstallDeleteHandler failed: %v", err)
		}
		close(installed)
		<-ctx.Done()
		close(stopped)
	}, 0, 10, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitClosed(t, installed, "hook install")

	if err := m.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	waitClosed(t, hooked, "delete hook")
	waitClosed(t, stopped, "task cancellation")

	if err := m.Delete(ctx, id); !errors.Is(err, errors.ErrInvalidID) {
		t.Fatalf("second delete: expected InvalidID, got %v", err)
	}
}

func TestTask_Exit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	after := false
	id, err := m.Create(ctx, "QUITTER", func(ctx context.Context) {
		m.Exit(ctx)
		after = true
	}, 0, 1, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	m.Wait()

	if after {
		t.Fatal("Exit returned to the task body")
	}
	if _, err := m.GetInfo(ctx, id); !errors.Is(err, errors.ErrInvalidID) {
		t.Fatalf("exited task still registered: %v", err)
	}

	// Outside a task Exit does nothing.
	m.Exit(ctx)
}

func TestTask_PanicFreesHandle(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	id, err := m.Create(ctx, "PANICKY", func(context.Context) { panic("boom") }, 0, 1, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	m.Wait()
	if _, err := m.GetInfo(ctx, id); !errors.Is(err, errors.ErrInvalidID) {
		t.Fatalf("panicked task still registered: %v", err)
	}
}

func TestTask_Validation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	noop := func(context.Context) {}

	tests := []struct {
		name string
		err  error
		want *errors.Error
	}{
		{"priority", func() error {
			_, err := m.Create(ctx, "P", noop, 0, MaxPriority+1, 0)
			return err
		}(), errors.ErrInvalidPriority},
		{"nil entry", func() error {
			_, err := m.Create(ctx, "N", nil, 0, 1, 0)
			return err
		}(), errors.ErrInvalidPointer},
		{"empty name", func() error {
			_, err := m.Create(ctx, "", noop, 0, 1, 0)
			return err
		}(), errors.ErrInvalidPointer},
		{"long name", func() error {
			_, err := m.Create(ctx, "ABCDEFGHIJKLMNOPQRSTU", noop, 0, 1, 0)
			return err
		}(), errors.ErrNameTooLong},
		{"set priority", m.SetPriority(ctx, idmap.Undefined, 256), errors.ErrInvalidPriority},
		{"set priority stale", m.SetPriority(ctx, idmap.Undefined, 5), errors.ErrInvalidID},
		{"hook outside task", m.InstallDeleteHandler(ctx, func() {}), errors.ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, tt.err)
			}
		})
	}
}

func TestTask_SetPriority(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	release := make(chan struct{})
	id, err := m.Create(ctx, "PRIO", func(context.Context) { <-release }, 0, 50, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer close(release)

	if err := m.SetPriority(ctx, id, 7); err != nil {
		t.Fatalf("SetPriority failed: %v", err)
	}
	if info, _ := m.GetInfo(ctx, id); info.Priority != 7 {
		t.Fatalf("priority = %d, want 7", info.Priority)
	}
}

func TestTask_Delay(t *testing.T) {
	m := newTestManager(t)

	start := time.Now()
	if err := m.Delay(context.Background(), 5); err != nil {
		t.Fatalf("Delay failed: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatal("Delay returned early")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Delay(ctx, 10_000); !errors.Is(err, errors.ErrError) {
		t.Fatalf("cancelled delay: expected Error, got %v", err)
	}
}
