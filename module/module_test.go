package module

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
	"github.com/wippyai/osal/port"
)

// addWasm exports add(i32, i32) i32.
var addWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ctx := context.Background()
	m := New(ctx, idmap.NewRegistry(port.New()))
	t.Cleanup(func() { _ = m.Close(ctx) })
	return m
}

func TestModule_LoadAndCall(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	path := filepath.Join(t.TempDir(), "math.wasm")
	if err := os.WriteFile(path, addWasm, 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}

	id, err := m.Load(ctx, "MATH", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	info, err := m.Info(ctx, id)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Name != "MATH" || info.File != path || !reflect.DeepEqual(info.Symbols, []string{"add"}) {
		t.Fatalf("unexpected info %+v", info)
	}

	sym, err := m.SymbolLookup(ctx, "add")
	if err != nil {
		t.Fatalf("SymbolLookup failed: %v", err)
	}
	if sym.Module != id {
		t.Fatalf("symbol found in %s, want %s", sym.Module, id)
	}
	res, err := sym.Call(ctx, 40, 2)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(res) != 1 || uint32(res[0]) != 42 {
		t.Fatalf("add(40, 2) = %v", res)
	}

	if err := m.Unload(ctx, id); err != nil {
		t.Fatalf("Unload failed: %v", err)
	}
	if _, err := m.SymbolLookup(ctx, "add"); !errors.Is(err, errors.ErrError) {
		t.Fatalf("lookup after unload: expected Error, got %v", err)
	}

	// The name is free for wazero and the registry again.
	if _, err := m.LoadBytes(ctx, "MATH", addWasm); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
}

func TestModule_Errors(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	if _, err := m.LoadBytes(ctx, "ONE", addWasm); err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}

	tests := []struct {
		name string
		err  error
		want *errors.Error
	}{
		{"duplicate", func() error { _, err := m.LoadBytes(ctx, "ONE", addWasm); return err }(), errors.ErrNameTaken},
		{"bad image", func() error { _, err := m.LoadBytes(ctx, "BAD", []byte("not wasm")); return err }(), errors.ErrError},
		{"empty image", func() error { _, err := m.LoadBytes(ctx, "EMPTY", nil); return err }(), errors.ErrInvalidPointer},
		{"missing file", func() error {
			_, err := m.Load(ctx, "GONE", filepath.Join(t.TempDir(), "gone.wasm"))
			return err
		}(), errors.ErrError},
		{"unknown symbol", func() error { _, err := m.SymbolLookup(ctx, "sub"); return err }(), errors.ErrError},
		{"stale id", m.Unload(ctx, idmap.Undefined), errors.ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, tt.err)
			}
		})
	}

	if _, err := m.GetIdByName(ctx, "BAD"); !errors.Is(err, errors.ErrNameNotFound) {
		t.Fatalf("failed load left a record: %v", err)
	}
}
