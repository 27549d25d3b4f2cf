// Package module loads WebAssembly modules as OSAL loadable modules.
//
// Each loaded module is compiled and instantiated in a shared wazero
// runtime under its registry name. Exported functions of every loaded
// module form the symbol table searched by SymbolLookup.
package module

import (
	"context"
	"os"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
)

// Config holds configuration for the module runtime.
type Config struct {
	// MemoryLimitPages sets the maximum memory per module in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

type moduleRecord struct {
	compiled wazero.CompiledModule
	instance api.Module
	file     string
	symbols  []string
}

// Info describes a loaded module.
type Info struct {
	Name    string
	Creator idmap.ID
	File    string
	Symbols []string
}

// Symbol is an exported function found by SymbolLookup.
type Symbol struct {
	Module idmap.ID
	Name   string
	fn     api.Function
}

// Call invokes the symbol with wasm-encoded parameters.
func (s Symbol) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	res, err := s.fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseModule, errors.KindError, err, "call "+s.Name)
	}
	return res, nil
}

// Manager owns the module records of a registry and the wazero runtime
// they are instantiated in.
type Manager struct {
	reg     *idmap.Registry
	mods    *idmap.Table[moduleRecord]
	runtime wazero.Runtime
}

// New creates a module manager with a default runtime.
func New(ctx context.Context, reg *idmap.Registry) *Manager {
	return NewWithConfig(ctx, reg, nil)
}

// NewWithConfig creates a module manager with a configured runtime.
func NewWithConfig(ctx context.Context, reg *idmap.Registry, cfg *Config) *Manager {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Manager{
		reg:     reg,
		mods:    idmap.NewTable[moduleRecord](reg, idmap.TypeModule),
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
	}
}

// Load reads the module image at path and loads it under name.
func (m *Manager) Load(ctx context.Context, name, path string) (idmap.ID, error) {
	if path == "" {
		return idmap.Undefined, errors.InvalidPointer(errors.PhaseModule, "path")
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return idmap.Undefined, errors.Wrap(errors.PhaseModule, errors.KindError, err, "read "+path)
	}
	return m.load(ctx, name, path, image)
}

// LoadBytes loads an in-memory module image under name.
func (m *Manager) LoadBytes(ctx context.Context, name string, image []byte) (idmap.ID, error) {
	if len(image) == 0 {
		return idmap.Undefined, errors.InvalidPointer(errors.PhaseModule, "image")
	}
	return m.load(ctx, name, "", image)
}

func (m *Manager) load(ctx context.Context, name, file string, image []byte) (idmap.ID, error) {
	if err := m.reg.CheckName(errors.PhaseModule, name); err != nil {
		return idmap.Undefined, err
	}

	compiled, err := m.runtime.CompileModule(ctx, image)
	if err != nil {
		return idmap.Undefined, errors.Wrap(errors.PhaseModule, errors.KindError, err, "compile "+name)
	}

	tok, err := m.reg.AllocateNew(ctx, idmap.TypeModule, name)
	if err != nil {
		_ = compiled.Close(ctx)
		return idmap.Undefined, err
	}

	// Instantiating under the type lock keeps wazero's module names in step
	// with the registry's.
	instance, status := m.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	var symbols []string
	if status != nil {
		_ = compiled.Close(ctx)
		status = errors.Wrap(errors.PhaseModule, errors.KindError, status, "instantiate "+name)
	} else {
		symbols = make([]string, 0, len(compiled.ExportedFunctions()))
		for sym := range compiled.ExportedFunctions() {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		*m.mods.Get(tok) = moduleRecord{
			compiled: compiled,
			instance: instance,
			file:     file,
			symbols:  symbols,
		}
	}

	id, err := m.reg.FinalizeNew(tok, status)
	if err == nil {
		Logger().Debug("module loaded",
			zap.String("name", name),
			zap.Stringer("id", id),
			zap.Int("symbols", len(symbols)))
	}
	return id, err
}

// Unload closes a module and frees its handle.
func (m *Manager) Unload(ctx context.Context, id idmap.ID) error {
	tok, err := m.reg.GetByID(idmap.LockExclusive, idmap.TypeModule, id)
	if err != nil {
		return err
	}

	rec := m.mods.Get(tok)
	status := rec.instance.Close(ctx)
	if status == nil {
		_ = rec.compiled.Close(ctx)
	} else {
		status = errors.Wrap(errors.PhaseModule, errors.KindError, status, "close "+tok.Record().Name())
	}
	return m.reg.FinalizeDelete(tok, status)
}

// Info returns the properties of a loaded module.
func (m *Manager) Info(ctx context.Context, id idmap.ID) (Info, error) {
	tok, err := m.reg.GetByID(idmap.LockGlobal, idmap.TypeModule, id)
	if err != nil {
		return Info{}, err
	}
	defer tok.Release()

	rec := tok.Record()
	mod := m.mods.Get(tok)
	return Info{
		Name:    rec.Name(),
		Creator: rec.Creator(),
		File:    mod.file,
		Symbols: append([]string(nil), mod.symbols...),
	}, nil
}

// GetIdByName looks up a module by name.
func (m *Manager) GetIdByName(ctx context.Context, name string) (idmap.ID, error) {
	return m.reg.FindByName(idmap.TypeModule, name)
}

// SymbolLookup finds an exported function by name in any loaded module.
func (m *Manager) SymbolLookup(ctx context.Context, symbol string) (Symbol, error) {
	if symbol == "" {
		return Symbol{}, errors.InvalidPointer(errors.PhaseModule, "symbol")
	}

	var fn api.Function
	tok, err := m.reg.GetBySearch(idmap.LockGlobal, idmap.TypeModule, func(idx int, _ *idmap.Record) bool {
		inst := m.mods.At(idx).instance
		if inst == nil {
			return false
		}
		fn = inst.ExportedFunction(symbol)
		return fn != nil
	})
	if err != nil {
		return Symbol{}, errors.New(errors.PhaseModule, errors.KindError).
			Op("SymbolLookup").
			Detail("symbol %q not found", symbol).
			Cause(err).
			Build()
	}
	defer tok.Release()
	return Symbol{Module: tok.ID, Name: symbol, fn: fn}, nil
}

// Close releases the wazero runtime and every module in it.
func (m *Manager) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}
