package osal

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wippyai/osal/idmap"
	"github.com/wippyai/osal/timebase"
)

// DefaultTicksPerSecond is the nominal system tick rate.
const DefaultTicksPerSecond = 100

// Port is the kernel layer an OS runs on. port.Native implements it.
type Port interface {
	idmap.Port
	timebase.Port
}

// Config holds configuration for an OS instance.
type Config struct {
	// Capacities sets the slot count per object type.
	// All zero means idmap.DefaultCapacities.
	Capacities idmap.Capacities

	// MaxNameLen bounds object names; names must be strictly shorter.
	// 0 means idmap.DefaultMaxNameLen.
	MaxNameLen int

	// TicksPerSecond is the system tick rate used by Milli2Ticks and
	// Tick2Micros, and the accuracy of software timebases.
	// 0 means DefaultTicksPerSecond.
	TicksPerSecond uint32

	// ModuleMemoryLimitPages caps the memory of each loaded module in
	// 64KB pages. 0 means the wazero default.
	ModuleMemoryLimitPages uint32

	// Logger is pushed into every subsystem by Init. Nil keeps the
	// no-op loggers.
	Logger *zap.Logger

	// Metrics receives the OS metrics when non-nil.
	Metrics prometheus.Registerer

	// Port overrides the kernel layer. Nil selects port.Native.
	Port Port
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() *Config {
	return &Config{
		Capacities:     idmap.DefaultCapacities(),
		MaxNameLen:     idmap.DefaultMaxNameLen,
		TicksPerSecond: DefaultTicksPerSecond,
	}
}

func (c *Config) microSecPerTick() uint32 {
	return 1_000_000 / c.TicksPerSecond
}
