package osal

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/osal/errors"
	"github.com/wippyai/osal/idmap"
	"github.com/wippyai/osal/metrics"
	"github.com/wippyai/osal/module"
	"github.com/wippyai/osal/port"
	"github.com/wippyai/osal/queue"
	"github.com/wippyai/osal/sem"
	"github.com/wippyai/osal/task"
	"github.com/wippyai/osal/timebase"
)

// deletePasses bounds how often DeleteAllObjects sweeps the registry.
const deletePasses = 5

// OS is one OSAL instance: a registry plus the managers of every object
// type built on it.
type OS struct {
	cfg     Config
	port    Port
	reg     *idmap.Registry
	tasks   *task.Manager
	queues  *queue.Manager
	sems    *sem.Manager
	tb      *timebase.Manager
	modules *module.Manager
	metrics *metrics.Collector

	initialized  atomic.Bool
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New creates an OS with the default configuration.
func New(ctx context.Context) *OS {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates an OS. Zero fields of cfg take their defaults.
func NewWithConfig(ctx context.Context, cfg *Config) *OS {
	c := *DefaultConfig()
	if cfg != nil {
		if cfg.Capacities.Total() > 0 {
			c.Capacities = cfg.Capacities
		}
		if cfg.MaxNameLen > 0 {
			c.MaxNameLen = cfg.MaxNameLen
		}
		if cfg.TicksPerSecond > 0 {
			c.TicksPerSecond = cfg.TicksPerSecond
		}
		c.ModuleMemoryLimitPages = cfg.ModuleMemoryLimitPages
		c.Logger = cfg.Logger
		c.Metrics = cfg.Metrics
		c.Port = cfg.Port
	}

	p := c.Port
	if p == nil {
		p = port.New()
	}

	reg := idmap.NewRegistryWithConfig(p, &idmap.Config{
		Capacities: c.Capacities,
		MaxNameLen: c.MaxNameLen,
	})
	return &OS{
		cfg:    c,
		port:   p,
		reg:    reg,
		tasks:  task.New(reg),
		queues: queue.New(reg),
		sems:   sem.New(reg),
		tb: timebase.NewWithConfig(reg, p, &timebase.Config{
			MicroSecPerTick: c.microSecPerTick(),
		}),
		modules: module.NewWithConfig(ctx, reg, &module.Config{
			MemoryLimitPages: c.ModuleMemoryLimitPages,
		}),
		shutdown: make(chan struct{}),
	}
}

// Init installs the configured logger and metrics. It fails when called
// more than once.
func (o *OS) Init(ctx context.Context) error {
	if !o.initialized.CompareAndSwap(false, true) {
		return errors.New(errors.PhaseInit, errors.KindError).
			Op("Init").
			Detail("already initialized").
			Build()
	}

	if l := o.cfg.Logger; l != nil {
		idmap.SetLogger(l.Named("idmap"))
		timebase.SetLogger(l.Named("timebase"))
		task.SetLogger(l.Named("task"))
		module.SetLogger(l.Named("module"))
		port.SetLogger(l.Named("port"))
	}

	if o.cfg.Metrics != nil {
		o.metrics = metrics.New(o.cfg.Metrics)
		o.reg.Subscribe(o.metrics)
		o.tb.Subscribe(o.metrics)
	}

	o.logger().Info("osal initialized",
		zap.Int("objects", o.cfg.Capacities.Total()),
		zap.Uint32("ticks_per_second", o.cfg.TicksPerSecond))
	return nil
}

func (o *OS) logger() *zap.Logger {
	if o.cfg.Logger != nil {
		return o.cfg.Logger
	}
	return zap.NewNop()
}

// Registry returns the object registry.
func (o *OS) Registry() *idmap.Registry { return o.reg }

// Tasks returns the task manager.
func (o *OS) Tasks() *task.Manager { return o.tasks }

// Queues returns the queue manager.
func (o *OS) Queues() *queue.Manager { return o.queues }

// Sems returns the semaphore and mutex manager.
func (o *OS) Sems() *sem.Manager { return o.sems }

// TimeBases returns the timebase and timer manager.
func (o *OS) TimeBases() *timebase.Manager { return o.tb }

// Modules returns the loadable module manager.
func (o *OS) Modules() *module.Manager { return o.modules }

// Shutdown stops new lookups and releases IdleLoop. Only Exclusive
// lookups, as used by deletes, keep working afterwards.
func (o *OS) Shutdown(ctx context.Context) {
	o.shutdownOnce.Do(func() {
		o.reg.Shutdown()
		close(o.shutdown)
		o.logger().Info("osal shutdown requested")
	})
}

// IdleLoop blocks until Shutdown is called or ctx is done.
func (o *OS) IdleLoop(ctx context.Context) error {
	select {
	case <-o.shutdown:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeleteAllObjects deletes every live object, sweeping the registry until
// it is empty or the pass limit is reached. Objects that are still in use
// by another object, like a timebase with timers, go in a later pass.
func (o *OS) DeleteAllObjects(ctx context.Context) {
	for pass := 0; pass < deletePasses; pass++ {
		found := 0
		o.reg.ForEach(idmap.Undefined, func(id idmap.ID) {
			found++
			if err := o.deleteObject(ctx, id); err != nil {
				o.logger().Debug("delete deferred",
					zap.Stringer("id", id),
					zap.Int("pass", pass),
					zap.Error(err))
			}
		})
		if found == 0 {
			return
		}
		o.port.Delay(5)
	}
}

func (o *OS) deleteObject(ctx context.Context, id idmap.ID) error {
	switch id.Type() {
	case idmap.TypeTask:
		return o.tasks.Delete(ctx, id)
	case idmap.TypeQueue:
		return o.queues.Delete(ctx, id)
	case idmap.TypeBinSem:
		return o.sems.BinSemDelete(ctx, id)
	case idmap.TypeCountSem:
		return o.sems.CountSemDelete(ctx, id)
	case idmap.TypeMutex:
		return o.sems.MutexDelete(ctx, id)
	case idmap.TypeTimeBase:
		return o.tb.TimeBaseDelete(ctx, id)
	case idmap.TypeTimeCB:
		return o.tb.TimerDelete(ctx, id)
	case idmap.TypeModule:
		return o.modules.Unload(ctx, id)
	default:
		return errors.NotImplemented(errors.PhaseInit, "deleting "+id.Type().String()+" objects")
	}
}

// ForEachObject calls fn for every live object, or only those created by
// creator when it is defined.
func (o *OS) ForEachObject(creator idmap.ID, fn func(id idmap.ID)) {
	o.reg.ForEach(creator, fn)
}

// Close shuts the OS down, deletes every object and releases the module
// runtime. It waits for task goroutines, so task entries must return once
// their context is cancelled.
func (o *OS) Close(ctx context.Context) error {
	o.Shutdown(ctx)
	o.DeleteAllObjects(ctx)

	if w, ok := o.port.(interface {
		Close()
		Wait()
	}); ok {
		w.Close()
		w.Wait()
	}
	o.tasks.Wait()
	return o.modules.Close(ctx)
}

// Milli2Ticks converts milliseconds to system ticks, rounding up.
func (o *OS) Milli2Ticks(ms uint32) uint32 {
	return uint32((uint64(ms)*uint64(o.cfg.TicksPerSecond) + 999) / 1000)
}

// Tick2Micros returns the length of one system tick in microseconds.
func (o *OS) Tick2Micros() uint32 {
	return o.cfg.microSecPerTick()
}

// GetErrorName returns the OSAL status name of err, such as
// "OS_ERR_INVALID_ID". nil is "OS_SUCCESS".
func GetErrorName(err error) string {
	return errors.Name(errors.Code(err))
}
