// Package osal is an operating system abstraction layer for flight-style
// software, built on goroutines and an object registry.
//
// Every resource (task, queue, semaphore, mutex, timebase, timer, module)
// is a named object addressed by a generation-tagged 32-bit handle.
// Handles of deleted objects never alias their successors, and every
// lookup states how long the object must stay valid.
//
// # Architecture Overview
//
//	osal/            Root package: OS instance, config, shutdown
//	├── idmap/       Handle codec, registry and lock modes
//	├── timebase/    Timebases, service loops and timer callbacks
//	├── task/        Tasks as goroutines
//	├── sem/         Binary and counting semaphores, mutexes
//	├── queue/       Message queues
//	├── module/      WebAssembly loadable modules (wazero)
//	├── port/        Kernel layer on the Go runtime
//	├── metrics/     Prometheus collector
//	└── errors/      Structured errors with OSAL status codes
//
// # Quick Start
//
//	os := osal.New(ctx)
//	if err := os.Init(ctx); err != nil {
//	    return err
//	}
//	defer os.Close(ctx)
//
//	tm, _, err := os.TimeBases().TimerCreate(ctx, "HK_TIMER", func(ctx context.Context, id idmap.ID) {
//	    // runs on the timer's service goroutine
//	})
//	err = os.TimeBases().TimerSet(ctx, tm, 100_000, 100_000)
//
// # Status Codes
//
// Errors carry an OSAL status kind. Match them with errors.Is against the
// sentinels of the errors package, or map them to the classic names:
//
//	osal.GetErrorName(err) // "OS_ERR_NAME_TAKEN"
package osal
