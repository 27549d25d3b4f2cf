// Package timebase drives application timer callbacks from time references.
//
// A timebase is either software driven, ticking from the port's timer, or
// synchronized to an external source through a SyncFunc. Each timebase
// owns a service goroutine that waits for ticks and walks the ring of
// timer callbacks attached to it:
//
//	tb, _ := m.TimeBaseCreate(ctx, "1HZ", nil)
//	_ = m.TimeBaseSet(ctx, tb, 1_000_000, 1_000_000)
//	tm, _ := m.TimerAdd(ctx, "HK", tb, housekeeping, nil)
//	_ = m.TimerSet(ctx, tm, 1_000_000, 1_000_000)
//
// Timer waits are counted in the timebase's own tick units. A timer fires
// once each time its remaining wait crosses from positive to zero or
// below, then re-arms by its interval. An interval of 0 is a one-shot.
// When ticks outrun the interval the remaining wait is clamped to minus
// one interval and the timer's backlog counter grows instead.
//
// Callbacks run on the service goroutine with the timebase locked. The
// context they receive identifies the timebase, and every timer or
// timebase configuration call made with it fails with IncorrectObjState.
//
// TimerCreate is shorthand for a timer with a dedicated software timebase
// of the same name; TimerSet and TimerDelete carry through to it.
package timebase
