package sem

import (
	"context"
	"sync"
	"time"

	"github.com/wippyai/osal/errors"
)

// Pend waits without a timeout.
const Pend = -1

// semCore is a counting semaphore with flush support. Waiters block on
// wake, which is closed and replaced by every Give and Flush.
type semCore struct {
	mu    sync.Mutex
	wake  chan struct{}
	value uint32
	max   uint32
	flush uint64
}

func newSemCore(initial, max uint32) *semCore {
	return &semCore{
		wake:  make(chan struct{}),
		value: initial,
		max:   max,
	}
}

// broadcast wakes every waiter. mu must be held.
func (s *semCore) broadcast() {
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *semCore) give() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value >= s.max {
		if s.max == 1 {
			// Giving a full binary semaphore is not an error.
			return nil
		}
		return errors.New(errors.PhaseCountSem, errors.KindSemFailure).
			Op("Give").
			Detail("count would exceed %d", s.max).
			Build()
	}
	s.value++
	s.broadcast()
	return nil
}

func (s *semCore) flushAll() {
	s.mu.Lock()
	s.flush++
	s.broadcast()
	s.mu.Unlock()
}

func (s *semCore) current() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// take decrements the count, waiting up to timeoutMs (Pend waits forever).
// A flush releases the waiter without consuming the count.
func (s *semCore) take(ctx context.Context, phase errors.Phase, timeoutMs int32) error {
	var expired <-chan time.Time
	if timeoutMs >= 0 {
		t := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer t.Stop()
		expired = t.C
	}

	s.mu.Lock()
	flush := s.flush
	for s.value == 0 {
		if timeoutMs == 0 {
			s.mu.Unlock()
			return errors.New(phase, errors.KindSemTimeout).Op("Take").Detail("not available").Build()
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-expired:
			return errors.New(phase, errors.KindSemTimeout).
				Op("TimedWait").
				Detail("timed out after %d ms", timeoutMs).
				Build()
		case <-ctx.Done():
			return errors.Wrap(phase, errors.KindSemFailure, ctx.Err(), "wait abandoned")
		}

		s.mu.Lock()
		if s.flush != flush {
			s.mu.Unlock()
			return nil
		}
	}
	s.value--
	s.mu.Unlock()
	return nil
}
