package timebase

import "github.com/wippyai/osal/idmap"

// EventType identifies a service loop notification.
type EventType uint8

const (
	EventTick EventType = iota
	EventCallback
	EventBacklog
	EventSpin
)

// Event is emitted by timebase service loops.
type Event struct {
	Name     string
	TimeBase idmap.ID
	Timer    idmap.ID
	Type     EventType
	Ticks    uint32
}

// Observer receives service loop events. It runs on the service goroutine
// with the timebase lock held.
type Observer interface {
	OnTimeBaseEvent(Event)
}

// Subscribe adds an observer.
func (m *Manager) Subscribe(o Observer) {
	m.obsMu.Lock()
	m.observers = append(m.observers, o)
	m.obsMu.Unlock()
}

func (m *Manager) notify(e Event) {
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	for _, o := range m.observers {
		o.OnTimeBaseEvent(e)
	}
}
