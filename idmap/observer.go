package idmap

// EventType identifies a registry lifecycle notification.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventDeleted
	EventContention
	EventInUse
)

func (e EventType) String() string {
	switch e {
	case EventAllocated:
		return "allocated"
	case EventDeleted:
		return "deleted"
	case EventContention:
		return "contention"
	case EventInUse:
		return "in_use"
	default:
		return "unknown"
	}
}

// Event represents a registry lifecycle event.
type Event struct {
	Name    string
	ID      ID
	Type    EventType
	ObjType ObjectType
	Attempt int
}

// Observer receives notifications about registry events.
// Observers run with the type lock held and must not call back into the registry.
type Observer interface {
	OnObjectEvent(Event)
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	r.observers = append(r.observers, o)
	r.obsMu.Unlock()
}

// Unsubscribe removes an observer.
func (r *Registry) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnObjectEvent(e)
	}
}
