package idmap

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wippyai/osal/errors"
	"go.uber.org/zap"
)

// DefaultMaxNameLen is the default name limit. Names must be strictly shorter.
const DefaultMaxNameLen = 20

// Config sizes a registry.
type Config struct {
	// Capacities holds the slot count per object type. Nil-equivalent
	// (all zero) selects DefaultCapacities.
	Capacities Capacities

	// MaxNameLen bounds object names; a name must be shorter than this.
	// 0 means DefaultMaxNameLen.
	MaxNameLen int
}

// Record is the generic part of every object, independent of its type.
//
// Fields other than the active id are read and written only under the
// type lock of the record's type.
type Record struct {
	name     string
	creator  ID
	activeID atomic.Uint32
	hold     hold
	gen      uint8
}

// Name returns the object name, or "" for an unnamed object.
func (r *Record) Name() string { return r.name }

// Creator returns the identity that allocated the object.
func (r *Record) Creator() ID { return r.creator }

// ActiveID returns the live handle, or Undefined when the slot is free.
// It is safe to call without holding the type lock.
func (r *Record) ActiveID() ID { return ID(r.activeID.Load()) }

// Refcount returns the number of shared holders.
func (r *Record) Refcount() uint32 { return r.hold.refs }

func (r *Record) reset() {
	r.activeID.Store(0)
	r.name = ""
	r.creator = Undefined
	r.hold = hold{}
}

type typeRange struct {
	base       int
	capacity   int
	lastIssued int
}

// Registry owns the record store for every object type along with the
// allocation and lock-mode protocol layered over it.
type Registry struct {
	port      Port
	records   []Record
	ranges    [TypeUser]typeRange
	clearers  [TypeUser][]func(idx int)
	observers []Observer
	obsMu     sync.RWMutex
	maxName   int
	shutdown  atomic.Bool
}

// NewRegistry creates a registry using the default configuration.
func NewRegistry(port Port) *Registry {
	return NewRegistryWithConfig(port, nil)
}

// NewRegistryWithConfig creates a registry sized by cfg.
func NewRegistryWithConfig(port Port, cfg *Config) *Registry {
	caps := DefaultCapacities()
	maxName := DefaultMaxNameLen
	if cfg != nil {
		if cfg.Capacities.Total() > 0 {
			caps = cfg.Capacities
		}
		if cfg.MaxNameLen > 0 {
			maxName = cfg.MaxNameLen
		}
	}

	r := &Registry{
		port:    port,
		maxName: maxName,
	}

	base := 0
	for t := ObjectType(0); t < TypeUser; t++ {
		n := caps[t]
		if !t.Valid() || n < 0 {
			n = 0
		}
		if n > MaxIndex+1 {
			n = MaxIndex + 1
		}
		r.ranges[t] = typeRange{base: base, capacity: n}
		base += n
	}
	r.records = make([]Record, base)
	return r
}

// Capacity returns the number of slots configured for t.
func (r *Registry) Capacity(t ObjectType) int {
	if t >= TypeUser {
		return 0
	}
	return r.ranges[t].capacity
}

// MaxNameLen returns the configured name limit.
func (r *Registry) MaxNameLen() int {
	return r.maxName
}

// CheckName validates a name for creation or lookup.
func (r *Registry) CheckName(phase errors.Phase, name string) error {
	if name == "" {
		return errors.InvalidPointer(phase, "name")
	}
	if len(name) >= r.maxName {
		return errors.NameTooLong(phase, name, r.maxName)
	}
	return nil
}

// Lock takes the type lock for t.
func (r *Registry) Lock(t ObjectType) {
	r.port.LockGlobal(t)
}

// Unlock releases the type lock for t.
func (r *Registry) Unlock(t ObjectType) {
	r.port.UnlockGlobal(t)
}

// Shutdown sets the process-wide shutdown flag. Afterwards allocation fails
// and only exclusive lookups succeed.
func (r *Registry) Shutdown() {
	r.shutdown.Store(true)
}

// ShuttingDown reports whether Shutdown has been called.
func (r *Registry) ShuttingDown() bool {
	return r.shutdown.Load()
}

func (r *Registry) record(t ObjectType, idx int) *Record {
	return &r.records[r.ranges[t].base+idx]
}

// Record returns the generic record at a slot of type t.
// The caller must hold the type lock or a token for the slot.
func (r *Registry) Record(t ObjectType, idx int) *Record {
	return r.record(t, idx)
}

// Live reports whether id is still bound to slot idx of type t.
// It takes no lock.
func (r *Registry) Live(t ObjectType, idx int, id ID) bool {
	if t >= TypeUser || idx < 0 || idx >= r.ranges[t].capacity {
		return false
	}
	return r.record(t, idx).ActiveID() == id
}

// onClear registers fn to zero per-type extension data of a freed slot.
func (r *Registry) onClear(t ObjectType, fn func(idx int)) {
	r.clearers[t] = append(r.clearers[t], fn)
}

// clear frees a slot. The type lock must be held.
func (r *Registry) clear(t ObjectType, idx int) {
	r.record(t, idx).reset()
	for _, fn := range r.clearers[t] {
		fn(idx)
	}
}

// AllocateNew reserves a free slot of type t named name.
//
// On success the type lock is still held and the returned token must be
// passed to FinalizeNew exactly once. On failure nothing is held.
func (r *Registry) AllocateNew(ctx context.Context, t ObjectType, name string) (*Token, error) {
	if r.shutdown.Load() {
		return nil, errors.New(errors.PhaseIDMap, errors.KindError).
			Op("AllocateNew").
			Detail("registry is shutting down").
			Build()
	}
	if !t.Valid() {
		return nil, errors.IncorrectObjType(errors.PhaseIDMap, t)
	}
	rng := &r.ranges[t]
	if rng.capacity == 0 {
		return nil, errors.NotImplemented(errors.PhaseIDMap, t.String()+" objects are not configured")
	}

	r.port.LockGlobal(t)

	if name != "" {
		if _, ok := r.findLocked(t, func(_ int, rec *Record) bool { return rec.name == name }); ok {
			r.port.UnlockGlobal(t)
			return nil, errors.NameTaken(errors.PhaseIDMap, name)
		}
	}

	idx := -1
	for i := 1; i <= rng.capacity; i++ {
		candidate := (rng.lastIssued + i) % rng.capacity
		if r.record(t, candidate).ActiveID() == Undefined {
			idx = candidate
			break
		}
	}
	if idx < 0 {
		r.port.UnlockGlobal(t)
		return nil, errors.NoFreeIDs(errors.PhaseIDMap, t.String())
	}

	rec := r.record(t, idx)
	rec.gen = nextGeneration(rec.gen)
	id, err := Encode(t, rec.gen, idx)
	if err != nil {
		r.port.UnlockGlobal(t)
		return nil, err
	}
	rec.name = name
	rec.creator = SelfFrom(ctx)
	rec.hold = hold{}
	rec.activeID.Store(uint32(id))

	return &Token{reg: r, Mode: LockGlobal, Type: t, Index: idx, ID: id}, nil
}

// FinalizeNew commits or rolls back an allocation and releases the type lock.
// With a nil status the new handle is returned; otherwise the slot is freed
// and status is returned unchanged.
func (r *Registry) FinalizeNew(tok *Token, status error) (ID, error) {
	t := tok.Type
	rec := r.record(t, tok.Index)
	id := tok.ID

	if status == nil {
		r.ranges[t].lastIssued = tok.Index
		r.notify(Event{Type: EventAllocated, ObjType: t, ID: id, Name: rec.name})
		Logger().Debug("object allocated",
			zap.Stringer("type", t),
			zap.Stringer("id", id),
			zap.String("name", rec.name))
	} else {
		r.clear(t, tok.Index)
		id = Undefined
	}

	tok.done = true
	r.port.UnlockGlobal(t)
	return id, status
}

// FinalizeDelete frees the slot held by an exclusive or global token when
// status is nil, then releases the token. status is returned unchanged.
func (r *Registry) FinalizeDelete(tok *Token, status error) error {
	if status == nil {
		rec := r.record(tok.Type, tok.Index)
		name := rec.name
		r.clear(tok.Type, tok.Index)
		r.notify(Event{Type: EventDeleted, ObjType: tok.Type, ID: tok.ID, Name: name})
		Logger().Debug("object deleted",
			zap.Stringer("type", tok.Type),
			zap.Stringer("id", tok.ID))
	}
	tok.Release()
	return status
}

// findLocked scans type t for a live record accepted by match.
// The type lock must be held.
func (r *Registry) findLocked(t ObjectType, match MatchFunc) (int, bool) {
	rng := r.ranges[t]
	for i := 0; i < rng.capacity; i++ {
		rec := r.record(t, i)
		if rec.ActiveID() != Undefined && match(i, rec) {
			return i, true
		}
	}
	return 0, false
}

// MatchFunc selects a record during a search. idx is the slot index,
// usable with the type's extension Table.
type MatchFunc func(idx int, rec *Record) bool

// GetByID resolves id to its slot and applies mode.
func (r *Registry) GetByID(mode LockMode, t ObjectType, id ID) (*Token, error) {
	if r.shutdown.Load() && mode != LockExclusive {
		return nil, errors.IncorrectObjState(errors.PhaseIDMap, "registry is shutting down")
	}
	if t >= TypeUser {
		return nil, errors.IncorrectObjType(errors.PhaseIDMap, t)
	}
	idx, err := Decode(id, t, r.ranges[t].capacity)
	if err != nil {
		return nil, err
	}

	tok := &Token{reg: r, Mode: mode, Type: t, Index: idx, ID: id}
	if mode == LockNone {
		if r.record(t, idx).ActiveID() != id {
			return nil, errors.InvalidID(errors.PhaseIDMap, id)
		}
		return tok, nil
	}

	r.port.LockGlobal(t)
	if err := r.convertLock(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// GetByName finds the live object of type t called name and applies mode.
// Unnamed objects never match, so an empty name is always NameNotFound.
func (r *Registry) GetByName(mode LockMode, t ObjectType, name string) (*Token, error) {
	tok, err := r.GetBySearch(mode, t, func(_ int, rec *Record) bool {
		return rec.name != "" && rec.name == name
	})
	if err != nil && errors.KindOf(err) == errors.KindNameNotFound {
		return nil, errors.NameNotFound(errors.PhaseIDMap, name)
	}
	return tok, err
}

// GetBySearch finds the first live object of type t accepted by match
// and applies mode.
func (r *Registry) GetBySearch(mode LockMode, t ObjectType, match MatchFunc) (*Token, error) {
	if r.shutdown.Load() && mode != LockExclusive {
		return nil, errors.IncorrectObjState(errors.PhaseIDMap, "registry is shutting down")
	}
	if t >= TypeUser {
		return nil, errors.IncorrectObjType(errors.PhaseIDMap, t)
	}

	r.port.LockGlobal(t)
	idx, ok := r.findLocked(t, match)
	if !ok {
		r.port.UnlockGlobal(t)
		return nil, errors.New(errors.PhaseIDMap, errors.KindNameNotFound).
			Op("GetBySearch").
			Detail("no matching %s", t).
			Build()
	}

	rec := r.record(t, idx)
	tok := &Token{reg: r, Mode: mode, Type: t, Index: idx, ID: rec.ActiveID()}
	if mode == LockNone {
		r.port.UnlockGlobal(t)
		return tok, nil
	}
	if err := r.convertLock(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// FindByName returns the handle of the object of type t called name.
func (r *Registry) FindByName(t ObjectType, name string) (ID, error) {
	if err := r.CheckName(errors.PhaseIDMap, name); err != nil {
		return Undefined, err
	}
	tok, err := r.GetByName(LockGlobal, t, name)
	if err != nil {
		return Undefined, err
	}
	id := tok.ID
	tok.Release()
	return id, nil
}

// RefcountDecr drops a shared hold taken with LockRefcount.
func (r *Registry) RefcountDecr(tok *Token) error {
	t := tok.Type
	r.port.LockGlobal(t)
	defer r.port.UnlockGlobal(t)

	rec := r.record(t, tok.Index)
	if rec.ActiveID() != tok.ID {
		return errors.InvalidID(errors.PhaseIDMap, tok.ID)
	}
	if !rec.hold.release() {
		return errors.IncorrectObjState(errors.PhaseIDMap, "refcount is already zero")
	}
	return nil
}

// IdentifyObject returns the type encoded in id.
func (r *Registry) IdentifyObject(id ID) ObjectType {
	return id.Type()
}

// ToArrayIndex decodes id as an object of type t.
func (r *Registry) ToArrayIndex(t ObjectType, id ID) (int, error) {
	if t >= TypeUser {
		return 0, errors.IncorrectObjType(errors.PhaseIDMap, t)
	}
	return Decode(id, t, r.ranges[t].capacity)
}

// ConvertToArrayIndex decodes id using the type it carries.
func (r *Registry) ConvertToArrayIndex(id ID) (int, error) {
	t := id.Type()
	if !t.Valid() || r.ranges[t].capacity == 0 {
		return 0, errors.IncorrectObjType(errors.PhaseIDMap, t)
	}
	return Decode(id, t, r.ranges[t].capacity)
}

// ForEach calls fn for every live object, optionally restricted to those
// allocated by creator. The type lock is released around each call so fn
// may delete the object it is given.
func (r *Registry) ForEach(creator ID, fn func(id ID)) {
	for t := ObjectType(1); t < TypeUser; t++ {
		r.ForEachOfType(t, creator, fn)
	}
}

// ForEachOfType is ForEach restricted to objects of type t.
func (r *Registry) ForEachOfType(t ObjectType, creator ID, fn func(id ID)) {
	if t >= TypeUser || r.ranges[t].capacity == 0 {
		return
	}
	r.port.LockGlobal(t)
	for i := 0; i < r.ranges[t].capacity; i++ {
		rec := r.record(t, i)
		id := rec.ActiveID()
		if id == Undefined || (creator != Undefined && rec.creator != creator) {
			continue
		}
		r.port.UnlockGlobal(t)
		fn(id)
		r.port.LockGlobal(t)
	}
	r.port.UnlockGlobal(t)
}

// Snapshot describes one live object.
type Snapshot struct {
	Name     string
	ID       ID
	Creator  ID
	Type     ObjectType
	Refcount uint32
}

// Snapshot returns a copy of every live record.
func (r *Registry) Snapshot() []Snapshot {
	var out []Snapshot
	for t := ObjectType(1); t < TypeUser; t++ {
		if r.ranges[t].capacity == 0 {
			continue
		}
		r.port.LockGlobal(t)
		for i := 0; i < r.ranges[t].capacity; i++ {
			rec := r.record(t, i)
			id := rec.ActiveID()
			if id == Undefined {
				continue
			}
			out = append(out, Snapshot{
				Name:     rec.name,
				ID:       id,
				Creator:  rec.creator,
				Type:     t,
				Refcount: rec.hold.refs,
			})
		}
		r.port.UnlockGlobal(t)
	}
	return out
}
