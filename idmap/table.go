package idmap

// Table holds the type-specific extension record for every slot of one
// object type, indexed like the registry's records. A slot's entry is
// zeroed whenever the registry frees the slot.
type Table[T any] struct {
	rows []T
	typ  ObjectType
}

// NewTable creates the extension table for type t and registers it with reg.
func NewTable[T any](reg *Registry, t ObjectType) *Table[T] {
	tb := &Table[T]{
		rows: make([]T, reg.Capacity(t)),
		typ:  t,
	}
	reg.onClear(t, func(idx int) {
		var zero T
		tb.rows[idx] = zero
	})
	return tb
}

// Type returns the object type the table extends.
func (tb *Table[T]) Type() ObjectType {
	return tb.typ
}

// Len returns the number of slots.
func (tb *Table[T]) Len() int {
	return len(tb.rows)
}

// At returns the entry for slot idx.
func (tb *Table[T]) At(idx int) *T {
	return &tb.rows[idx]
}

// Get returns the entry for the slot a token refers to.
func (tb *Table[T]) Get(tok *Token) *T {
	return &tb.rows[tok.Index]
}
