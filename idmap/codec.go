package idmap

import (
	"fmt"

	"github.com/wippyai/osal/errors"
)

// ID is an opaque 32-bit object handle.
//
// Layout, most significant first:
//
//	31..24  object type
//	23..16  slot generation (never zero for a live handle)
//	15..0   slot index within the type
//
// Zero is never a valid handle.
type ID uint32

const (
	typeShift = 24
	genShift  = 16
	genMask   = 0xFF
	indexMask = 0xFFFF
)

// MaxIndex is the largest encodable slot index.
const MaxIndex = indexMask

// Undefined is the zero handle.
const Undefined ID = 0

// Type returns the encoded object type.
func (id ID) Type() ObjectType {
	return ObjectType(uint32(id) >> typeShift)
}

// Generation returns the slot generation serial.
func (id ID) Generation() uint8 {
	return uint8((uint32(id) >> genShift) & genMask)
}

// Index returns the encoded slot index.
func (id ID) Index() int {
	return int(uint32(id) & indexMask)
}

// Defined reports whether id is non-zero.
func (id ID) Defined() bool {
	return id != Undefined
}

func (id ID) String() string {
	return fmt.Sprintf("0x%08x", uint32(id))
}

// Encode packs a type, generation and slot index into a handle.
func Encode(t ObjectType, gen uint8, index int) (ID, error) {
	if !t.Valid() {
		return Undefined, errors.IncorrectObjType(errors.PhaseIDMap, t)
	}
	if index < 0 || index > MaxIndex {
		return Undefined, errors.New(errors.PhaseIDMap, errors.KindInvalidID).
			Op("Encode").
			Value(index).
			Detail("slot index %d out of range", index).
			Build()
	}
	return ID(uint32(t)<<typeShift | uint32(gen)<<genShift | uint32(index)), nil
}

// Decode returns the slot index of id after checking that it carries the
// expected type and that the index fits within capacity.
func Decode(id ID, expected ObjectType, capacity int) (int, error) {
	if id.Type() != expected {
		return 0, errors.InvalidID(errors.PhaseIDMap, id)
	}
	idx := id.Index()
	if idx >= capacity {
		return 0, errors.InvalidID(errors.PhaseIDMap, id)
	}
	return idx, nil
}

// nextGeneration advances a slot generation, skipping zero on wrap.
func nextGeneration(g uint8) uint8 {
	g++
	if g == 0 {
		g = 1
	}
	return g
}
