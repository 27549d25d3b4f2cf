package idmap

import "fmt"

// ObjectType identifies a resource type. Values match the numbering used
// on the wire by existing flight software tools.
type ObjectType uint8

const (
	TypeUndefined ObjectType = 0x00
	TypeTask      ObjectType = 0x01
	TypeQueue     ObjectType = 0x02
	TypeCountSem  ObjectType = 0x03
	TypeBinSem    ObjectType = 0x04
	TypeMutex     ObjectType = 0x05
	TypeStream    ObjectType = 0x06
	TypeDir       ObjectType = 0x07
	TypeTimeBase  ObjectType = 0x08
	TypeTimeCB    ObjectType = 0x09
	TypeModule    ObjectType = 0x0A
	TypeFileSys   ObjectType = 0x0B
	TypeConsole   ObjectType = 0x0C

	// TypeUser is the first value reserved for application types.
	// It is also the exclusive upper bound of OSAL-managed types.
	TypeUser ObjectType = 0x10
)

var typeNames = [TypeUser]string{
	TypeUndefined: "undefined",
	TypeTask:      "task",
	TypeQueue:     "queue",
	TypeCountSem:  "countsem",
	TypeBinSem:    "binsem",
	TypeMutex:     "mutex",
	TypeStream:    "stream",
	TypeDir:       "dir",
	TypeTimeBase:  "timebase",
	TypeTimeCB:    "timecb",
	TypeModule:    "module",
	TypeFileSys:   "filesys",
	TypeConsole:   "console",
}

func (t ObjectType) String() string {
	if t < TypeUser && typeNames[t] != "" {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Valid reports whether t is an OSAL-managed type other than undefined.
func (t ObjectType) Valid() bool {
	return t > TypeUndefined && t < TypeUser && typeNames[t] != ""
}

// LockMode selects how long a lookup keeps the object safe from deletion.
type LockMode uint8

const (
	// LockNone performs no locking; the caller accepts torn reads.
	LockNone LockMode = iota
	// LockGlobal returns with the type lock held.
	LockGlobal
	// LockExclusive returns with the type lock held and no shared holders.
	LockExclusive
	// LockRefcount returns unlocked with a shared hold on the record.
	LockRefcount
)

func (m LockMode) String() string {
	switch m {
	case LockNone:
		return "none"
	case LockGlobal:
		return "global"
	case LockExclusive:
		return "exclusive"
	case LockRefcount:
		return "refcount"
	default:
		return fmt.Sprintf("lockmode(%d)", uint8(m))
	}
}

// Capacities holds the number of slots configured for each object type.
// A zero entry disables the type.
type Capacities [TypeUser]int

// DefaultCapacities returns the stock board configuration.
func DefaultCapacities() Capacities {
	var c Capacities
	c[TypeTask] = 64
	c[TypeQueue] = 64
	c[TypeCountSem] = 20
	c[TypeBinSem] = 20
	c[TypeMutex] = 20
	c[TypeStream] = 50
	c[TypeDir] = 4
	c[TypeTimeBase] = 5
	c[TypeTimeCB] = 5
	c[TypeModule] = 20
	c[TypeFileSys] = 14
	c[TypeConsole] = 1
	return c
}

// Total returns the number of records needed to hold every type.
func (c Capacities) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
