package timebase

import "github.com/wippyai/osal/idmap"

// link is the intrusive prev/next pair embedded in every timer callback
// record. A detached record points at itself.
type link struct {
	prev int
	next int
}

// ring is a circular doubly-linked list threaded through the timer
// callback table by slot index. Callers hold the owning timebase lock.
type ring struct {
	cbs *idmap.Table[callbackRecord]
}

func (r ring) link(idx int) *link {
	return &r.cbs.At(idx).link
}

// detach makes idx a list of one.
func (r ring) detach(idx int) {
	l := r.link(idx)
	l.prev, l.next = idx, idx
}

func (r ring) detached(idx int) bool {
	l := r.link(idx)
	return l.prev == idx && l.next == idx
}

// insertBefore splices the detached record idx in front of at.
func (r ring) insertBefore(idx, at int) {
	if !r.detached(idx) {
		panic("timebase: inserting a linked callback")
	}
	n := r.link(idx)
	a := r.link(at)
	n.next = at
	n.prev = a.prev
	r.link(a.prev).next = idx
	a.prev = idx
}

// remove unlinks idx and returns the record that followed it, or -1 when
// idx was the only member. idx is left detached.
func (r ring) remove(idx int) int {
	l := r.link(idx)
	if l.next == idx {
		return -1
	}
	next := l.next
	r.link(l.prev).next = l.next
	r.link(l.next).prev = l.prev
	r.detach(idx)
	return next
}

// walk visits every member once, starting at start. fn must not modify
// the list.
func (r ring) walk(start int, fn func(idx int)) {
	idx := start
	for {
		fn(idx)
		idx = r.link(idx).next
		if idx == start {
			return
		}
	}
}
