// Package pool is a fixed-capacity arena of uid-keyed slots that keeps
// insertion order. Nothing is allocated after New.
package pool

// DefaultCapacity is the historical effect heap size.
const DefaultCapacity = 50

const none = -1

// Ref names an occupied slot. A Ref goes stale once its slot is released;
// Get reports stale refs instead of returning the slot's new occupant.
type Ref struct {
	idx int
	gen uint32
}

type slot[T any] struct {
	used  bool
	gen   uint32
	uid   uint8
	next  int
	value T
}

// Pool holds at most Cap() values, at most one per uid.
type Pool[T any] struct {
	slots []slot[T]
	head  int
	tail  int
	n     int
}

// New allocates a pool with room for capacity values.
func New[T any](capacity int) *Pool[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool[T]{slots: make([]slot[T], capacity)}
	p.Clear()
	return p
}

// Cap returns the number of slots.
func (p *Pool[T]) Cap() int { return len(p.slots) }

// Len returns the number of occupied slots.
func (p *Pool[T]) Len() int { return p.n }

// Acquire stores v under uid on top of the stack. Any value already held
// under uid is released first. It returns false when no slot is free.
func (p *Pool[T]) Acquire(uid uint8, v T) (Ref, bool) {
	p.Release(uid)
	idx := none
	for i := range p.slots {
		if !p.slots[i].used {
			idx = i
			break
		}
	}
	if idx == none {
		return Ref{}, false
	}
	s := &p.slots[idx]
	s.used = true
	s.gen++
	s.uid = uid
	s.next = none
	s.value = v
	if p.tail == none {
		p.head = idx
	} else {
		p.slots[p.tail].next = idx
	}
	p.tail = idx
	p.n++
	return Ref{idx: idx, gen: s.gen}, true
}

// Find returns the ref of the value held under uid.
func (p *Pool[T]) Find(uid uint8) (Ref, bool) {
	for i := p.head; i != none; i = p.slots[i].next {
		if p.slots[i].uid == uid {
			return Ref{idx: i, gen: p.slots[i].gen}, true
		}
	}
	return Ref{}, false
}

// Get returns the value behind r, or false if r is stale.
func (p *Pool[T]) Get(r Ref) (*T, bool) {
	if r.idx < 0 || r.idx >= len(p.slots) {
		return nil, false
	}
	s := &p.slots[r.idx]
	if !s.used || s.gen != r.gen {
		return nil, false
	}
	return &s.value, true
}

// UID returns the uid r was acquired under.
func (p *Pool[T]) UID(r Ref) (uint8, bool) {
	if _, ok := p.Get(r); !ok {
		return 0, false
	}
	return p.slots[r.idx].uid, true
}

// Release frees the slot held under uid. It reports whether one was held.
func (p *Pool[T]) Release(uid uint8) bool {
	prev := none
	for i := p.head; i != none; prev, i = i, p.slots[i].next {
		if p.slots[i].uid == uid {
			p.unlink(prev, i)
			return true
		}
	}
	return false
}

// ReleaseRef frees the slot behind r if r is still current.
func (p *Pool[T]) ReleaseRef(r Ref) bool {
	if _, ok := p.Get(r); !ok {
		return false
	}
	prev := none
	for i := p.head; i != none; prev, i = i, p.slots[i].next {
		if i == r.idx {
			p.unlink(prev, i)
			return true
		}
	}
	return false
}

// unlink removes slot i, whose predecessor in order is prev.
func (p *Pool[T]) unlink(prev, i int) {
	s := &p.slots[i]
	if prev == none {
		p.head = s.next
	} else {
		p.slots[prev].next = s.next
	}
	if p.tail == i {
		p.tail = prev
	}
	var zero T
	s.value = zero
	s.used = false
	s.next = none
	p.n--
}

// Each calls fn on every value, oldest first. When fn returns true the
// value is released; iteration continues with the next value without
// skipping or revisiting any.
func (p *Pool[T]) Each(fn func(uid uint8, v *T) (remove bool)) {
	prev := none
	for i := p.head; i != none; {
		next := p.slots[i].next
		if fn(p.slots[i].uid, &p.slots[i].value) {
			p.unlink(prev, i)
		} else {
			prev = i
		}
		i = next
	}
}

// UIDs returns the occupied uids in stack order.
func (p *Pool[T]) UIDs() []uint8 {
	out := make([]uint8, 0, p.n)
	for i := p.head; i != none; i = p.slots[i].next {
		out = append(out, p.slots[i].uid)
	}
	return out
}

// Clear releases every slot.
func (p *Pool[T]) Clear() {
	var zero T
	for i := range p.slots {
		p.slots[i].used = false
		p.slots[i].next = none
		p.slots[i].value = zero
	}
	p.head, p.tail, p.n = none, none, 0
}
