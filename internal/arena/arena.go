// Package arena provides frame-scoped and pooled storage for the simulation
// step.
//
// An [Arena] is owned by a world and reset once at the start of every step.
// Typed [Slab] and [List] values register with it and hand out memory that is
// valid until the next reset. [Pool] keeps slots alive across frames for
// objects such as contact manifolds.
//
// # Thread Safety
//
// Allocation is single-threaded. Slices handed out before a parallel phase
// may be written concurrently as long as each goroutine owns its own slice.
package arena

import (
	"errors"
	"unsafe"

	"github.com/charmbracelet/log"
)

// ErrExhausted is reported when a slab's backing block cannot satisfy a
// request without growing.
var ErrExhausted = errors.New("arena: backing block exhausted")

// resetter is implemented by every storage registered with an arena.
type resetter interface {
	reset()
	footprint() int
}

// Stats summarises arena usage.
type Stats struct {
	Frame uint64
	Grows int
	Bytes int
	Peak  int
}

// Arena groups frame storage so it can be invalidated with one call.
type Arena struct {
	members []resetter
	frame   uint64
	grows   int
	peak    int
	logger  *log.Logger
}

// New creates an empty arena. A nil logger disables diagnostics.
func New(logger *log.Logger) *Arena {
	return &Arena{logger: logger}
}

// Reset invalidates every allocation made since the previous reset.
func (a *Arena) Reset() {
	for _, m := range a.members {
		m.reset()
	}
	a.frame++
}

// Frame returns the number of resets performed so far.
func (a *Arena) Frame() uint64 { return a.frame }

// Stats returns the current usage counters.
func (a *Arena) Stats() Stats {
	total := 0
	for _, m := range a.members {
		total += m.footprint()
	}
	if total > a.peak {
		a.peak = total
	}
	return Stats{Frame: a.frame, Grows: a.grows, Bytes: total, Peak: a.peak}
}

func (a *Arena) register(m resetter) {
	a.members = append(a.members, m)
}

func (a *Arena) grew(name string, from, to int) {
	a.grows++
	if a.logger != nil {
		a.logger.Debug("arena grow", "slab", name, "from", from, "to", to, "frame", a.frame)
	}
}

// Slab is a bump allocator over a typed backing block.
type Slab[T any] struct {
	arena *Arena
	name  string
	block []T
	used  int
}

// NewSlab registers a slab of the given initial capacity with a.
func NewSlab[T any](a *Arena, name string, capacity int) *Slab[T] {
	if capacity < 1 {
		capacity = 1
	}
	s := &Slab[T]{arena: a, name: name, block: make([]T, capacity)}
	a.register(s)
	return s
}

// TryAlloc returns n zeroed elements or ErrExhausted if the block is full.
func (s *Slab[T]) TryAlloc(n int) ([]T, error) {
	if n < 0 {
		panic("arena: negative allocation")
	}
	if s.used+n > len(s.block) {
		return nil, ErrExhausted
	}
	out := s.block[s.used : s.used+n : s.used+n]
	clear(out)
	s.used += n
	return out, nil
}

// Alloc returns n zeroed elements, growing the backing block when needed.
// Slices returned earlier in the frame keep referencing the old block.
func (s *Slab[T]) Alloc(n int) []T {
	out, err := s.TryAlloc(n)
	if err == nil {
		return out
	}
	size := 2 * len(s.block)
	if size < s.used+n {
		size = s.used + n
	}
	s.arena.grew(s.name, len(s.block), size)
	s.block = make([]T, size)
	s.used = 0
	out, err = s.TryAlloc(n)
	if err != nil {
		panic("arena: allocation failed after growth")
	}
	return out
}

// Cap returns the size of the backing block.
func (s *Slab[T]) Cap() int { return len(s.block) }

// Used returns the number of elements handed out this frame.
func (s *Slab[T]) Used() int { return s.used }

func (s *Slab[T]) reset() { s.used = 0 }

func (s *Slab[T]) footprint() int {
	var zero T
	return len(s.block) * int(unsafe.Sizeof(zero))
}

// List is a frame-scoped append-only list that keeps its backing array
// across resets.
type List[T any] struct {
	arena *Arena
	name  string
	items []T
}

// NewList registers a list with a.
func NewList[T any](a *Arena, name string, capacity int) *List[T] {
	l := &List[T]{arena: a, name: name, items: make([]T, 0, capacity)}
	a.register(l)
	return l
}

// Append adds v at the end of the list.
func (l *List[T]) Append(v T) {
	if len(l.items) == cap(l.items) {
		size := 2 * cap(l.items)
		if size == 0 {
			size = 8
		}
		l.arena.grew(l.name, cap(l.items), size)
		grown := make([]T, len(l.items), size)
		copy(grown, l.items)
		l.items = grown
	}
	l.items = append(l.items, v)
}

// Items returns the list content. The slice is valid until the next reset.
func (l *List[T]) Items() []T { return l.items }

// Len returns the number of items.
func (l *List[T]) Len() int { return len(l.items) }

// Truncate shrinks the list to n items.
func (l *List[T]) Truncate(n int) {
	if n < len(l.items) {
		l.items = l.items[:n]
	}
}

func (l *List[T]) reset() {
	clear(l.items)
	l.items = l.items[:0]
}

func (l *List[T]) footprint() int {
	var zero T
	return cap(l.items) * int(unsafe.Sizeof(zero))
}
