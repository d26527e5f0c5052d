package arena

// Handle identifies a slot in a Pool.
type Handle int32

// NoHandle is never returned by Acquire.
const NoHandle Handle = -1

// Pool hands out stable slots that survive arena resets. Released slots are
// recycled in LIFO order so steady-state use never grows the backing array.
type Pool[T any] struct {
	slots []T
	live  []bool
	free  []Handle
	count int
}

// NewPool creates a pool with room for capacity slots.
func NewPool[T any](capacity int) *Pool[T] {
	return &Pool[T]{
		slots: make([]T, 0, capacity),
		live:  make([]bool, 0, capacity),
	}
}

// Acquire returns a zeroed slot and its handle.
//
// Pointers returned by At or Acquire are invalidated when the pool grows, so
// callers keep handles and resolve them after all acquisitions are done.
func (p *Pool[T]) Acquire() (Handle, *T) {
	var h Handle
	if n := len(p.free); n > 0 {
		h = p.free[n-1]
		p.free = p.free[:n-1]
		var zero T
		p.slots[h] = zero
	} else {
		var zero T
		h = Handle(len(p.slots))
		p.slots = append(p.slots, zero)
		p.live = append(p.live, false)
	}
	p.live[h] = true
	p.count++
	return h, &p.slots[h]
}

// Release returns a slot to the free list.
func (p *Pool[T]) Release(h Handle) {
	if !p.Live(h) {
		panic("arena: release of a dead pool slot")
	}
	var zero T
	p.slots[h] = zero
	p.live[h] = false
	p.free = append(p.free, h)
	p.count--
}

// At resolves a handle.
func (p *Pool[T]) At(h Handle) *T {
	if !p.Live(h) {
		panic("arena: access to a dead pool slot")
	}
	return &p.slots[h]
}

// Live reports whether h refers to an acquired slot.
func (p *Pool[T]) Live(h Handle) bool {
	return h >= 0 && int(h) < len(p.slots) && p.live[h]
}

// Len returns the number of live slots.
func (p *Pool[T]) Len() int { return p.count }

// Cap returns the number of slots ever allocated.
func (p *Pool[T]) Cap() int { return len(p.slots) }
