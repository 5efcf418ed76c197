// Package ring provides a fixed-capacity FIFO buffer that evicts its oldest
// element when full. It is not safe for concurrent use; owners guard it with
// their own lock.
package ring

// Buffer is a bounded FIFO backed by a circular slice.
type Buffer[T any] struct {
	buf  []T
	head int // index of the oldest element
	n    int
}

// New returns an empty Buffer holding at most capacity elements.
// capacity must be positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends v. When the buffer is full the oldest element is dropped and
// returned with evicted=true.
func (b *Buffer[T]) Push(v T) (old T, evicted bool) {
	if b.n < len(b.buf) {
		b.buf[(b.head+b.n)%len(b.buf)] = v
		b.n++
		return old, false
	}
	old = b.buf[b.head]
	b.buf[b.head] = v
	b.head = (b.head + 1) % len(b.buf)
	return old, true
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int { return b.n }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.buf) }

// Snapshot returns the buffered elements, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.n)
	for i := 0; i < b.n; i++ {
		out[i] = b.buf[(b.head+i)%len(b.buf)]
	}
	return out
}

// Each calls fn for every element, oldest first, until fn returns false.
func (b *Buffer[T]) Each(fn func(T) bool) {
	for i := 0; i < b.n; i++ {
		if !fn(b.buf[(b.head+i)%len(b.buf)]) {
			return
		}
	}
}
