package arena

import "sync"

// Extensible wraps an Arena with interior mutability and shared ownership so
// that multiple components (e.g. the term heap and the compiler's constant
// interner) can hold long-lived references to the same backing store while
// one of them allocates. Growth reallocates the underlying buffer but never
// invalidates previously handed-out Pointers, since all access is by offset.
type Extensible struct {
	mu    sync.RWMutex
	arena *Arena
}

// NewExtensible wraps a fresh Arena of the given capacity hint.
func NewExtensible(capacityHint int) *Extensible {
	return &Extensible{arena: New(capacityHint)}
}

// Allocate appends data under the write lock.
func (e *Extensible) Allocate(data []byte) Pointer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.Allocate(data)
}

// Reserve reserves n zero bytes under the write lock.
func (e *Extensible) Reserve(n int) Pointer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.Reserve(n)
}

// Bytes reads under the read lock.
func (e *Extensible) Bytes(p Pointer, n int) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	// Copy out before releasing the lock: growth in another goroutine may
	// reallocate the backing array after we return.
	b, err := e.arena.Bytes(p, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Write overwrites under the write lock.
func (e *Extensible) Write(p Pointer, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.Write(p, data)
}

// HighWaterMark reads the frontier under the read lock.
func (e *Extensible) HighWaterMark() Pointer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.arena.HighWaterMark()
}

// Extend grows an allocation under the write lock.
func (e *Extensible) Extend(p Pointer, originalLen, delta int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.Extend(p, originalLen, delta)
}

// Shrink reclaims an over-reserved tail under the write lock.
func (e *Extensible) Shrink(p Pointer, originalLen, actualLen int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.Shrink(p, originalLen, actualLen)
}
