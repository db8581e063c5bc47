package memory

import "sync"

// Memory is a bounded, concurrency-safe history. Once full, storing a new
// item evicts the oldest one.
type Memory[T any] struct {
	stream   []T
	capacity int
	mu       sync.RWMutex
}

func NewMemory[T any](capacity int) *Memory[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory[T]{
		stream:   make([]T, 0, capacity),
		capacity: capacity,
	}
}

func (m *Memory[T]) Store(item T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stream = append(m.stream, item)
	if len(m.stream) > m.capacity {
		m.stream = m.stream[1:]
	}
}

// All returns a copy of every stored item, oldest first
func (m *Memory[T]) All() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]T, len(m.stream))
	copy(items, m.stream)
	return items
}

// Last returns a copy of the n most recent items, oldest first
func (m *Memory[T]) Last(n int) []T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > len(m.stream) {
		n = len(m.stream)
	}
	if n <= 0 {
		return nil
	}
	items := make([]T, n)
	copy(items, m.stream[len(m.stream)-n:])
	return items
}

func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stream)
}

func (m *Memory[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stream = m.stream[:0]
}
