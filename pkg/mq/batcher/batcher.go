package batcher

import (
	"sync"
)

const defaultStripeSize = 512

// Batcher collects items pushed from any number of goroutines and hands them
// to a Consumer in batches of up to StripeSize.
//
// Behavior:
//   - Push appends to a shared stripe. When the stripe fills, it is consumed
//     synchronously on the pushing goroutine and its error is returned.
//   - Flush consumes whatever is pending. Nothing pushed before Flush returns
//     is left behind, so counts are never silently dropped on shutdown.
//   - Consume calls never overlap; batches reach the Consumer in push order.
type Batcher[T any] struct {
	mu sync.Mutex
	s  *stripe[T]
}

// New creates a new Batcher for type T.
func New[T any](cons Consumer[T], cfg Config) *Batcher[T] {
	// Default config
	if cfg.StripeSize <= 0 {
		cfg.StripeSize = defaultStripeSize
	}

	return &Batcher[T]{
		s: newStripe[T](cons, cfg.StripeSize),
	}
}

// Push adds an item to the batcher.
// It may trigger a flush to Consumer if the stripe becomes full.
func (b *Batcher[T]) Push(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s.Push(item)
}

// Flush hands any pending items to the Consumer.
func (b *Batcher[T]) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s.Flush()
}

// Pending returns the number of items waiting for the next flush.
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.s.data)
}
