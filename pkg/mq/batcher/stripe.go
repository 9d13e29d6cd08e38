package batcher

// stripe represents a single buffer stripe.
// It is NOT thread-safe; Batcher guards it.
type stripe[T any] struct {
	cons Consumer[T]
	data []T
	cap  int
}

// newStripe creates a new stripe with the given consumer and capacity.
func newStripe[T any](cons Consumer[T], capacity int) *stripe[T] {
	return &stripe[T]{
		cons: cons,
		data: make([]T, 0, capacity),
		cap:  capacity,
	}
}

// Push appends an item to the stripe.
// If the stripe becomes full, it flushes data to the consumer.
func (s *stripe[T]) Push(item T) error {
	s.data = append(s.data, item)

	if len(s.data) >= s.cap {
		return s.Flush()
	}
	return nil
}

// Flush passes the buffered items to the consumer. The stripe is reset even
// when Consume fails; the error tells the caller that batch was not applied.
func (s *stripe[T]) Flush() error {
	if len(s.data) == 0 {
		return nil
	}

	batch := s.data
	// A fresh slice lets the Consumer keep the batch it was handed.
	s.data = make([]T, 0, s.cap)
	return s.cons.Consume(batch)
}
