package batcher

// Consumer is the interface that must be implemented by users of the Batcher.
// It is responsible for processing a batch of items.
type Consumer[T any] interface {
	// Consume processes a batch of items.
	// Returns an error if processing fails.
	Consume(batch []T) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc[T any] func(batch []T) error

// Consume implements Consumer.
func (f ConsumerFunc[T]) Consume(batch []T) error {
	return f(batch)
}

// Config holds configuration for the Batcher.
type Config struct {
	// StripeSize is the capacity of the stripe buffer.
	// When the stripe reaches this size, it will be flushed to the Consumer.
	StripeSize int
}
