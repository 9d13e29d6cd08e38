package redis

import "errors"

var (
	ErrConnectionFailed = errors.New("redis: connection failed")
	ErrPingFailed       = errors.New("redis: ping failed")
	// ErrTxConflict means every optimistic attempt lost a race with another writer.
	ErrTxConflict = errors.New("redis: transaction conflict, retries exhausted")
)
