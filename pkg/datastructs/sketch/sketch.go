// Package sketch implements a Count-Min sketch that lives entirely inside a
// caller-owned byte buffer.
//
// A sketch is d rows of w signed 32-bit counters. Every item maps to one
// counter per row through an affine hash (a*h(item) + b) mod 2^31, and its
// estimated frequency is the minimum of those d counters. With non-negative
// deltas the estimate never undercounts; sized by PlanByErrorBound(e, p) it
// overcounts by more than e*Count() with probability at most p.
//
// Negative deltas are accepted so callers can retract counts, but once they
// are used the never-undercount guarantee no longer holds.
//
// Counters and the running count saturate at the bounds of their integer type
// instead of wrapping.
//
// A Sketch is a view: it does not copy or own its buffer and is not safe for
// concurrent use. Callers serialize writers on the buffer themselves.
package sketch

import (
	"math"

	"github.com/RedisLabsModules/countminsketch/pkg/hash"
)

// Increment adds delta to the counters of item.
func (s *Sketch) Increment(item []byte, delta int64) {
	s.increment(hash.Sum32(item), delta)
}

// IncrementString adds delta to the counters of item without allocating.
func (s *Sketch) IncrementString(item string, delta int64) {
	s.increment(hash.Sum32String(item), delta)
}

func (s *Sketch) increment(h uint32, delta int64) {
	for row := 0; row < s.depth; row++ {
		idx := row*s.width + s.column(row, h)
		s.setCell(idx, clamp32(addSat64(int64(s.cell(idx)), delta)))
	}
	s.setCount(addSat64(s.Count(), delta))
}

// Query returns the estimated frequency of item.
func (s *Sketch) Query(item []byte) int64 {
	return s.query(hash.Sum32(item))
}

// QueryString returns the estimated frequency of item without allocating.
func (s *Sketch) QueryString(item string) int64 {
	return s.query(hash.Sum32String(item))
}

func (s *Sketch) query(h uint32) int64 {
	est := int64(math.MaxInt64)
	for row := 0; row < s.depth; row++ {
		v := int64(s.cell(row*s.width + s.column(row, h)))
		if v < est {
			est = v
		}
	}
	return est
}

// column maps an item hash to a counter index within row.
// The affine step wraps at 32 bits; masking afterwards equals reduction mod 2^31.
func (s *Sketch) column(row int, h uint32) int {
	x := (s.HashA(row)*h + s.HashB(row)) & hashMask
	return int(x % uint32(s.width))
}

// addSat64 returns a+b clamped to the int64 range.
func addSat64(a, b int64) int64 {
	c := a + b
	if (c > a) != (b > 0) {
		if b > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return c
}

func clamp32(v int64) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
