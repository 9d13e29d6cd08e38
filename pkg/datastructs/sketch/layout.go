package sketch

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Layout constants. The order and width of every field is part of the
// persisted format and must not change without a new signature.
//
//	signature   19 bytes  "COUNTMINSKETCH:1.0:"
//	count        8 bytes  int64, sum of all deltas
//	width        4 bytes  uint32
//	depth        4 bytes  uint32
//	counters   4*w*d      int32, row-major
//	ha           4*d      uint32
//	hb           4*d      uint32
//
// All integers are little-endian.
const (
	signatureLen = len(Signature)
	headerSize   = 16
	counterSize  = 4
	coeffSize    = 4

	countOff    = signatureLen
	widthOff    = countOff + 8
	depthOff    = widthOff + 4
	countersOff = signatureLen + headerSize
)

// Signature prefixes every formatted buffer.
const Signature = "COUNTMINSKETCH:1.0:"

var signature = []byte(Signature)

// Buffer is externally owned storage a sketch is formatted into.
type Buffer interface {
	// Bytes returns the current contents. Writes to the slice are writes to the buffer.
	Bytes() []byte
	// Truncate resizes the buffer to exactly size bytes, zero-filling any growth.
	// It either succeeds completely or leaves the buffer untouched.
	Truncate(size int) error
}

// Sketch is a view over a formatted buffer. It holds no state of its own:
// counters, coefficients and the running count are read from and written to
// the underlying bytes.
type Sketch struct {
	data     []byte
	counters []byte
	ha       []byte
	hb       []byte
	width    int
	depth    int
}

// Format sizes buf for a width x depth sketch and writes an empty sketch into it.
// Dimensions are validated before buf is touched.
func Format(buf Buffer, width, depth int) (*Sketch, error) {
	if _, _, err := PlanByDimensions(int64(width), int64(depth)); err != nil {
		return nil, err
	}

	size := SizeOf(width, depth)
	if err := buf.Truncate(size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailure, err)
	}
	data := buf.Bytes()
	if len(data) != size {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrAllocationFailure, len(data), size)
	}

	copy(data, signature)
	binary.LittleEndian.PutUint64(data[countOff:], 0)
	binary.LittleEndian.PutUint32(data[widthOff:], uint32(width))
	binary.LittleEndian.PutUint32(data[depthOff:], uint32(depth))

	s := newView(data, width, depth)
	clear(s.counters)

	ha, hb := GenerateSeeds(depth, SeedValue)
	for i := 0; i < depth; i++ {
		binary.LittleEndian.PutUint32(s.ha[i*coeffSize:], ha[i])
		binary.LittleEndian.PutUint32(s.hb[i*coeffSize:], hb[i])
	}

	return s, nil
}

// Parse reinterprets data as a formatted sketch without copying it.
func Parse(data []byte) (*Sketch, error) {
	if len(data) < signatureLen || !bytes.Equal(data[:signatureLen], signature) {
		return nil, ErrInvalidSignature
	}
	if len(data) < countersOff {
		return nil, fmt.Errorf("%w: header truncated (got %d bytes, need at least %d)", ErrCorruptData, len(data), countersOff)
	}

	width := binary.LittleEndian.Uint32(data[widthOff:])
	depth := binary.LittleEndian.Uint32(data[depthOff:])
	if width < 1 || width > MaxDimension || depth < 1 || depth > MaxDimension {
		return nil, fmt.Errorf("%w: dimensions %dx%d out of range", ErrCorruptData, width, depth)
	}

	if want := SizeOf(int(width), int(depth)); len(data) != want {
		return nil, fmt.Errorf("%w: length mismatch (got %d bytes, expected %d)", ErrCorruptData, len(data), want)
	}

	return newView(data, int(width), int(depth)), nil
}

// New returns a width x depth sketch backed by its own memory.
func New(width, depth int) (*Sketch, error) {
	return Format(&memBuffer{}, width, depth)
}

func newView(data []byte, width, depth int) *Sketch {
	haOff := countersOff + counterSize*width*depth
	hbOff := haOff + coeffSize*depth
	return &Sketch{
		data:     data,
		counters: data[countersOff:haOff:haOff],
		ha:       data[haOff:hbOff:hbOff],
		hb:       data[hbOff:],
		width:    width,
		depth:    depth,
	}
}

// Width returns the number of counters per row.
func (s *Sketch) Width() int {
	return s.width
}

// Depth returns the number of rows.
func (s *Sketch) Depth() int {
	return s.depth
}

// Count returns the sum of every delta applied so far.
func (s *Sketch) Count() int64 {
	return int64(binary.LittleEndian.Uint64(s.data[countOff:]))
}

func (s *Sketch) setCount(c int64) {
	binary.LittleEndian.PutUint64(s.data[countOff:], uint64(c))
}

// Size returns the number of bytes the sketch occupies.
func (s *Sketch) Size() int {
	return len(s.data)
}

// Bytes returns the buffer the sketch lives in.
func (s *Sketch) Bytes() []byte {
	return s.data
}

// Counter returns the cell at (row, col).
func (s *Sketch) Counter(row, col int) int32 {
	return s.cell(row*s.width + col)
}

// HashA returns the multiplicative coefficient of row.
func (s *Sketch) HashA(row int) uint32 {
	return binary.LittleEndian.Uint32(s.ha[row*coeffSize:])
}

// HashB returns the additive coefficient of row.
func (s *Sketch) HashB(row int) uint32 {
	return binary.LittleEndian.Uint32(s.hb[row*coeffSize:])
}

func (s *Sketch) cell(idx int) int32 {
	return int32(binary.LittleEndian.Uint32(s.counters[idx*counterSize:]))
}

func (s *Sketch) setCell(idx int, v int32) {
	binary.LittleEndian.PutUint32(s.counters[idx*counterSize:], uint32(v))
}

// memBuffer is a Buffer over a private slice.
type memBuffer struct {
	b []byte
}

func (m *memBuffer) Bytes() []byte {
	return m.b
}

func (m *memBuffer) Truncate(size int) error {
	if size < 0 {
		return fmt.Errorf("negative size %d", size)
	}
	if size <= len(m.b) {
		m.b = m.b[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.b)
	m.b = grown
	return nil
}
