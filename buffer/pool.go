// Package buffer provides a pool of []byte for payloads crossing the boundary.
package buffer

import (
	"errors"
	"math/bits"
	"sync"
)

const (
	// MaxSegmentSize is the largest payload served from the pool. Larger
	// requests fall back to the heap.
	MaxSegmentSize = 1 << 16

	// minClassShift is the smallest size class (512 bytes).
	minClassShift = 9
	maxClassShift = 16
)

var errInvalidBuffer = errors.New("buffer: capacity is not a pooled size class")

// pools[i] serves slices of capacity 1<<(i+minClassShift).
var pools [maxClassShift - minClassShift + 1]sync.Pool

func init() {
	for i := range pools {
		size := 1 << (i + minClassShift)
		pools[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
}

func classFor(size int) int {
	if size <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len(uint(size - 1))
	return shift - minClassShift
}

// Get returns a slice of length size from the smallest fitting class, or nil
// when size is zero or above MaxSegmentSize.
func Get(size int) []byte {
	if size <= 0 || size > MaxSegmentSize {
		return nil
	}
	bp := pools[classFor(size)].Get().(*[]byte)
	return (*bp)[:size]
}

// Put returns buf to the pool. buf must have been obtained from Get and
// restored to its full capacity.
func Put(buf []byte) error {
	c := cap(buf)
	if c == 0 || c > MaxSegmentSize || c&(c-1) != 0 || c < 1<<minClassShift {
		return errInvalidBuffer
	}
	buf = buf[:c]
	pools[classFor(c)].Put(&buf)
	return nil
}
