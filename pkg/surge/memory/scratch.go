// Package memory provides the per-connection scratch allocator used by the
// HTTP request/response cycle.
//
// A Scratch region hands out byte slices from large slabs and releases
// everything at once when the connection is rearmed for the next keep-alive
// request. Objects allocated together stay adjacent in memory for better
// cache behavior.
package memory

import (
	"sync"
	"sync/atomic"
)

// DefaultSlabSize is the slab granularity of a Scratch region.
const DefaultSlabSize = 8 * 1024

// Scratch is a region allocator reset between keep-alive requests.
// It is owned by a single connection and is not safe for concurrent use.
type Scratch struct {
	// Current slab and write offset
	slab   []byte
	offset int

	// Retired slabs, returned to the pool on Reset
	retired [][]byte

	slabSize int
	slabPool *sync.Pool

	bytesAllocated atomic.Uint64
}

// NewScratch creates a scratch region with the given slab size.
// A slabSize of 0 selects DefaultSlabSize.
func NewScratch(slabSize int) *Scratch {
	if slabSize == 0 {
		slabSize = DefaultSlabSize
	}

	return &Scratch{
		slabSize: slabSize,
		slabPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, slabSize)
				return &buf
			},
		},
	}
}

// Alloc returns an n-byte slice valid until the next Reset.
func (s *Scratch) Alloc(n int) []byte {
	// Large allocations bypass the slab and are dropped on Reset
	if n > s.slabSize/2 {
		s.bytesAllocated.Add(uint64(n))
		return make([]byte, n)
	}

	if s.slab == nil || s.offset+n > len(s.slab) {
		if s.slab != nil {
			s.retired = append(s.retired, s.slab)
		}

		slabPtr := s.slabPool.Get().(*[]byte)
		s.slab = *slabPtr
		s.offset = 0

		if len(s.slab) == 0 {
			s.slab = make([]byte, s.slabSize)
		}
	}

	out := s.slab[s.offset : s.offset+n : s.offset+n]
	s.offset += n
	s.bytesAllocated.Add(uint64(n))

	return out
}

// Dup copies b into the region.
func (s *Scratch) Dup(b []byte) []byte {
	out := s.Alloc(len(b))
	copy(out, b)
	return out
}

// DupString copies str into the region and returns it as a string whose
// backing bytes live in the region.
func (s *Scratch) DupString(str string) string {
	out := s.Alloc(len(str))
	copy(out, str)
	return string(out)
}

// Reset releases every allocation made since the previous Reset.
// Slices handed out earlier must not be used afterwards.
func (s *Scratch) Reset() {
	for _, slab := range s.retired {
		slab := slab
		s.slabPool.Put(&slab)
	}
	s.retired = s.retired[:0]

	s.offset = 0
}

// BytesAllocated returns the total bytes handed out over the region lifetime.
func (s *Scratch) BytesAllocated() uint64 {
	return s.bytesAllocated.Load()
}
