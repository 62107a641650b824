package memory

import (
	"bytes"
	"testing"
)

func TestScratchAlloc(t *testing.T) {
	s := NewScratch(1024)

	a := s.Alloc(16)
	if len(a) != 16 {
		t.Fatalf("Alloc(16) returned %d bytes", len(a))
	}

	b := s.Alloc(16)
	copy(a, "aaaaaaaaaaaaaaaa")
	copy(b, "bbbbbbbbbbbbbbbb")

	if !bytes.Equal(a, []byte("aaaaaaaaaaaaaaaa")) {
		t.Error("allocations overlap")
	}
}

func TestScratchDup(t *testing.T) {
	s := NewScratch(1024)

	src := []byte("hello world")
	dup := s.Dup(src)

	src[0] = 'X'
	if !bytes.Equal(dup, []byte("hello world")) {
		t.Errorf("Dup aliases source: %q", dup)
	}

	str := s.DupString("cookie=value")
	if str != "cookie=value" {
		t.Errorf("DupString = %q", str)
	}
}

func TestScratchLargeAlloc(t *testing.T) {
	s := NewScratch(1024)

	// Larger than half a slab bypasses slab storage
	big := s.Alloc(4096)
	if len(big) != 4096 {
		t.Fatalf("large Alloc returned %d bytes", len(big))
	}
}

func TestScratchResetReuse(t *testing.T) {
	s := NewScratch(256)

	// Force several slabs
	for i := 0; i < 32; i++ {
		s.Alloc(100)
	}

	s.Reset()

	// After reset, allocation starts over
	a := s.Alloc(8)
	if len(a) != 8 {
		t.Fatalf("post-reset Alloc returned %d bytes", len(a))
	}

	if s.BytesAllocated() == 0 {
		t.Error("BytesAllocated should count across resets")
	}
}

func TestScratchAllocCapped(t *testing.T) {
	s := NewScratch(1024)

	a := s.Alloc(8)
	a = append(a, 'x') // must not clobber the next allocation
	b := s.Alloc(8)
	copy(b, "12345678")

	if a[8] == '1' {
		t.Error("append into Alloc result clobbered the following allocation")
	}
}

func BenchmarkScratchAlloc(b *testing.B) {
	s := NewScratch(0)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.Alloc(64)
		if i%100 == 99 {
			s.Reset()
		}
	}
}
