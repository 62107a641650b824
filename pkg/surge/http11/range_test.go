package http11

import (
	"strconv"
	"testing"
)

func TestParseRanges(t *testing.T) {
	tests := []struct {
		name   string
		header string
		length int64
		want   []ByteRange
		err    error
	}{
		{
			name:   "single range",
			header: "bytes=0-9",
			length: 100,
			want:   []ByteRange{{0, 10}},
		},
		{
			name:   "open end",
			header: "bytes=10-",
			length: 100,
			want:   []ByteRange{{10, 100}},
		},
		{
			name:   "suffix",
			header: "bytes=-20",
			length: 100,
			want:   []ByteRange{{80, 100}},
		},
		{
			name:   "two disjoint ranges stay separate",
			header: "bytes=0-9,20-29",
			length: 100,
			want:   []ByteRange{{0, 10}, {20, 30}},
		},
		{
			name:   "touching ranges merge",
			header: "bytes=0-9,10-19",
			length: 100,
			want:   []ByteRange{{0, 20}},
		},
		{
			name:   "overlapping ranges rejected",
			header: "bytes=0-9,5-14",
			length: 100,
			err:    ErrRangeOverlap,
		},
		{
			name:   "unsorted input sorted before merge",
			header: "bytes=20-29,0-9",
			length: 100,
			want:   []ByteRange{{0, 10}, {20, 30}},
		},
		{
			name:   "wrong unit",
			header: "lines=0-9",
			length: 100,
			err:    ErrRangeUnit,
		},
		{
			name:   "missing equals",
			header: "bytes",
			length: 100,
			err:    ErrRangeUnit,
		},
		{
			name:   "end before start",
			header: "bytes=10-5",
			length: 100,
			err:    ErrRangeInvalid,
		},
		{
			name:   "end beyond length",
			header: "bytes=0-100",
			length: 100,
			want:   []ByteRange{{0, 100}},
		},
		{
			name:   "suffix longer than body",
			header: "bytes=-200",
			length: 100,
			want:   []ByteRange{{0, 100}},
		},
		{
			name:   "empty fragment",
			header: "bytes=0-9,,20-29",
			length: 100,
			err:    ErrRangeInvalid,
		},
		{
			name:   "garbage",
			header: "bytes=abc-def",
			length: 100,
			err:    ErrRangeInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRanges(tt.header, tt.length)

			if tt.err != nil {
				if err != tt.err {
					t.Fatalf("error = %v, want %v", err, tt.err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d ranges, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("range %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseRangesTooManyFragments(t *testing.T) {
	header := "bytes="
	for i := 0; i < 20; i++ {
		if i > 0 {
			header += ","
		}
		header += rangeFragment(i)
	}

	if _, err := ParseRanges(header, 1000); err != ErrRangeInvalid {
		t.Errorf("error = %v, want ErrRangeInvalid", err)
	}
}

func rangeFragment(i int) string {
	start := int64(i * 40)
	return strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(start+9, 10)
}
