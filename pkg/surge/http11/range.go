package http11

import (
	"sort"
	"strconv"
	"strings"
)

// ByteRange is a half-open [Start, End) slice of a response body.
type ByteRange struct {
	Start int64
	End   int64
}

// maxRangeFragments caps the number of fragments in one Range header.
const maxRangeFragments = 16

// ParseRanges parses a Range header value against a body of the given
// length. Fragments are clamped, sorted by start and merged when touching;
// ranges that overlap before merging are refused with ErrRangeOverlap so
// the caller can answer 416.
func ParseRanges(header string, length int64) ([]ByteRange, error) {
	unit, spec, found := strings.Cut(header, "=")
	if !found || strings.TrimSpace(unit) != "bytes" {
		return nil, ErrRangeUnit
	}

	var ranges []ByteRange

	for _, part := range strings.Split(spec, ",") {
		if len(ranges) >= maxRangeFragments {
			return nil, ErrRangeInvalid
		}

		part = strings.TrimSpace(part)
		if part == "" {
			return nil, ErrRangeInvalid
		}

		startStr, endStr, found := strings.Cut(part, "-")
		if !found {
			return nil, ErrRangeInvalid
		}
		startStr = strings.TrimSpace(startStr)
		endStr = strings.TrimSpace(endStr)

		var r ByteRange

		if startStr != "" {
			start, err := strconv.ParseInt(startStr, 10, 64)
			if err != nil || start < 0 || start > length {
				return nil, ErrRangeInvalid
			}
			r.Start = start

			if endStr != "" {
				end, err := strconv.ParseInt(endStr, 10, 64)
				if err != nil || end < 0 || end < start {
					return nil, ErrRangeInvalid
				}
				if end >= length {
					end = length - 1
				}
				r.End = end + 1
			} else {
				r.End = length
			}
		} else {
			// Suffix form: -N means the last N bytes
			suffix, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil || suffix < 0 {
				return nil, ErrRangeInvalid
			}
			if suffix > length {
				suffix = length
			}
			r.Start = length - suffix
			r.End = length
		}

		ranges = append(ranges, r)
	}

	if len(ranges) >= 2 {
		sort.Slice(ranges, func(i, j int) bool {
			return ranges[i].Start < ranges[j].Start
		})

		j := 1
		for i := 1; i < len(ranges); i++ {
			prev := &ranges[j-1]
			r := ranges[i]

			switch {
			case r.Start < prev.End:
				return nil, ErrRangeOverlap
			case r.Start == prev.End:
				prev.End = r.End
			default:
				ranges[j] = r
				j++
			}
		}
		ranges = ranges[:j]
	}

	return ranges, nil
}
