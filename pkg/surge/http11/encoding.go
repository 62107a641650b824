package http11

import "strings"

// ParseAcceptableEncodings turns an Accept-Encoding header value into a
// bitmap of acceptable codings.
//
// Mostly compliant: q=0 weights are respected but ordering beyond that is
// ignored, the caller is free to choose among acceptable codings. Codings
// named explicitly with a positive weight land in the high-priority set;
// '*' fills the low-priority set without overriding explicit entries.
// An empty or missing header accepts identity only.
func ParseAcceptableEncodings(header string) AcceptSet {
	header = strings.TrimSpace(header)
	if header == "" {
		return 1 << uint(Identity)
	}

	low := AcceptSet(1 << uint(Identity))
	var high AcceptSet

	// Codings named explicitly are immune to a later wildcard: the
	// wildcard only touches what the header never mentioned by name.
	var named AcceptSet

	for _, part := range strings.Split(header, ",") {
		name, quality, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.TrimSpace(name)
		quality = strings.TrimSpace(quality)

		forbidden := quality == "q=0"

		apply := func(set AcceptSet, bit AcceptSet) AcceptSet {
			if forbidden {
				return set &^ bit
			}
			return set | bit
		}

		switch name {
		case "identity":
			named |= 1 << uint(Identity)
			high = apply(high, 1<<uint(Identity))
			low = apply(low, 1<<uint(Identity))
		case "deflate":
			named |= 1 << uint(Deflate)
			high = apply(high, 1<<uint(Deflate))
			low = apply(low, 1<<uint(Deflate))
		case "gzip":
			named |= 1 << uint(Gzip)
			high = apply(high, 1<<uint(Gzip))
			low = apply(low, 1<<uint(Gzip))
		case "br":
			named |= 1 << uint(Brotli)
			high = apply(high, 1<<uint(Brotli))
			low = apply(low, 1<<uint(Brotli))
		case "zstd":
			named |= 1 << uint(Zstd)
			high = apply(high, 1<<uint(Zstd))
			low = apply(low, 1<<uint(Zstd))
		case "*":
			low = apply(low, allEncodings&^named)
		}
	}

	return high | low
}

// negotiate picks a coding from the acceptable set. Preferred codings win
// in order; otherwise the highest-ranked acceptable coding is chosen.
func negotiate(acceptable AcceptSet, preferred ...Encoding) (Encoding, bool) {
	for _, p := range preferred {
		if acceptable.Has(p) {
			return p, true
		}
	}
	return acceptable.Best()
}
