// Package layout maps logical strip positions to physical LED indices.
package layout

// Strip describes how the physical strip is wired relative to the positions
// effects draw at. Offset rotates the strip; Reverse runs it backwards.
type Strip struct {
	Length  int  `yaml:"length" toml:"length"`
	Reverse bool `yaml:"reverse" toml:"reverse"`
	Offset  int  `yaml:"offset" toml:"offset"`
}

// Count returns the number of LEDs.
func (s Strip) Count() int {
	if s.Length < 0 {
		return 0
	}
	return s.Length
}

// Index maps logical position pos to its physical LED index (0..N-1).
func (s Strip) Index(pos int) int {
	n := s.Count()
	if n == 0 {
		return 0
	}
	i := ((pos+s.Offset)%n + n) % n
	if s.Reverse {
		i = n - 1 - i
	}
	return i
}

// Identity reports whether Index is the identity mapping.
func (s Strip) Identity() bool {
	n := s.Count()
	return !s.Reverse && (n == 0 || s.Offset%n == 0)
}

// Apply writes src, indexed by logical position, into dst in physical
// order. dst and src must not overlap and must hold Count() entries.
func Apply[T any](s Strip, dst, src []T) {
	if s.Identity() {
		copy(dst, src)
		return
	}
	for pos := 0; pos < s.Count() && pos < len(src); pos++ {
		dst[s.Index(pos)] = src[pos]
	}
}
