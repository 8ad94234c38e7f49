package zorder

import (
	"fmt"
	"strings"
)

// Code is a Morton code stored as big-endian 64-bit words. An N-dimensional
// code occupies N words.
type Code []uint64

// Encode interleaves the bits of the components, most significant bit level
// first, with component 0 the most significant within each level.
func Encode(components []uint64) Code {
	n := len(components)
	code := make(Code, n)
	for level := 63; level >= 0; level-- {
		for d, c := range components {
			if (c>>uint(level))&1 == 0 {
				continue
			}
			pos := (63-level)*n + d
			code[pos/64] |= 1 << uint(63-pos%64)
		}
	}
	return code
}

// Compare orders codes numerically. Codes of different lengths are compared
// word by word and then by length.
func (c Code) Compare(o Code) int {
	for i := 0; i < len(c) && i < len(o); i++ {
		switch {
		case c[i] < o[i]:
			return -1
		case c[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(c) < len(o):
		return -1
	case len(c) > len(o):
		return 1
	}
	return 0
}

func (c Code) String() string {
	parts := make([]string, len(c))
	for i, w := range c {
		parts[i] = fmt.Sprintf("%016x", w)
	}
	return strings.Join(parts, "")
}
