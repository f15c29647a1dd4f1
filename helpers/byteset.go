package helpers

import (
	"fmt"
	"math/bits"
	"strings"
)

// ByteSet is a bitmap over all 256 byte values.
// Each byte is represented by a bit in this array.
type ByteSet [4]uint64

// FullByteSet has every byte set.
var FullByteSet = ByteSet{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}

func NewByteSet(vals ...byte) ByteSet {
	s := ByteSet{}
	for _, c := range vals {
		s.Add(c)
	}
	return s
}

// ByteRangeSet returns the set of bytes in [first, last].
func ByteRangeSet(first, last byte) ByteSet {
	s := ByteSet{}
	s.AddRange(first, last)
	return s
}

func (s *ByteSet) Add(c byte) {
	s[c/64] |= 1 << (c % 64)
}

func (s *ByteSet) AddRange(first, last byte) {
	for c := int(first); c <= int(last); c++ {
		s.Add(byte(c))
	}
}

func (s *ByteSet) Remove(c byte) {
	s[c/64] &^= 1 << (c % 64)
}

func (s ByteSet) Has(c byte) bool {
	return s[c/64]&(1<<(c%64)) != 0
}

func (s ByteSet) IsEmpty() bool {
	return s[0]|s[1]|s[2]|s[3] == 0
}

func (s ByteSet) IsFull() bool {
	return s == FullByteSet
}

func (s ByteSet) Len() int {
	return bits.OnesCount64(s[0]) + bits.OnesCount64(s[1]) +
		bits.OnesCount64(s[2]) + bits.OnesCount64(s[3])
}

// Single returns the only byte of a one-element set.
func (s ByteSet) Single() (byte, bool) {
	if s.Len() != 1 {
		return 0, false
	}
	return s.First(), true
}

// First returns the lowest byte in the set, or 0 when empty.
func (s ByteSet) First() byte {
	for i, w := range s {
		if w != 0 {
			return byte(i*64 + bits.TrailingZeros64(w))
		}
	}
	return 0
}

func (s ByteSet) Union(o ByteSet) ByteSet {
	return ByteSet{s[0] | o[0], s[1] | o[1], s[2] | o[2], s[3] | o[3]}
}

func (s ByteSet) Intersect(o ByteSet) ByteSet {
	return ByteSet{s[0] & o[0], s[1] & o[1], s[2] & o[2], s[3] & o[3]}
}

func (s ByteSet) Minus(o ByteSet) ByteSet {
	return ByteSet{s[0] &^ o[0], s[1] &^ o[1], s[2] &^ o[2], s[3] &^ o[3]}
}

func (s ByteSet) Complement() ByteSet {
	return ByteSet{^s[0], ^s[1], ^s[2], ^s[3]}
}

func (s ByteSet) IsSubsetOf(o ByteSet) bool {
	return s.Minus(o).IsEmpty()
}

func (s ByteSet) Overlaps(o ByteSet) bool {
	return !s.Intersect(o).IsEmpty()
}

// ForEach calls f for every byte in the set in ascending order.
func (s ByteSet) ForEach(f func(c byte)) {
	for i, w := range s {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			f(byte(i*64 + tz))
			w &= w - 1
		}
	}
}

// Ranges returns the set as sorted inclusive [first, last] pairs.
func (s ByteSet) Ranges() [][2]byte {
	var ret [][2]byte
	inRange := false
	var start byte
	for c := 0; c < 256; c++ {
		if s.Has(byte(c)) {
			if !inRange {
				start = byte(c)
				inRange = true
			}
		} else if inRange {
			ret = append(ret, [2]byte{start, byte(c - 1)})
			inRange = false
		}
	}
	if inRange {
		ret = append(ret, [2]byte{start, 255})
	}
	return ret
}

// Words exposes the bitmap as uint32 words for hash-consed encodings.
func (s ByteSet) Words() [8]uint32 {
	var w [8]uint32
	for i, v := range s {
		w[2*i] = uint32(v)
		w[2*i+1] = uint32(v >> 32)
	}
	return w
}

// ByteSetFromWords is the inverse of Words.
func ByteSetFromWords(w []uint32) ByteSet {
	var s ByteSet
	for i := range s {
		s[i] = uint64(w[2*i]) | uint64(w[2*i+1])<<32
	}
	return s
}

// String describes the set in character class syntax, e.g. [a-z_].
func (s ByteSet) String() string {
	if s.IsFull() {
		return "[\\x00-\\xFF]"
	}
	buf := &strings.Builder{}
	buf.WriteByte('[')
	for _, r := range s.Ranges() {
		buf.WriteString(ByteDescription(r[0]))
		if r[1] != r[0] {
			if r[1] != r[0]+1 {
				buf.WriteByte('-')
			}
			buf.WriteString(ByteDescription(r[1]))
		}
	}
	buf.WriteByte(']')
	return buf.String()
}

// ByteDescription renders a single byte for debug output.
func ByteDescription(c byte) string {
	switch {
	case c == '\\' || c == '[' || c == ']' || c == '-' || c == '^':
		return "\\" + string(rune(c))
	case c == '\n':
		return "\\n"
	case c == '\t':
		return "\\t"
	case c == '\r':
		return "\\r"
	case c >= 0x20 && c < 0x7f:
		return string(rune(c))
	}
	return fmt.Sprintf("\\x%02X", c)
}

// IndexOfAny returns the first index in b of a byte in s, or -1.
func (s ByteSet) IndexOfAny(b string) int {
	for i := 0; i < len(b); i++ {
		if s.Has(b[i]) {
			return i
		}
	}
	return -1
}

// IndexOfAnyExcept returns the first index in b of a byte not in s, or -1.
func (s ByteSet) IndexOfAnyExcept(b string) int {
	for i := 0; i < len(b); i++ {
		if !s.Has(b[i]) {
			return i
		}
	}
	return -1
}
