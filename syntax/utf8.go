package syntax

import (
	"unicode/utf8"

	"github.com/dlclark/derivre/helpers"
)

// utf8Sequences splits the code point range [lo, hi] into sequences of byte
// ranges, such that the UTF-8 encodings of the code points are exactly the
// byte strings matching one of the sequences. Surrogates are skipped.
func utf8Sequences(lo, hi rune, emit func(seq [][2]byte)) {
	if lo > hi {
		return
	}
	if lo < 0xD800 && hi > 0xDFFF {
		utf8Sequences(lo, 0xD7FF, emit)
		utf8Sequences(0xE000, hi, emit)
		return
	}
	if lo >= 0xD800 && lo <= 0xDFFF {
		lo = 0xE000
	}
	if hi >= 0xD800 && hi <= 0xDFFF {
		hi = 0xD7FF
	}
	if hi > utf8.MaxRune {
		hi = utf8.MaxRune
	}
	if lo > hi {
		return
	}
	// ranges must not span encodings of different lengths
	for _, max := range [...]rune{0x7F, 0x7FF, 0xFFFF} {
		if lo <= max && hi > max {
			utf8Sequences(lo, max, emit)
			utf8Sequences(max+1, hi, emit)
			return
		}
	}
	if hi <= 0x7F {
		emit([][2]byte{{byte(lo), byte(hi)}})
		return
	}
	// continuation bytes must cover full ranges except in the last position
	for i := 1; i < 4; i++ {
		m := rune(1)<<(6*i) - 1
		if lo&^m != hi&^m {
			if lo&m != 0 {
				utf8Sequences(lo, lo|m, emit)
				utf8Sequences((lo|m)+1, hi, emit)
				return
			}
			if hi&m != m {
				utf8Sequences(lo, (hi&^m)-1, emit)
				utf8Sequences(hi&^m, hi, emit)
				return
			}
		}
	}
	a := utf8.AppendRune(nil, lo)
	b := utf8.AppendRune(nil, hi)
	seq := make([][2]byte, len(a))
	for i := range a {
		seq[i] = [2]byte{a[i], b[i]}
	}
	emit(seq)
}

// MkRuneRanges matches the UTF-8 encoding of any code point in the given
// inclusive [lo, hi] pairs.
func (s *ExprSet) MkRuneRanges(ranges [][2]rune) ExprRef {
	var ascii helpers.ByteSet
	var alts []ExprRef
	for _, r := range ranges {
		utf8Sequences(r[0], r[1], func(seq [][2]byte) {
			if len(seq) == 1 {
				ascii.AddRange(seq[0][0], seq[0][1])
				return
			}
			parts := make([]ExprRef, len(seq))
			for i, br := range seq {
				parts[i] = s.MkByteRange(br[0], br[1])
			}
			alts = append(alts, s.MkConcatAll(parts...))
		})
	}
	alts = append(alts, s.MkByteSet(ascii))
	return s.MkOr(alts...)
}
