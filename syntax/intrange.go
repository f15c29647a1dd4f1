package syntax

import (
	"strconv"
	"strings"
)

// MkIntRange matches decimal integers in [lo, hi] written without leading
// zeros; negative numbers carry a '-' sign and "-0" is not accepted.
func (s *ExprSet) MkIntRange(lo, hi int64) ExprRef {
	if lo > hi {
		return NoMatch
	}
	var alts []ExprRef
	if lo < 0 {
		// magnitudes of the negative part
		mlo := uint64(1)
		if hi < 0 {
			mlo = absUint(hi)
		}
		alts = append(alts, s.MkConcat(s.MkByte('-'), s.mkUintRange(mlo, absUint(lo))))
	}
	if hi >= 0 {
		plo := uint64(0)
		if lo > 0 {
			plo = uint64(lo)
		}
		alts = append(alts, s.mkUintRange(plo, uint64(hi)))
	}
	return s.MkOr(alts...)
}

func absUint(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

func (s *ExprSet) mkUintRange(lo, hi uint64) ExprRef {
	var alts []ExprRef
	los, his := strconv.FormatUint(lo, 10), strconv.FormatUint(hi, 10)
	for n := len(los); n <= len(his); n++ {
		a, b := los, his
		if n > len(los) {
			a = "1" + strings.Repeat("0", n-1)
		}
		if n < len(his) {
			b = strings.Repeat("9", n)
		}
		alts = append(alts, s.mkDigitRange(a, b))
	}
	return s.MkOr(alts...)
}

// mkDigitRange matches fixed-width digit strings between a and b, which
// have equal length and a <= b.
func (s *ExprSet) mkDigitRange(a, b string) ExprRef {
	if len(a) == 0 {
		return EmptyString
	}
	if a[0] == b[0] {
		return s.MkConcat(s.MkByte(a[0]), s.mkDigitRange(a[1:], b[1:]))
	}
	n := len(a) - 1
	var alts []ExprRef
	loDigit, hiDigit := a[0], b[0]
	if strings.Trim(a[1:], "0") != "" {
		alts = append(alts, s.MkConcat(s.MkByte(a[0]), s.mkDigitRange(a[1:], strings.Repeat("9", n))))
		loDigit++
	}
	if strings.Trim(b[1:], "9") != "" {
		alts = append(alts, s.MkConcat(s.MkByte(b[0]), s.mkDigitRange(strings.Repeat("0", n), b[1:])))
		hiDigit--
	}
	if loDigit <= hiDigit {
		digits := s.MkRepeat(s.MkByteRange('0', '9'), uint32(n), uint32(n))
		alts = append(alts, s.MkConcat(s.MkByteRange(loDigit, hiDigit), digits))
	}
	return s.MkOr(alts...)
}
