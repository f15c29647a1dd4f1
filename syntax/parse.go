package syntax

import (
	resyntax "regexp/syntax"
	"unicode"

	"github.com/pkg/errors"
)

// ParseOptions control how regex source text is read.
type ParseOptions struct {
	CaseInsensitive bool
	// DotAll lets . match \n
	DotAll bool
	// AllowInvalidUTF8 lets . match any single byte. Character classes,
	// negated ones included, still match whole UTF-8 runes.
	AllowInvalidUTF8 bool
}

// ParseRegex parses regex source into an expression of this arena. The
// whole input must match; ^ and $ at the edges are accepted and ignored,
// anywhere else they are ErrUnsupported.
func (s *ExprSet) ParseRegex(pattern string) (ExprRef, error) {
	return s.ParseRegexWith(pattern, ParseOptions{})
}

func (s *ExprSet) ParseRegexWith(pattern string, opts ParseOptions) (ExprRef, error) {
	flags := resyntax.Perl
	if opts.CaseInsensitive {
		flags |= resyntax.FoldCase
	}
	if opts.DotAll {
		flags |= resyntax.DotNL
	}
	re, err := resyntax.Parse(pattern, flags)
	if err != nil {
		return InvalidRef, errors.Wrapf(err, "regex %q", pattern)
	}
	c := regexConverter{s: s, opts: opts}
	e, err := c.convert(trimAnchors(re, true, true))
	if err != nil {
		return InvalidRef, errors.Wrapf(err, "regex %q", pattern)
	}
	return e, nil
}

// trimAnchors drops the ^ that begin and the $ that end every alternative
// of re; atStart and atEnd tell whether re sits at that edge of the pattern.
func trimAnchors(re *resyntax.Regexp, atStart, atEnd bool) *resyntax.Regexp {
	switch re.Op {
	case resyntax.OpBeginText:
		if atStart {
			return &resyntax.Regexp{Op: resyntax.OpEmptyMatch, Flags: re.Flags}
		}
	case resyntax.OpEndText:
		if atEnd {
			return &resyntax.Regexp{Op: resyntax.OpEmptyMatch, Flags: re.Flags}
		}
	case resyntax.OpCapture:
		re.Sub[0] = trimAnchors(re.Sub[0], atStart, atEnd)
	case resyntax.OpAlternate:
		for i, sub := range re.Sub {
			re.Sub[i] = trimAnchors(sub, atStart, atEnd)
		}
	case resyntax.OpConcat:
		subs := re.Sub
		for atStart && len(subs) > 0 && subs[0].Op == resyntax.OpBeginText {
			subs = subs[1:]
		}
		for atEnd && len(subs) > 0 && subs[len(subs)-1].Op == resyntax.OpEndText {
			subs = subs[:len(subs)-1]
		}
		if len(subs) == 0 {
			return &resyntax.Regexp{Op: resyntax.OpEmptyMatch, Flags: re.Flags}
		}
		last := len(subs) - 1
		subs[0] = trimAnchors(subs[0], atStart, atEnd && last == 0)
		if last > 0 {
			subs[last] = trimAnchors(subs[last], false, atEnd)
		}
		re.Sub = subs
	}
	return re
}

type regexConverter struct {
	s    *ExprSet
	opts ParseOptions
}

func (c *regexConverter) convertAll(subs []*resyntax.Regexp) ([]ExprRef, error) {
	r := make([]ExprRef, len(subs))
	for i, sub := range subs {
		e, err := c.convert(sub)
		if err != nil {
			return nil, err
		}
		r[i] = e
	}
	return r, nil
}

func (c *regexConverter) convert(re *resyntax.Regexp) (ExprRef, error) {
	s := c.s
	if err := s.CheckCost(); err != nil {
		return InvalidRef, err
	}
	switch re.Op {
	case resyntax.OpNoMatch:
		return NoMatch, nil
	case resyntax.OpEmptyMatch:
		return EmptyString, nil
	case resyntax.OpBeginText, resyntax.OpEndText:
		return InvalidRef, errors.Wrap(ErrUnsupported, "^ or $ inside the pattern")

	case resyntax.OpLiteral:
		parts := make([]ExprRef, len(re.Rune))
		for i, r := range re.Rune {
			if re.Flags&resyntax.FoldCase != 0 {
				parts[i] = s.MkRuneRanges(foldRanges(r))
			} else {
				parts[i] = s.MkRuneRanges([][2]rune{{r, r}})
			}
		}
		return s.MkConcatAll(parts...), nil

	case resyntax.OpCharClass:
		ranges := make([][2]rune, 0, len(re.Rune)/2)
		for i := 0; i+1 < len(re.Rune); i += 2 {
			ranges = append(ranges, [2]rune{re.Rune[i], re.Rune[i+1]})
		}
		return s.MkRuneRanges(ranges), nil

	case resyntax.OpAnyChar:
		if c.opts.AllowInvalidUTF8 {
			return AnyByte, nil
		}
		return s.MkRuneRanges([][2]rune{{0, unicode.MaxRune}}), nil

	case resyntax.OpAnyCharNotNL:
		if c.opts.AllowInvalidUTF8 {
			return s.MkOr(s.MkByteRange(0, '\n'-1), s.MkByteRange('\n'+1, 0xff)), nil
		}
		return s.MkRuneRanges([][2]rune{{0, '\n' - 1}, {'\n' + 1, unicode.MaxRune}}), nil

	case resyntax.OpCapture:
		return c.convert(re.Sub[0])

	case resyntax.OpStar, resyntax.OpPlus, resyntax.OpQuest, resyntax.OpRepeat:
		inner, err := c.convert(re.Sub[0])
		if err != nil {
			return InvalidRef, err
		}
		min, max := uint32(0), uint32(RepeatInf)
		switch re.Op {
		case resyntax.OpPlus:
			min = 1
		case resyntax.OpQuest:
			max = 1
		case resyntax.OpRepeat:
			min = uint32(re.Min)
			if re.Max >= 0 {
				max = uint32(re.Max)
			}
		}
		return s.MkRepeat(inner, min, max), nil

	case resyntax.OpConcat:
		parts, err := c.convertAll(re.Sub)
		if err != nil {
			return InvalidRef, err
		}
		return s.MkConcatAll(parts...), nil

	case resyntax.OpAlternate:
		parts, err := c.convertAll(re.Sub)
		if err != nil {
			return InvalidRef, err
		}
		return s.MkOr(parts...), nil
	}
	return InvalidRef, errors.Wrapf(ErrUnsupported, "%v", re.Op)
}

// foldRanges lists the simple case folding orbit of r.
func foldRanges(r rune) [][2]rune {
	ranges := [][2]rune{{r, r}}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		ranges = append(ranges, [2]rune{f, f})
	}
	return ranges
}
