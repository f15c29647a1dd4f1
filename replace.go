package derivre

import (
	"bytes"

	"github.com/pkg/errors"
)

// Replace replaces the first count matches of the pattern in input with
// replacement, or every match when count is -1. The replacement is literal.
//
// Note that the special case of no matches is handled on its own:
// with no matches, the input string is returned unchanged.
func (re *Regexp) Replace(input, replacement string, count int) (string, error) {
	if count < -1 {
		return "", errors.New("count too small")
	}
	if count == 0 {
		return input, nil
	}

	matches, err := re.FindAllStringIndex(input, count)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return input, nil
	}

	buf := &bytes.Buffer{}
	prevat := 0
	for _, m := range matches {
		if m[0] != prevat {
			buf.WriteString(input[prevat:m[0]])
		}
		buf.WriteString(replacement)
		prevat = m[1]
	}
	if prevat < len(input) {
		buf.WriteString(input[prevat:])
	}
	return buf.String(), nil
}
