package derivre

import "github.com/pkg/errors"

// Split splits the given input string using the pattern and returns
// a slice of the parts. Count limits the number of parts returned.
// If Count is -1, then it will process the input fully.
// If Count is 0, returns nil. If Count is 1, returns the original input.
// The only expected error is the DFA running out of its budget.
//
// Empty matches at the very start and end of input do not produce empty
// parts. For example, a pattern of ",*" Split("a,,b") returns
// ["a", "b"].
func (re *Regexp) Split(input string, count int) ([]string, error) {
	if count < -1 {
		return nil, errors.New("count too small")
	}
	if count == 0 {
		return nil, nil
	}
	if count == 1 {
		return []string{input}, nil
	}

	n := -1
	if count > 0 {
		n = count - 1
	}
	matches, err := re.FindAllStringIndex(input, n)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		// we never matched, return the original string
		return []string{input}, nil
	}

	priorIndex, end := 0, 0
	var retVal []string
	for _, m := range matches {
		end = m[0]
		if m[1] != 0 {
			retVal = append(retVal, input[priorIndex:end])
		}
		priorIndex = m[1]
	}
	// append our remainder, unless the last match was empty at the very end
	if end != len(input) {
		retVal = append(retVal, input[priorIndex:])
	}
	return retVal, nil
}
