package helpers

import "strconv"

// SpecialTokenPrefix starts the byte form of a special token. It never
// occurs in valid UTF-8, so the byte form cannot collide with text.
const SpecialTokenPrefix = 0xFF

// SpecialTokenBytes returns the byte form of special token tok: the prefix
// byte followed by the decimal token id in brackets, e.g. "\xFF[128001]".
func SpecialTokenBytes(tok uint32) []byte {
	r := []byte{SpecialTokenPrefix, '['}
	r = strconv.AppendUint(r, uint64(tok), 10)
	return append(r, ']')
}

// ParseSpecialToken is the inverse of SpecialTokenBytes.
func ParseSpecialToken(b []byte) (uint32, bool) {
	if len(b) < 4 || b[0] != SpecialTokenPrefix || b[1] != '[' || b[len(b)-1] != ']' {
		return 0, false
	}
	n, err := strconv.ParseUint(string(b[2:len(b)-1]), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
