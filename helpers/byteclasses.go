package helpers

// ByteClasses maps each byte value to an equivalence class. Two bytes share a
// class when no byte set of the compiled expressions tells them apart, so a
// DFA only needs one transition per class instead of one per byte.
type ByteClasses struct {
	classes  [256]byte
	alphaLen int
}

// SingletonByteClasses puts every byte in its own class (no compression).
func SingletonByteClasses() ByteClasses {
	var bc ByteClasses
	for i := 0; i < 256; i++ {
		bc.classes[i] = byte(i)
	}
	bc.alphaLen = 256
	return bc
}

func (bc *ByteClasses) Get(b byte) byte {
	return bc.classes[b]
}

// AlphabetLen is the number of distinct classes.
func (bc *ByteClasses) AlphabetLen() int {
	return bc.alphaLen
}

func (bc *ByteClasses) IsSingleton() bool {
	return bc.alphaLen == 256
}

// Representatives returns the lowest byte of each class, indexed by class.
func (bc *ByteClasses) Representatives() []byte {
	reps := make([]byte, 0, bc.alphaLen)
	seen := [256]bool{}
	for b := 0; b < 256; b++ {
		c := bc.classes[b]
		if !seen[c] {
			seen[c] = true
			reps = append(reps, byte(b))
		}
	}
	return reps
}

// Elements returns all bytes of the given class.
func (bc *ByteClasses) Elements(class byte) ByteSet {
	var s ByteSet
	for b := 0; b < 256; b++ {
		if bc.classes[b] == class {
			s.Add(byte(b))
		}
	}
	return s
}

// ByteClassSet collects class boundaries: bit b is set when bytes b and b+1
// may behave differently.
type ByteClassSet struct {
	bits ByteSet
}

func (bcs *ByteClassSet) SetRange(start, end byte) {
	if start > 0 {
		bcs.bits.Add(start - 1)
	}
	bcs.bits.Add(end)
}

func (bcs *ByteClassSet) SetByte(b byte) {
	bcs.SetRange(b, b)
}

// SetByteSet marks the boundaries of every contiguous range in s.
func (bcs *ByteClassSet) SetByteSet(s ByteSet) {
	for _, r := range s.Ranges() {
		bcs.SetRange(r[0], r[1])
	}
}

func (bcs *ByteClassSet) Merge(other *ByteClassSet) {
	bcs.bits = bcs.bits.Union(other.bits)
}

// ByteClasses converts the boundaries into a lookup table.
func (bcs *ByteClassSet) ByteClasses() ByteClasses {
	var bc ByteClasses
	class := 0
	for b := 0; b < 256; b++ {
		bc.classes[b] = byte(class)
		if b < 255 && bcs.bits.Has(byte(b)) {
			class++
		}
	}
	bc.alphaLen = class + 1
	return bc
}
