package helpers

import "testing"

func TestByteClasses_Ranges(t *testing.T) {
	var bcs ByteClassSet
	bcs.SetByteSet(ByteRangeSet('a', 'z'))
	bcs.SetByte('_')
	bc := bcs.ByteClasses()

	// [0,'_'-1], '_', ['_'+1,'a'-1], [a-z], ['z'+1,255]
	if want, got := 5, bc.AlphabetLen(); want != got {
		t.Fatalf("want %v got %v", want, got)
	}
	if bc.Get('a') != bc.Get('q') || bc.Get('a') == bc.Get('_') || bc.Get('`') == bc.Get('a') {
		t.Fatalf("bad classes: %v %v %v %v", bc.Get('a'), bc.Get('q'), bc.Get('_'), bc.Get('`'))
	}
	reps := bc.Representatives()
	if want, got := []byte{0, '_', '`', 'a', '{'}, reps; string(want) != string(got) {
		t.Fatalf("want %v got %v", want, got)
	}
	if want, got := ByteRangeSet('a', 'z'), bc.Elements(bc.Get('m')); want != got {
		t.Fatalf("want %v got %v", want, got)
	}
}

func TestByteClasses_EdgeBytes(t *testing.T) {
	var bcs ByteClassSet
	bcs.SetByte(0)
	bcs.SetByte(255)
	bc := bcs.ByteClasses()
	if want, got := 3, bc.AlphabetLen(); want != got {
		t.Fatalf("want %v got %v", want, got)
	}
	if want, got := byte(2), bc.Get(255); want != got {
		t.Fatalf("want %v got %v", want, got)
	}

	var empty ByteClassSet
	one := empty.ByteClasses()
	if want, got := 1, one.AlphabetLen(); want != got {
		t.Fatalf("want %v got %v", want, got)
	}
	single := SingletonByteClasses()
	if !single.IsSingleton() || single.Get(77) != 77 {
		t.Fatalf("singleton classes broken")
	}
}
