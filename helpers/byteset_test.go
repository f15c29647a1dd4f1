package helpers

import "testing"

func TestByteSet_Basic(t *testing.T) {
	s := NewByteSet('a', 'z', 0, 255)
	for _, c := range []byte{'a', 'z', 0, 255} {
		if !s.Has(c) {
			t.Errorf("expected %q in set", c)
		}
	}
	if s.Has('b') {
		t.Errorf("unexpected 'b' in set")
	}
	if want, got := 4, s.Len(); want != got {
		t.Errorf("want %v got %v", want, got)
	}
	if want, got := byte(0), s.First(); want != got {
		t.Errorf("want %v got %v", want, got)
	}
	s.Remove(0)
	if want, got := byte('a'), s.First(); want != got {
		t.Errorf("want %v got %v", want, got)
	}
}

func TestByteSet_Ops(t *testing.T) {
	lower := ByteRangeSet('a', 'z')
	hex := ByteRangeSet('a', 'f').Union(ByteRangeSet('0', '9'))

	if want, got := ByteRangeSet('a', 'f'), lower.Intersect(hex); want != got {
		t.Errorf("want %v got %v", want, got)
	}
	if want, got := ByteRangeSet('g', 'z'), lower.Minus(hex); want != got {
		t.Errorf("want %v got %v", want, got)
	}
	if want, got := 256-26, lower.Complement().Len(); want != got {
		t.Errorf("want %v got %v", want, got)
	}
	if !ByteRangeSet('c', 'e').IsSubsetOf(lower) || hex.IsSubsetOf(lower) {
		t.Errorf("subset check failed")
	}
	if !FullByteSet.IsFull() || !(ByteSet{}).IsEmpty() {
		t.Errorf("full/empty check failed")
	}
	if _, ok := lower.Single(); ok {
		t.Errorf("range reported as single")
	}
	if c, ok := NewByteSet('q').Single(); !ok || c != 'q' {
		t.Errorf("want q got %v %v", c, ok)
	}
}

func TestByteSet_RangesAndString(t *testing.T) {
	s := ByteRangeSet('a', 'c').Union(NewByteSet('x', '-', 255))
	want := [][2]byte{{'-', '-'}, {'a', 'c'}, {'x', 'x'}, {255, 255}}
	got := s.Ranges()
	if len(want) != len(got) {
		t.Fatalf("want %v got %v", want, got)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("want %v got %v", want, got)
		}
	}
	if want, got := `[\-a-cx\xFF]`, s.String(); want != got {
		t.Errorf("want %v got %v", want, got)
	}
	if want, got := s, ByteSetFromWords(wordsOf(s)); want != got {
		t.Errorf("want %v got %v", want, got)
	}
}

func wordsOf(s ByteSet) []uint32 {
	w := s.Words()
	return w[:]
}

func TestByteSet_ForEach(t *testing.T) {
	var got []byte
	NewByteSet(200, 3, 64, 63).ForEach(func(c byte) { got = append(got, c) })
	if want := []byte{3, 63, 64, 200}; string(want) != string(got) {
		t.Errorf("want %v got %v", want, got)
	}
}

func TestSpecialTokenBytes(t *testing.T) {
	b := SpecialTokenBytes(128001)
	if want, got := "\xff[128001]", string(b); want != got {
		t.Fatalf("want %q got %q", want, got)
	}
	tok, ok := ParseSpecialToken(b)
	if !ok || tok != 128001 {
		t.Fatalf("want 128001 got %v %v", tok, ok)
	}
	for _, bad := range []string{"[1]", "\xff[]", "\xff[x]", "\xff1]"} {
		if _, ok := ParseSpecialToken([]byte(bad)); ok {
			t.Fatalf("parsed %q", bad)
		}
	}
}

func TestByteSet_IndexOfAny(t *testing.T) {
	s := NewByteSet('a', 'z', 0xff)
	scenarios := []struct {
		in          string
		any, except int
	}{
		{"", -1, -1},
		{"xyz", 2, 0},
		{"aaz", 0, -1},
		{"bc\xff", 2, 0},
	}
	for _, sc := range scenarios {
		if want, got := sc.any, s.IndexOfAny(sc.in); want != got {
			t.Fatalf("IndexOfAny(%q): want %v got %v", sc.in, want, got)
		}
		if want, got := sc.except, s.IndexOfAnyExcept(sc.in); want != got {
			t.Fatalf("IndexOfAnyExcept(%q): want %v got %v", sc.in, want, got)
		}
	}
}
