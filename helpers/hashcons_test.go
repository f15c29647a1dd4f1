package helpers

import "testing"

func TestHashCons_Dedup(t *testing.T) {
	h := NewHashCons()
	a, isNew := h.Insert([]uint32{1, 2, 3})
	if !isNew {
		t.Fatalf("first insert should be new")
	}
	b, _ := h.Insert([]uint32{1, 2})
	c, _ := h.Insert(nil)
	a2, isNew := h.Insert([]uint32{1, 2, 3})
	if isNew || a2 != a {
		t.Fatalf("want %v got %v (new=%v)", a, a2, isNew)
	}
	if a == b || b == c || a == c {
		t.Fatalf("distinct items share ids: %v %v %v", a, b, c)
	}
	if want, got := 3, h.Len(); want != got {
		t.Fatalf("want %v got %v", want, got)
	}
	if want, got := 2, len(h.Get(b)); want != got {
		t.Fatalf("want %v got %v", want, got)
	}
	if want, got := 0, len(h.Get(c)); want != got {
		t.Fatalf("want %v got %v", want, got)
	}
	if id, ok := h.Lookup([]uint32{1, 2}); !ok || id != b {
		t.Fatalf("lookup failed: %v %v", id, ok)
	}
	if _, ok := h.Lookup([]uint32{2, 1}); ok {
		t.Fatalf("lookup found a missing item")
	}
}

func TestHashCons_GetIsStable(t *testing.T) {
	h := NewHashCons()
	id, _ := h.Insert([]uint32{7, 8})
	first := h.Get(id)
	for i := uint32(0); i < 1000; i++ {
		h.Insert([]uint32{i, i + 1, i + 2})
	}
	if want, got := []uint32{7, 8}, h.Get(id); want[0] != got[0] || want[1] != got[1] || len(got) != 2 {
		t.Fatalf("want %v got %v", want, got)
	}
	if first[0] != 7 {
		t.Fatalf("returned slice was clobbered: %v", first)
	}
}

func TestHashCons_BadIdPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewHashCons().Get(3)
}
