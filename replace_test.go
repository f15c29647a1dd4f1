package derivre

import "testing"

func TestReplace(t *testing.T) {
	re := MustCompile("[0-9]+", 0)
	scenarios := []struct {
		input string
		count int
		want  string
	}{
		{"a1b22", -1, "a#b#"},
		{"a1b22", 1, "a#b22"},
		{"a1b22", 0, "a1b22"},
		{"abc", -1, "abc"},
		{"12", -1, "#"},
	}
	for _, sc := range scenarios {
		got, err := re.Replace(sc.input, "#", sc.count)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if want := sc.want; want != got {
			t.Fatalf("Wanted '%v'\nGot '%v'", want, got)
		}
	}

	if _, err := re.Replace("a", "#", -2); err == nil {
		t.Fatal("Expected an error for count -2")
	}
}
