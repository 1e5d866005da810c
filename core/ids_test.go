package core

import "testing"

func TestNewIDLengthAndAlphabet(t *testing.T) {
	id := NewID()
	if len(id) != idLength {
		t.Fatalf("expected length %d, got %d (%q)", idLength, len(id), id)
	}
	for _, c := range id {
		found := false
		for _, a := range idAlphabet {
			if c == a {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("id %q contains character %q outside the alphanumeric alphabet", id, c)
		}
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("collision generating id %q after %d draws", id, i)
		}
		seen[id] = true
	}
}
