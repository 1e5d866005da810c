package core

import "testing"

func TestSerializeEmptyRowsIsEmptyArray(t *testing.T) {
	data, err := Serialize(nil)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("expected [], got %s", data)
	}

	data, err = Serialize([]*Row{})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("expected [], got %s", data)
	}
}

func TestSerializePreservesKeyOrder(t *testing.T) {
	r := NewRow()
	r.Set("name", "*")
	r.Set("description", "*")
	data, err := Serialize([]*Row{r})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	want := `[{"name":"*","description":"*"}]`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}

func TestSerializeMultipleRows(t *testing.T) {
	r1 := NewRow()
	r1.Set("a", "1")
	r2 := NewRow()
	r2.Set("b", "2")
	data, err := Serialize([]*Row{r1, r2})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	want := `[{"a":"1"},{"b":"2"}]`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}

func TestSerializeEscapesSpecialCharacters(t *testing.T) {
	r := NewRow()
	r.Set("data", `{"x":"y"}`)
	data, err := Serialize([]*Row{r})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	want := `[{"data":"{\"x\":\"y\"}"}]`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}
