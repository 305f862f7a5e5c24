package ini

import "testing"

func TestParseBasic(t *testing.T) {
	doc, err := Parse("[server]\nport=8888\naddress=127.0.0.1\n", Semicolon)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := doc.Get("server", "port", ""); got != "8888" {
		t.Fatalf("port = %q, want 8888", got)
	}
	if got := doc.Get("server", "address", ""); got != "127.0.0.1" {
		t.Fatalf("address = %q, want 127.0.0.1", got)
	}
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	content := "; leading comment\n[a]\n# also a comment\nkey = value \n\n[b]\nkey2=v2\n"
	doc, err := Parse(content, Possible)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := doc.Get("a", "key", ""); got != "value" {
		t.Fatalf("key = %q, want trimmed %q", got, "value")
	}
	if got := doc.Get("b", "key2", ""); got != "v2" {
		t.Fatalf("key2 = %q, want v2", got)
	}
}

func TestParseMissingCloseBracket(t *testing.T) {
	_, err := Parse("[server\nport=1\n", Possible)
	if err == nil {
		t.Fatal("expected error for missing close bracket")
	}
}

func TestParseKeyWithoutSection(t *testing.T) {
	_, err := Parse("port=1\n", Possible)
	if err == nil {
		t.Fatal("expected error for key before any section")
	}
}

func TestParseMissingEquals(t *testing.T) {
	_, err := Parse("[a]\nnotakeyvalue\n", Possible)
	if err == nil {
		t.Fatal("expected error for line missing '='")
	}
}

func TestGetIntValid(t *testing.T) {
	doc := New()
	doc.Set("server", "port", "9090")
	n, err := doc.GetInt("server", "port", 0)
	if err != nil || n != 9090 {
		t.Fatalf("n=%d err=%v, want 9090, nil", n, err)
	}
}

func TestGetIntDefaultWhenMissing(t *testing.T) {
	doc := New()
	n, err := doc.GetInt("server", "port", 1234)
	if err != nil || n != 1234 {
		t.Fatalf("n=%d err=%v, want default 1234, nil", n, err)
	}
}

func TestGetIntInvalid(t *testing.T) {
	doc := New()
	doc.Set("server", "port", "notanumber")
	if _, err := doc.GetInt("server", "port", 0); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestAddRemoveHasSection(t *testing.T) {
	doc := New()
	if !doc.Add("s") {
		t.Fatal("Add on fresh section returned false")
	}
	if doc.Add("s") {
		t.Fatal("Add on existing section returned true")
	}
	if !doc.Has("s") {
		t.Fatal("Has returned false after Add")
	}
	if !doc.Remove("s") {
		t.Fatal("Remove returned false for existing section")
	}
	if doc.Remove("s") {
		t.Fatal("Remove returned true for already-removed section")
	}
}

func TestSectionSetRemoveKey(t *testing.T) {
	s := newSection("x")
	s.Set("k", "v")
	if v, ok := s.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v, want v, true", v, ok)
	}
	if !s.Remove("k") {
		t.Fatal("Remove returned false")
	}
	if _, ok := s.Get("k"); ok {
		t.Fatal("key still present after Remove")
	}
}

func TestStringRoundTrip(t *testing.T) {
	doc := New()
	doc.Set("server", "port", "8888")
	rendered := doc.String()

	reparsed, err := Parse(rendered, Possible)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if got := reparsed.Get("server", "port", ""); got != "8888" {
		t.Fatalf("round-tripped port = %q, want 8888", got)
	}
}
