package txt

import "testing"

func TestStripComments(t *testing.T) {
	in := FromString("RULE 1 - \"gist\"\n  // whole line comment\n  if: obj-1  ; trailing\n\nthen: x\n")
	ln, ok := in.NextContent()
	if !ok || ln != "RULE 1 - \"gist\"" {
		t.Fatalf("first line = %q ok=%v", ln, ok)
	}
	in.Flush()
	ln, ok = in.NextContent()
	if !ok || ln != "if: obj-1" {
		t.Fatalf("second line = %q ok=%v", ln, ok)
	}
}

func TestTokenAndSkip(t *testing.T) {
	in := FromString("OP 12 - \"take stuff\"\n")
	if _, ok := in.NextContent(); !ok {
		t.Fatal("no content")
	}
	if tok := in.Token(); tok != "OP" {
		t.Errorf("tok = %q", tok)
	}
	if tok := in.Token(); tok != "12" {
		t.Errorf("tok = %q", tok)
	}
	if tok := in.Token(); tok != "-" {
		t.Errorf("tok = %q", tok)
	}
	if h := in.Head(); h != "\"take stuff\"" {
		t.Errorf("head = %q", h)
	}
}

func TestBeginsFirstBlank(t *testing.T) {
	in := FromString("   if: stuff\n\n@ 3\n")
	in.NextContent()
	if !in.Begins("if:") {
		t.Error("Begins(if:) false")
	}
	in.Skip("if:")
	if in.Head() != "stuff" {
		t.Errorf("head after skip = %q", in.Head())
	}
	in.Flush()
	ln, ok := in.NextContent()
	if !ok || ln != "@ 3" {
		t.Fatalf("line = %q", ln)
	}
	if !in.First("@%#") {
		t.Error("First(@%#) false")
	}
}

func TestNextBlankRecovery(t *testing.T) {
	in := FromString("garbage a\ngarbage b\n\nRULE 2\n")
	in.NextContent()
	if !in.NextBlank() {
		t.Fatal("NextBlank failed")
	}
	ln, ok := in.NextContent()
	if !ok || ln != "RULE 2" {
		t.Fatalf("line after blank = %q", ln)
	}
}

func TestEnd(t *testing.T) {
	in := FromString("one\n")
	in.NextContent()
	in.Flush()
	if _, ok := in.NextContent(); ok {
		t.Error("expected end of input")
	}
	if !in.End() {
		t.Error("End() should be true")
	}
}
