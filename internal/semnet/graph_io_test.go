package semnet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"noesis/internal/txt"
)

const dogGraph = `obj-1
ako-2 -lex-  dog
      -blf-  0.900
      -ako-> obj-1
hq-3 -lex-  big
     -neg-  1
     -hq--> obj-1
`

func loadGraph(t *testing.T, src string) (*Pool, *Graphlet) {
	t.Helper()
	p := NewPool()
	p.ClrTrans()
	var g Graphlet
	in := txt.FromString(src)
	if n := p.LoadGraph(&g, in, 1); n <= 0 {
		t.Fatalf("LoadGraph = %d", n)
	}
	return p, &g
}

func TestLoadGraphStructure(t *testing.T) {
	_, g := loadGraph(t, dogGraph)
	if g.NumItems() != 3 {
		t.Fatalf("items = %d", g.NumItems())
	}
	obj := g.Item(0)
	ako := g.Item(1)
	hq := g.Item(2)

	type shape struct {
		Kind, Lex string
		Neg       int
	}
	var got []shape
	for i := 0; i < g.NumItems(); i++ {
		n := g.Item(i)
		got = append(got, shape{n.Kind(), n.Lex(), n.Neg()})
	}
	want := []shape{{"obj", "", 0}, {"ako", "dog", 0}, {"hq", "big", 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loaded shapes mismatch (-want +got):\n%s", diff)
	}
	if ako.Default() != 0.9 || ako.Belief() != 0.9 {
		t.Errorf("belief = %v/%v", ako.Belief(), ako.Default())
	}
	if hq.Neg() != 1 {
		t.Error("negation lost")
	}
	if !ako.HasVal("ako", obj) || !hq.HasVal("hq", obj) {
		t.Error("arrows lost")
	}
}

func TestGraphRoundTrip(t *testing.T) {
	_, g := loadGraph(t, dogGraph)

	var buf bytes.Buffer
	if err := SaveGraph(&buf, g, 0, 1); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}

	// load the saved text again and save once more: byte identical
	p2 := NewPool()
	p2.ClrTrans()
	var g2 Graphlet
	if n := p2.LoadGraph(&g2, txt.FromString(buf.String()), 1); n != 3 {
		t.Fatalf("reload = %d", n)
	}
	var buf2 bytes.Buffer
	if err := SaveGraph(&buf2, &g2, 0, 1); err != nil {
		t.Fatal(err)
	}
	if buf.String() != buf2.String() {
		t.Errorf("round trip mismatch:\n--- first\n%s--- second\n%s", buf.String(), buf2.String())
	}
}

func TestLoadGraphStopsAtKeyword(t *testing.T) {
	src := "obj-1\nako-2 -lex-  dog\n      -ako-> obj-1\nthen: whatever\n"
	p := NewPool()
	p.ClrTrans()
	var g Graphlet
	in := txt.FromString(src)
	if n := p.LoadGraph(&g, in, 0); n != 2 {
		t.Fatalf("LoadGraph = %d", n)
	}
	if !in.Begins("then:") {
		t.Errorf("terminator line consumed: %q", in.Head())
	}
}

func TestLoadGraphSharedNames(t *testing.T) {
	// the same nickname twice must resolve to one node
	src := "ako-2 -lex-  dog\n      -ako-> obj-1\nhq-3 -lex-  red\n     -hq--> obj-1\n"
	p, g := loadGraph(t, src)
	_ = p
	ako := g.Item(0)
	hq := g.Item(1)
	if ako.Arg(0) != hq.Arg(0) {
		t.Error("shared nickname produced two nodes")
	}
}

func TestSaveNodeVariableLex(t *testing.T) {
	p := NewPool()
	n := p.MakeNode("hq", "***-1", 0, 1.0, 0)
	var buf bytes.Buffer
	if err := SaveNode(&buf, n, nil, 0, 1); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "-lex-  ***-1") {
		t.Errorf("variable lex not written: %q", buf.String())
	}
}
