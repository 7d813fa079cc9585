package semnet

import "testing"

func TestMainPoolRecencyOrder(t *testing.T) {
	p := NewPool()
	a := p.MakeNode("obj", "", 0, -1.0, 0)
	b := p.MakeNode("obj", "", 0, -1.0, 0)
	c := p.MakeNode("obj", "", 0, -1.0, 0)

	// newest first
	if p.First(-1) != c || p.Next(c, -1) != b || p.Next(b, -1) != a {
		t.Error("main pool should iterate newest first")
	}
	if a.Inst() != 1 || c.Inst() != 3 {
		t.Errorf("ids = %d %d", a.Inst(), c.Inst())
	}

	// Refresh moves a node back to the head
	p.Refresh(a)
	if p.First(-1) != a {
		t.Error("Refresh should move node to head")
	}
}

func TestHaloPoolAscendingIDs(t *testing.T) {
	h := NewHaloPool()
	a := h.MakeNode("hq", "red", 0, 0.9, 0)
	b := h.MakeNode("hq", "big", 0, 0.9, 0)
	if a.Inst() != -1 || b.Inst() != -2 {
		t.Errorf("halo ids = %d %d", a.Inst(), b.Inst())
	}
	if h.First(-1) != a || h.Next(a, -1) != b {
		t.Error("halo should iterate in creation order")
	}
	if !a.Halo() {
		t.Error("negative id should report Halo")
	}
	h.PurgeAll()
	c := h.MakeNode("hq", "tall", 0, 0.9, 0)
	if c.Inst() != -1 {
		t.Error("halo ids should restart after purge")
	}
}

func TestBinBucketing(t *testing.T) {
	p := NewPool()
	d1 := p.MakeNode("ako", "dog", 0, -1.0, 0)
	d2 := p.MakeNode("ako", "dog", 0, -1.0, 0)
	p.MakeNode("ako", "cat", 0, -1.0, 0)

	bin := p.LexHash("dog")
	if p.BinCnt(bin) < 2 {
		t.Errorf("dog bin count = %d", p.BinCnt(bin))
	}
	if p.BinCnt(-1) != 3 {
		t.Errorf("total = %d", p.BinCnt(-1))
	}
	seen := 0
	for n := p.First(bin); n != nil; n = p.Next(n, bin) {
		if n == d1 || n == d2 {
			seen++
		}
	}
	if seen != 2 {
		t.Errorf("bin iteration found %d dogs", seen)
	}
}

func TestRemNodeDissolvesLinks(t *testing.T) {
	p := NewPool()
	obj := p.MakeNode("obj", "", 0, -1.0, 0)
	hq := p.AddProp(obj, "hq", "red", 0, -1.0)

	if p.RemNode(obj) != 1 {
		t.Fatal("RemNode failed")
	}
	// the property no longer references the removed node
	if hq.NumArgs() != 0 {
		t.Error("dangling argument after removal")
	}
	if p.InPool(obj) {
		t.Error("node still in pool")
	}
	if p.NodeCnt(1) != 1 {
		t.Errorf("count = %d", p.NodeCnt(1))
	}
}

func TestFindNodeAndParseName(t *testing.T) {
	p := NewPool()
	n := p.MakeNode("obj", "", 0, -1.0, 0)
	if got := p.FindNode(n.Nick(), false); got != n {
		t.Errorf("FindNode(%s) = %v", n.Nick(), got)
	}
	if p.FindNode("junk", false) != nil {
		t.Error("bad nickname should fail")
	}
	kind, id, ok := ParseName("ako+7")
	if !ok || kind != "ako" || id != -7 {
		t.Errorf("ParseName halo = %s %d %v", kind, id, ok)
	}
}

func TestAssertInstantiation(t *testing.T) {
	// pattern lives in its own pool, instantiated into a halo
	s := NewPool()
	var pat Graphlet
	s.BuildIn(&pat)
	x := s.MakeNode("obj", "", 0, 1.0, 0)
	a := s.AddProp(x, "ako", "animal", 0, 0.9)
	s.BuildIn(nil)

	h := NewHaloPool()
	w := NewPool()
	real := w.MakeNode("obj", "", 0, -1.0, 0)

	b := NewBindings(nil)
	b.Bind(x, real)
	if h.Assert(&pat, b, 0.0, 0, nil) <= 0 {
		t.Fatal("Assert made nothing")
	}
	inst := b.LookUp(a)
	if inst == nil || !inst.Halo() {
		t.Fatal("result not instantiated in halo")
	}
	if inst.Lex() != "animal" || inst.Default() != 0.9 {
		t.Errorf("inst lex=%q blf0=%v", inst.Lex(), inst.Default())
	}
	if !inst.HasVal("ako", real) {
		t.Error("argument should point at the bound real node")
	}
}

func TestChangesCounter(t *testing.T) {
	p := NewPool()
	p.MakeNode("obj", "", 0, -1.0, 0)
	if p.Changes() == 0 {
		t.Error("additions should register as changes")
	}
	if p.Changes() != 0 {
		t.Error("counter should reset")
	}
	p.Dirty(2)
	if p.Changes() != 2 {
		t.Error("Dirty should register")
	}
}
