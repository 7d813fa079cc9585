package semnet

import "testing"

// buildFact posts "obj is a <word>" into memory, returning (obj, fact).
func buildFact(w *WorkingMemory, word string, neg int, blf float64) (*Node, *Node) {
	obj := w.MakeNode("obj", "", 0, -1.0, 0)
	obj.Reveal(1)
	f := w.AddProp(obj, "ako", word, neg, -blf)
	f.Reveal(1)
	return obj, f
}

// akoPattern builds "X is a <word>" as a matcher condition.
func akoPattern(word string) (*Situation, *Node, *Node) {
	s := NewSituation()
	s.BuildCond()
	x := s.MakeNode("obj", "", 0, 1.0, 0)
	a := s.AddProp(x, "ako", word, 0, 1.0)
	s.BuildIn(nil)
	return s, x, a
}

// collect wires a Found callback that preserves each complete match.
func collect(s *Situation, out *[]*Bindings) {
	s.Found = func(m []*Bindings, mc *int) int {
		*out = append(*out, NewBindings(m[*mc-1]))
		if *mc > 1 {
			*mc--
		}
		return 1
	}
}

func prepMatch(s *Situation, slots int) ([]*Bindings, int) {
	m := make([]*Bindings, slots)
	for i := range m {
		m[i] = NewBindings(nil)
		m[i].Expect = s.Cond.NumItems()
	}
	return m, slots
}

func TestMatchSimplePattern(t *testing.T) {
	w := NewWorkingMemory("r")
	obj, fact := buildFact(w, "dog", 0, 1.0)

	s, x, a := akoPattern("dog")
	var hits []*Bindings
	collect(s, &hits)

	m, mc := prepMatch(s, 4)
	if n := s.MatchGraph(m, &mc, &s.Cond, w, nil); n != 1 {
		t.Fatalf("matches = %d", n)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	if hits[0].LookUp(x) != obj || hits[0].LookUp(a) != fact {
		t.Error("bindings do not cover pattern")
	}
	// every pattern node covered, no shared substitutions
	if hits[0].NumPairs() != s.Cond.NumItems() {
		t.Error("incomplete bindings accepted")
	}
}

func TestMatchRespectsBeliefThreshold(t *testing.T) {
	w := NewWorkingMemory("r")
	buildFact(w, "dog", 0, 0.3) // weakly believed

	s, _, _ := akoPattern("dog")
	s.Bth = 0.5
	var hits []*Bindings
	collect(s, &hits)
	m, mc := prepMatch(s, 2)
	if n := s.MatchGraph(m, &mc, &s.Cond, w, nil); n != 0 {
		t.Errorf("weak fact matched: %d", n)
	}

	// negative threshold accepts hypotheticals (belief exactly 0)
	w2 := NewWorkingMemory("r")
	obj := w2.MakeNode("obj", "", 0, -1.0, 0)
	obj.Reveal(1)
	hyp := w2.AddProp(obj, "ako", "dog", 0, 0.9) // pending, belief 0
	hyp.Reveal(1)
	s2, _, _ := akoPattern("dog")
	s2.Bth = -0.5
	var hits2 []*Bindings
	collect(s2, &hits2)
	m2, mc2 := prepMatch(s2, 2)
	if n := s2.MatchGraph(m2, &mc2, &s2.Cond, w2, nil); n != 1 {
		t.Errorf("hypothetical should pass negative threshold: %d", n)
	}
}

func TestMatchNegPolarity(t *testing.T) {
	w := NewWorkingMemory("r")
	buildFact(w, "red", 1, 0.9) // "not red"

	s, _, _ := akoPattern("red") // positive pattern
	var hits []*Bindings
	collect(s, &hits)
	m, mc := prepMatch(s, 2)
	if n := s.MatchGraph(m, &mc, &s.Cond, w, nil); n != 0 {
		t.Errorf("polarity mismatch matched: %d", n)
	}

	// chkmode ignores polarity so truth can flip
	s2, _, _ := akoPattern("red")
	s2.ChkMode = 1
	var hits2 []*Bindings
	collect(s2, &hits2)
	m2, mc2 := prepMatch(s2, 2)
	if n := s2.MatchGraph(m2, &mc2, &s2.Cond, w, nil); n != 1 {
		t.Errorf("chkmode should ignore polarity: %d", n)
	}
}

func TestMatchCaveatBlocks(t *testing.T) {
	w := NewWorkingMemory("r")
	obj, _ := buildFact(w, "dog", 0, 1.0)
	w.AddProp(obj, "hq", "fake", 0, -1.0).Reveal(1)

	// pattern: X is a dog, unless X is fake
	s := NewSituation()
	s.BuildCond()
	x := s.MakeNode("obj", "", 0, 1.0, 0)
	s.AddProp(x, "ako", "dog", 0, 1.0)
	s.BuildUnless()
	s.AddProp(x, "hq", "fake", 0, 1.0)
	s.BuildIn(nil)

	var hits []*Bindings
	collect(s, &hits)
	m, mc := prepMatch(s, 2)
	if n := s.MatchGraph(m, &mc, &s.Cond, w, nil); n != 0 {
		t.Errorf("caveat failed to block: %d", n)
	}

	// a second dog without the disqualifier still matches
	obj2, _ := buildFact(w, "dog", 0, 1.0)
	hits = hits[:0]
	m, mc = prepMatch(s, 2)
	if n := s.MatchGraph(m, &mc, &s.Cond, w, nil); n != 1 {
		t.Fatalf("clean candidate blocked: %d", n)
	}
	if hits[0].LookUp(x) != obj2 {
		t.Error("wrong candidate survived caveat")
	}
}

func TestMatchEmptyPattern(t *testing.T) {
	w := NewWorkingMemory("r")
	s := NewSituation()
	called := 0
	s.Found = func(m []*Bindings, mc *int) int { called++; return 1 }
	m, mc := prepMatch(s, 1)
	if n := s.MatchGraph(m, &mc, &s.Cond, w, nil); n != 1 {
		t.Errorf("empty pattern = %d, want 1", n)
	}
	if called != 1 {
		t.Errorf("callback fired %d times", called)
	}
}

func TestMatchMultipleCandidates(t *testing.T) {
	w := NewWorkingMemory("r")
	buildFact(w, "block", 0, 1.0)
	buildFact(w, "block", 0, 1.0)
	buildFact(w, "block", 0, 1.0)

	s, _, _ := akoPattern("block")
	var hits []*Bindings
	collect(s, &hits)
	m, mc := prepMatch(s, 8)
	if n := s.MatchGraph(m, &mc, &s.Cond, w, nil); n != 3 {
		t.Fatalf("matches = %d, want 3", n)
	}
	// no substitution shared across keys within one match
	for _, h := range hits {
		if h.GetSub(0) == h.GetSub(1) {
			t.Error("substitution reused inside one match")
		}
	}
}

func TestMatchSecondarySource(t *testing.T) {
	// condition partly in a directive key, remainder in working memory
	w := NewWorkingMemory("r")
	obj := w.MakeNode("obj", "", 0, -1.0, 0)
	obj.Reveal(1)
	w.AddProp(obj, "hq", "heavy", 0, -1.0).Reveal(1)
	act := w.MakeNode("act", "lift", 0, -1.0, 0)
	act.Reveal(1)
	act.AddArg("obj", obj)

	var key Graphlet
	key.AddItem(act)
	key.AddItem(obj)

	// trigger: lift X where X is heavy (hq fact only in wmem)
	s := NewSituation()
	s.BuildCond()
	cx := s.MakeNode("obj", "", 0, 1.0, 0)
	ca := s.MakeAct("lift", 0, 1.0, 0)
	ca.AddArg("obj", cx)
	s.AddProp(cx, "hq", "heavy", 0, 1.0)
	s.BuildIn(nil)

	var hits []*Bindings
	collect(s, &hits)
	m := []*Bindings{NewBindings(nil), NewBindings(nil)}
	for i := range m {
		m[i].Expect = s.Cond.NumItems()
		m[i].Bind(ca, act)
	}
	mc := 2
	if n := s.MatchGraph(m, &mc, &s.Cond, &key, w); n != 1 {
		t.Fatalf("secondary source match = %d", n)
	}
}

func TestFindRef(t *testing.T) {
	w := NewWorkingMemory("r")
	obj, _ := buildFact(w, "ball", 0, 1.0)

	s := NewSituation()
	s.BuildCond()
	x := s.MakeNode("obj", "", 0, 1.0, 0)
	s.AddProp(x, "ako", "ball", 0, 1.0)
	s.BuildIn(nil)
	if got := s.FindRef(x, w); got != obj {
		t.Errorf("FindRef = %v, want %v", got, obj)
	}
}
