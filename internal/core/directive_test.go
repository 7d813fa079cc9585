package core

import (
	"testing"

	"noesis/internal/semnet"
)

// doOperator builds a DO operator: trigger "verb X", method FCN <gnd>(X).
func doOperator(verb, gnd string, pref float64) *Operator {
	op := NewOperator(DirDo)
	op.BuildCond()
	act := op.MakeAct(verb, 0, 1.0, 0)
	x := op.MakeNode("obj", "", 0, 1.0, 0)
	act.AddArg("obj", x)
	op.BuildIn(nil)

	fd := NewDirective(DirFcn)
	f := op.MakeNode("act", gnd, 0, 1.0, 0)
	f.AddArg("obj", x)
	fd.Key.AddItem(f)
	meth := NewChain()
	meth.BindDir(fd)
	op.Meth = meth
	op.SetPref(pref)
	return op
}

// anteOperator builds an ANTE operator: trigger "verb X", method FCN <gnd>(X).
func anteOperator(verb, gnd string, pref float64) *Operator {
	op := doOperator(verb, gnd, pref)
	op.Kind = DirAnte
	return op
}

// runCycles drives the kernel until the focus finishes or the budget runs out.
func runCycles(k *Kernel, n int) {
	for i := 0; i < n; i++ {
		k.RunCycle()
	}
}

func TestOperatorSelectionOrder(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	var calls []string
	k.BindGround("gnd_a", func(d *Directive) int { calls = append(calls, "gnd_a"); return -2 })
	k.BindGround("gnd_b", func(d *Directive) int { calls = append(calls, "gnd_b"); return -2 })

	k.Pmem.AddOperator(doOperator("pickup", "gnd_a", 0.8))
	k.Pmem.AddOperator(doOperator("pickup", "gnd_b", 0.6))

	o := newObj(w)
	act := w.MakeAct("pickup", 0, -1.0, 0)
	act.Reveal(1)
	act.AddArg("obj", o)

	d := NewDirective(DirDo)
	d.Key.AddItem(act)
	d.Key.AddItem(o)
	ch := NewChain()
	ch.BindDir(d)
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 10)

	if len(calls) != 2 || calls[0] != "gnd_a" || calls[1] != "gnd_b" {
		t.Fatalf("call order = %v, want [gnd_a gnd_b]", calls)
	}
	if d.Verdict() != -2 {
		t.Errorf("DO verdict = %d, want -2 after exhaustion", d.Verdict())
	}
	if d.NumTries() != 2 {
		t.Errorf("tries = %d", d.NumTries())
	}
}

func TestOperatorFirstSuccessWins(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	var calls []string
	k.BindGround("gnd_a", func(d *Directive) int { calls = append(calls, "gnd_a"); return 1 })
	k.BindGround("gnd_b", func(d *Directive) int { calls = append(calls, "gnd_b"); return 1 })

	k.Pmem.AddOperator(doOperator("pickup", "gnd_a", 0.8))
	k.Pmem.AddOperator(doOperator("pickup", "gnd_b", 0.6))

	o := newObj(w)
	act := w.MakeAct("pickup", 0, -1.0, 0)
	act.Reveal(1)
	act.AddArg("obj", o)
	d := NewDirective(DirDo)
	d.Key.AddItem(act)
	d.Key.AddItem(o)
	ch := NewChain()
	ch.BindDir(d)
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 10)

	if len(calls) != 1 || calls[0] != "gnd_a" {
		t.Fatalf("calls = %v, want just gnd_a", calls)
	}
	if d.Verdict() != 1 {
		t.Errorf("DO verdict = %d, want 1", d.Verdict())
	}
}

func TestDoRunsAntePhaseFirst(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	var calls []string
	k.BindGround("gnd_prep", func(d *Directive) int { calls = append(calls, "gnd_prep"); return 1 })
	k.BindGround("gnd_do", func(d *Directive) int { calls = append(calls, "gnd_do"); return 1 })

	k.Pmem.AddOperator(doOperator("pickup", "gnd_do", 0.9))
	k.Pmem.AddOperator(anteOperator("pickup", "gnd_prep", 0.5))

	o := newObj(w)
	act := w.MakeAct("pickup", 0, -1.0, 0)
	act.Reveal(1)
	act.AddArg("obj", o)
	d := NewDirective(DirDo)
	d.Key.AddItem(act)
	d.Key.AddItem(o)
	ch := NewChain()
	ch.BindDir(d)
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 12)

	// preparation runs before the action despite its lower preference
	if len(calls) != 2 || calls[0] != "gnd_prep" || calls[1] != "gnd_do" {
		t.Fatalf("call order = %v, want [gnd_prep gnd_do]", calls)
	}
	if d.Verdict() != 1 {
		t.Errorf("DO verdict = %d, want 1", d.Verdict())
	}
}

func TestAnteFailureDoesNotSettleDo(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	var calls []string
	k.BindGround("gnd_prep", func(d *Directive) int { calls = append(calls, "gnd_prep"); return -2 })
	k.BindGround("gnd_do", func(d *Directive) int { calls = append(calls, "gnd_do"); return 1 })

	k.Pmem.AddOperator(doOperator("pickup", "gnd_do", 0.9))
	k.Pmem.AddOperator(anteOperator("pickup", "gnd_prep", 0.8))

	o := newObj(w)
	act := w.MakeAct("pickup", 0, -1.0, 0)
	act.Reveal(1)
	act.AddArg("obj", o)
	d := NewDirective(DirDo)
	d.Key.AddItem(act)
	d.Key.AddItem(o)
	ch := NewChain()
	ch.BindDir(d)
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 12)

	// a failed preparation is exhausted, not fatal; the action still runs
	if len(calls) != 2 || calls[0] != "gnd_prep" || calls[1] != "gnd_do" {
		t.Fatalf("call order = %v, want [gnd_prep gnd_do]", calls)
	}
	if d.Verdict() != 1 {
		t.Errorf("DO verdict = %d, want 1 after prep failure", d.Verdict())
	}
}

func TestChkTruthFlip(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	o := newObj(w)
	post(w, o, "hq", "red", 1, 0.9) // known NOT red

	d := NewDirective(DirChk)
	pat := w.MakeNode("hq", "red", 0, 1.0, 0) // hidden hypothesis
	pat.AddArg("hq", o)
	d.Key.AddItem(pat)
	d.Key.AddItem(o)
	ch := NewChain()
	ch.BindDir(d)
	ch.AltFail = 0 // alt end counts as success
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 6)

	if d.Verdict() != 2 {
		t.Errorf("CHK verdict = %d, want 2 (alt branch on false)", d.Verdict())
	}
}

func TestChkTrue(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	o := newObj(w)
	post(w, o, "hq", "red", 0, 0.9)

	d := NewDirective(DirChk)
	pat := w.MakeNode("hq", "red", 0, 1.0, 0)
	pat.AddArg("hq", o)
	d.Key.AddItem(pat)
	d.Key.AddItem(o)
	ch := NewChain()
	ch.BindDir(d)
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 6)

	if d.Verdict() != 1 {
		t.Errorf("CHK verdict = %d, want 1", d.Verdict())
	}
}

func TestEachEnumeration(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	for i := 0; i < 3; i++ {
		o := newObj(w)
		post(w, o, "ako", "block", 0, 1.0)
	}

	count := 0
	k.BindGround("gnd_count", func(d *Directive) int { count++; return 1 })

	e := NewDirective(DirEach)
	pat := w.MakeNode("obj", "", 0, 1.0, 0)
	bk := w.MakeNode("ako", "block", 0, 1.0, 0)
	bk.AddArg("ako", pat)
	e.Key.AddItem(pat)
	e.Key.AddItem(bk)

	s1 := NewChain()
	s1.BindDir(e)
	s1.AltFail = 0 // exhaustion is loop completion

	fd := NewDirective(DirFcn)
	fn := w.MakeNode("act", "gnd_count", 0, 1.0, 0)
	fd.Key.AddItem(fn)
	s2 := NewChain()
	s2.BindDir(fd)

	s1.Cont = s2
	s2.Cont = s1 // loop back for the next binding
	k.Atree.AddFocus(s1, 1.0)

	runCycles(k, 40)

	if count != 3 {
		t.Errorf("loop body ran %d times, want 3", count)
	}
	if e.NumGuess() != 3 {
		t.Errorf("guesses = %d", e.NumGuess())
	}
	if e.Verdict() != 2 {
		t.Errorf("EACH verdict = %d, want alt-success", e.Verdict())
	}
	// all three guesses distinct
	seen := map[*semnet.Node]bool{}
	for _, g := range e.guess {
		if seen[g] {
			t.Error("guess repeated")
		}
		seen[g] = true
	}
}

func TestFindGuessBudget(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	for i := 0; i < 5; i++ {
		o := newObj(w)
		post(w, o, "ako", "block", 0, 1.0)
	}

	fails := 0
	k.BindGround("gnd_use", func(d *Directive) int { fails++; return -2 })

	f := NewDirective(DirFind)
	pat := w.MakeNode("obj", "", 0, 1.0, 0)
	bk := w.MakeNode("ako", "block", 0, 1.0, 0)
	bk.AddArg("ako", pat)
	f.Key.AddItem(pat)
	f.Key.AddItem(bk)

	s1 := NewChain()
	s1.BindDir(f)
	fd := NewDirective(DirFcn)
	fn := w.MakeNode("act", "gnd_use", 0, 1.0, 0)
	fd.Key.AddItem(fn)
	s2 := NewChain()
	s2.BindDir(fd)
	s1.Cont = s2
	k.Atree.AddFocus(s1, 1.0)

	runCycles(k, 40)

	if f.NumGuess() != MaxGuess {
		t.Errorf("guesses = %d, want %d", f.NumGuess(), MaxGuess)
	}
	if fails != MaxGuess {
		t.Errorf("continuation ran %d times", fails)
	}
	if f.Verdict() != -2 {
		t.Errorf("FIND verdict = %d, want final failure", f.Verdict())
	}
}

func TestBindAssumesWhenStuck(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	b := NewDirective(DirBind)
	pat := w.MakeNode("obj", "", 0, 1.0, 0)
	uni := w.MakeNode("ako", "unicorn", 0, 1.0, 0)
	uni.AddArg("ako", pat)
	b.Key.AddItem(pat)
	b.Key.AddItem(uni)
	ch := NewChain()
	ch.BindDir(b)
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 6)

	if b.Verdict() != 1 {
		t.Fatalf("BIND verdict = %d", b.Verdict())
	}
	if b.hyp == nil || !b.hyp.Visible() {
		t.Fatal("no assumed item")
	}
	// the new item satisfies the description
	found := false
	for i := 0; i < b.hyp.NumProps(); i++ {
		if b.hyp.Prop(i).LexMatch("unicorn") {
			found = true
		}
	}
	if !found {
		t.Error("assumed item lacks description")
	}
}

func TestPuntShortCircuits(t *testing.T) {
	k := testKernel(t)
	d := NewDirective(DirPunt)
	ch := NewChain()
	ch.BindDir(d)
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 3)
	if k.Atree.Active() != 0 {
		t.Error("PUNT focus should fail immediately")
	}
}

func TestNoteRelevanceGate(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	fired := 0
	k.BindGround("gnd_react", func(d *Directive) int { fired++; return 1 })

	// NOTE operator reacting to "X is hungry"
	op := NewOperator(DirNote)
	op.BuildCond()
	x := op.MakeNode("obj", "", 0, 1.0, 0)
	op.AddProp(x, "hq", "hungry", 0, 1.0)
	op.BuildIn(nil)
	fd := NewDirective(DirFcn)
	fn := op.MakeNode("act", "gnd_react", 0, 1.0, 0)
	fd.Key.AddItem(fn)
	meth := NewChain()
	meth.BindDir(fd)
	op.Meth = meth
	k.Pmem.AddOperator(op)

	// background fact that is NOT part of any new NOTE
	bg := newObj(w)
	post(w, bg, "hq", "hungry", 0, 1.0)

	// a NOTE about something unrelated must not fire the operator
	k.Atree.StartNote()
	o2 := k.Atree.NewNode("obj", "", 0, 1.0)
	k.Atree.NewProp(o2, "hq", "sleepy", 0, 1.0)
	k.Atree.FinishNote(false)
	runCycles(k, 6)
	if fired != 0 {
		t.Fatalf("operator fired %d times without a relevant NOTE", fired)
	}

	// a NOTE actually posting hungry does fire it
	k.Atree.StartNote()
	o3 := k.Atree.NewNode("obj", "", 0, 1.0)
	k.Atree.NewProp(o3, "hq", "hungry", 0, 1.0)
	k.Atree.FinishNote(false)
	runCycles(k, 8)
	if fired != 1 {
		t.Errorf("operator fired %d times, want 1", fired)
	}
}

func TestAddDirective(t *testing.T) {
	k := testKernel(t)

	d := NewDirective(DirAdd)
	d.NewRule = implRule("cat", "feline", 0.9)
	ch := NewChain()
	ch.BindDir(d)
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 4)
	if d.Verdict() != 1 {
		t.Errorf("ADD verdict = %d", d.Verdict())
	}
	if k.Amem.NumRules() != 1 {
		t.Errorf("rules = %d after ADD", k.Amem.NumRules())
	}
}

func TestUnknownGroundingFails(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	d := NewDirective(DirFcn)
	fn := w.MakeNode("act", "gnd_missing", 0, 1.0, 0)
	d.Key.AddItem(fn)
	ch := NewChain()
	ch.BindDir(d)
	k.Atree.AddFocus(ch, 1.0)

	runCycles(k, 4)
	if d.Verdict() != -2 {
		t.Errorf("unbound FCN verdict = %d", d.Verdict())
	}
	// an explanatory NOTE was posted
	explained := false
	for n := w.Next(nil, -1); n != nil; n = w.Next(n, -1) {
		if n.LexMatch("fail") && n.Kind() == "act" {
			explained = true
		}
	}
	if !explained {
		t.Error("no introspective failure NOTE")
	}
}
