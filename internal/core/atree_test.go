package core

import (
	"testing"
	"time"

	"noesis/internal/config"
	"noesis/internal/semnet"
)

// idleFocus builds a KEEP guard with an empty key: it never finishes.
func idleFocus() *Chain {
	ch := NewChain()
	ch.BindDir(NewDirective(DirKeep))
	return ch
}

func TestFocusServiceFairness(t *testing.T) {
	k := testKernel(t)
	at := k.Atree
	for i := 0; i < 3; i++ {
		at.AddFocus(idleFocus(), 1.0)
	}
	at.Update(false)

	// each eligible focus picked exactly once, newest first
	order := []int{}
	for {
		n := at.NextFocus()
		if n < 0 {
			break
		}
		order = append(order, n)
	}
	if len(order) != 3 || order[0] != 2 || order[1] != 1 || order[2] != 0 {
		t.Errorf("service order = %v, want [2 1 0]", order)
	}

	// next cycle clears marks and all are eligible again
	at.Update(false)
	if n := at.NextFocus(); n != 2 {
		t.Errorf("after update, first = %d", n)
	}
}

func TestBaseBidBoost(t *testing.T) {
	k := testKernel(t)
	at := k.Atree
	a := at.AddFocus(idleFocus(), 0.5)
	b := at.AddFocus(idleFocus(), 0.5)

	if at.BaseBid(a) >= at.BaseBid(b) {
		t.Errorf("newer focus should outbid equal weight: %d vs %d",
			at.BaseBid(a), at.BaseBid(b))
	}
	if at.BaseBid(b)-at.BaseBid(a) != 1 {
		t.Errorf("boost delta = %d", at.BaseBid(b)-at.BaseBid(a))
	}

	// ServiceWt updates the serviced focus weight
	at.Update(false)
	n := at.NextFocus()
	bid := at.ServiceWt(0.9)
	if n != b || bid != 900+at.boost[b] {
		t.Errorf("ServiceWt bid = %d (focus %d)", bid, n)
	}
}

func TestFocusRetirement(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Memory.GCEvery = 0
	cfg.KB.Dir = t.TempDir()
	cfg.Learning.RetireSecs = 0.01
	k := NewKernel(cfg)

	ch := NewChain()
	ch.BindDir(NewDirective(DirPunt))
	k.Atree.AddFocus(ch, 1.0)

	k.RunCycle() // PUNT fails immediately, focus marked done
	if k.Atree.NumFoci() != 1 {
		t.Fatalf("foci = %d", k.Atree.NumFoci())
	}
	time.Sleep(30 * time.Millisecond)
	k.RunCycle() // retirement delay has elapsed
	if k.Atree.NumFoci() != 0 {
		t.Errorf("focus not retired: %d", k.Atree.NumFoci())
	}
}

func TestAddFocusOverflow(t *testing.T) {
	k := testKernel(t)
	at := k.Atree

	for i := 0; i < MaxFoci; i++ {
		if at.AddFocus(idleFocus(), 1.0) < 0 {
			t.Fatalf("add %d refused", i)
		}
	}
	// all slots active: nothing to drop
	if at.AddFocus(idleFocus(), 1.0) >= 0 {
		t.Error("overflow with all-active foci should refuse")
	}

	// finish one, then adding drops the finished focus
	at.done[0] = 1
	at.active[0] = at.now
	if at.AddFocus(idleFocus(), 1.0) < 0 {
		t.Error("overflow should drop the finished focus")
	}
	if at.NumFoci() != MaxFoci {
		t.Errorf("foci = %d", at.NumFoci())
	}
}

func TestUpdateGarbageCollection(t *testing.T) {
	k := testKernel(t)
	at := k.Atree
	w := at.WorkingMemory

	// focus referencing a small graph
	a := w.MakeNode("act", "poke", 0, -1.0, 0)
	b := newObj(w)
	a.AddArg("obj", b)
	c := post(w, b, "hq", "soft", 0, 1.0)
	w.ExtLink(4, b, semnet.ExtObject)

	d := NewDirective(DirNote)
	d.Key.AddItem(a)
	d.Key.AddItem(b)
	d.Key.AddItem(c)
	ch := NewChain()
	ch.BindDir(d)
	at.AddFocus(ch, 1.0)

	at.Update(true)
	if !w.InPool(a) || !w.InPool(b) || !w.InPool(c) {
		t.Fatal("focus-referenced nodes must survive GC")
	}

	// remove the focus: the graph becomes unreachable
	at.ClrFoci()
	at.Update(true)
	for _, n := range []*semnet.Node{a, b, c} {
		if w.InPool(n) {
			t.Errorf("%s survived after focus removal", n.Nick())
		}
	}
	if w.ExtRef(4, semnet.ExtObject) != nil {
		t.Error("external id entry should be gone")
	}
}

func TestHaltActiveBidArbitration(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	k.BindGround("gnd_slow", func(d *Directive) int { return 0 }) // never finishes
	k.Pmem.AddOperator(doOperator("wave", "gnd_slow", 0.8))

	o := newObj(w)
	act := w.MakeAct("wave", 0, -1.0, 0)
	act.Reveal(1)
	act.AddArg("obj", o)
	d := NewDirective(DirDo)
	d.Key.AddItem(act)
	d.Key.AddItem(o)
	ch := NewChain()
	ch.BindDir(d)
	n := k.Atree.AddFocus(ch, 0.5)

	runCycles(k, 4) // method launched and running

	var desc semnet.Graphlet
	probe := w.MakeAct("wave", 0, -1.0, 0)
	probe.AddArg("obj", o)
	desc.AddItem(probe)

	// low bid cannot preempt
	if res := k.Atree.HaltActive(&desc, nil, k.Atree.BaseBid(n)-10); res != -2 {
		t.Errorf("low bid halt = %d, want -2 (soft conflict)", res)
	}
	// high bid stops it
	if res := k.Atree.HaltActive(&desc, nil, k.Atree.BaseBid(n)+10); res != 1 {
		t.Errorf("high bid halt = %d", res)
	}
}

func TestFinishNoteErrorGraphlet(t *testing.T) {
	k := testKernel(t)
	at := k.Atree

	at.AddFocus(idleFocus(), 1.0)
	at.Update(false)
	at.NextFocus() // svc = 0

	at.StartNote()
	evt := at.NewNode("act", "jam", 0, 1.0)
	at.FinishNote(true)
	_ = evt

	if at.Error() == nil {
		t.Fatal("error graphlet not recorded")
	}
	if at.Error().Main().Lex() != "jam" {
		t.Errorf("error main = %q", at.Error().Main().Lex())
	}
}

func TestMotive(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory

	k.BindGround("gnd_slow", func(d *Directive) int { return 0 })
	op := doOperator("wave", "gnd_slow", 0.8)
	k.Pmem.AddOperator(op)

	o := newObj(w)
	act := w.MakeAct("wave", 0, -1.0, 0)
	act.Reveal(1)
	act.AddArg("obj", o)
	d := NewDirective(DirDo)
	d.Key.AddItem(act)
	d.Key.AddItem(o)
	ch := NewChain()
	ch.BindDir(d)
	k.Atree.AddFocus(ch, 1.0)
	runCycles(k, 4)

	var desc semnet.Graphlet
	probe := w.MakeAct("wave", 0, -1.0, 0)
	probe.AddArg("obj", o)
	desc.AddItem(probe)
	if got := k.Atree.Motive(&desc, nil); got != op {
		t.Errorf("Motive = %v, want the wave operator", got)
	}
}
