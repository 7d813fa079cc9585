package core

import (
	"path/filepath"
	"testing"

	"noesis/internal/config"
	"noesis/internal/semnet"
)

func testKernel(t *testing.T) *Kernel {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Memory.GCEvery = 0 // tests manage memory explicitly
	cfg.KB.Dir = t.TempDir()
	cfg.KB.Base = filepath.Join(cfg.KB.Dir, "accum")
	return NewKernel(cfg)
}

// newObj posts a visible plain object into working memory.
func newObj(w *semnet.WorkingMemory) *semnet.Node {
	n := w.MakeNode("obj", "", 0, -1.0, 0)
	n.Reveal(1)
	return n
}

// post attaches a visible believed property.
func post(w *semnet.WorkingMemory, head *semnet.Node, role, word string, neg int, blf float64) *semnet.Node {
	f := w.AddProp(head, role, word, neg, -blf)
	f.Reveal(1)
	return f
}

// implRule builds "if X is a <ifWord> then X is a <thenWord>" at conf.
func implRule(ifWord, thenWord string, conf float64) *Rule {
	r := NewRule()
	r.BuildCond()
	x := r.MakeNode("obj", "", 0, 1.0, 0)
	r.AddProp(x, "ako", ifWord, 0, 1.0)
	r.BuildIn(&r.Result)
	r.AddProp(x, "ako", thenWord, 0, conf)
	r.BuildIn(nil)
	r.Result.ForceBelief(conf)
	r.Result.ActualizeAll(0)
	r.conf = conf
	r.conf0 = conf
	return r
}

// haloWith finds the first halo node with the given lex.
func haloWith(w *semnet.WorkingMemory, lex string) *semnet.Node {
	for n := w.Halo().First(-1); n != nil; n = w.Halo().NextPool(n) {
		if n.LexMatch(lex) {
			return n
		}
	}
	return nil
}

func TestSimpleInference(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory
	o := newObj(w)
	post(w, o, "ako", "dog", 0, 1.0)

	r := implRule("dog", "animal", 0.9)
	if k.Amem.AddRule(r, 0) <= 0 {
		t.Fatal("AddRule rejected a sound rule")
	}

	w.ClearHalo()
	k.Amem.RefreshHalo(w)

	inf := haloWith(w, "animal")
	if inf == nil {
		t.Fatal("no halo inference produced")
	}
	if inf.Belief() != 0.9 {
		t.Errorf("halo belief = %v", inf.Belief())
	}
	if inf.HRule != r || inf.HBind == nil {
		t.Error("provenance missing on halo node")
	}
	if !inf.HasVal("ako", o) {
		t.Error("inference not about the right object")
	}

	// every believed halo node carries its rule
	for n := w.Halo().First(-1); n != nil; n = w.Halo().NextPool(n) {
		if n.Belief() > 0 && n.HRule == nil && !n.ObjNode() {
			t.Errorf("halo node %s has no provenance", n.Nick())
		}
	}
}

func TestContradictionLowersConfidence(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory
	o := newObj(w)
	post(w, o, "ako", "dog", 0, 1.0)

	r := implRule("dog", "animal", 0.9)
	k.Amem.AddRule(r, 0)
	w.ClearHalo()
	k.Amem.RefreshHalo(w)

	// contradictory NOTE: obj is NOT an animal
	var key semnet.Graphlet
	nf := post(w, o, "ako", "animal", 1, 1.0)
	key.AddItem(nf)
	k.Atree.CompareHalo(&key, k.Mood)

	if r.Conf() != 0.8 {
		t.Errorf("conf after contradiction = %v, want 0.8", r.Conf())
	}

	// lowering is monotone: repeat until clamp, never rises
	for i := 0; i < 20; i++ {
		w.ClearHalo()
		k.Amem.RefreshHalo(w)
		prev := r.Conf()
		k.Atree.CompareHalo(&key, k.Mood)
		if r.Conf() > prev {
			t.Fatal("contradiction raised confidence")
		}
	}
	if r.Conf() < 0.1 {
		t.Errorf("conf fell below clamp: %v", r.Conf())
	}
}

func TestCorrectPredictionRaisesWeakRule(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory
	o := newObj(w)
	post(w, o, "ako", "dog", 0, 1.0)

	r := implRule("dog", "animal", 0.3) // below skepticism
	k.Amem.AddRule(r, 0)
	w.ClearHalo()
	k.Amem.RefreshHalo(w)

	var key semnet.Graphlet
	key.AddItem(post(w, o, "ako", "animal", 0, 1.0))
	k.Atree.CompareHalo(&key, k.Mood)

	if r.Conf() != 0.4 {
		t.Errorf("conf after confirmation = %v, want 0.4", r.Conf())
	}
}

func TestSetConfQuantizeClamp(t *testing.T) {
	r := NewRule()
	r.SetConf(0.873)
	if r.Conf() != 0.87 {
		t.Errorf("quantize: %v", r.Conf())
	}
	r.SetConf(5.0)
	if r.Conf() != 1.2 {
		t.Errorf("upper clamp: %v", r.Conf())
	}
	r.SetConf(-3.0)
	if r.Conf() != 0.1 {
		t.Errorf("lower clamp: %v", r.Conf())
	}
}

func TestAddRuleRejections(t *testing.T) {
	am := NewAssocMem()

	// empty result
	empty := NewRule()
	empty.BuildCond()
	x := empty.MakeNode("obj", "", 0, 1.0, 0)
	empty.AddProp(x, "ako", "dog", 0, 1.0)
	empty.BuildIn(nil)
	if am.AddRule(empty, 0) != -1 {
		t.Error("empty result should be rejected")
	}

	// tautology: dog(x) -> dog(x)
	taut := implRule("dog", "dog", 1.0)
	if am.AddRule(taut, 0) != -2 {
		t.Error("tautology should be rejected")
	}

	// disconnected result
	bip := NewRule()
	bip.BuildCond()
	x2 := bip.MakeNode("obj", "", 0, 1.0, 0)
	bip.AddProp(x2, "ako", "dog", 0, 1.0)
	bip.BuildIn(&bip.Result)
	y := bip.MakeNode("obj", "", 0, 1.0, 0)
	bip.AddProp(y, "ako", "animal", 0, 1.0)
	bip.BuildIn(nil)
	if am.AddRule(bip, 0) != -3 {
		t.Error("bipartite rule should be rejected")
	}

	// duplicate becomes confidence update from the user
	r1 := implRule("dog", "animal", 0.9)
	if am.AddRule(r1, 0) <= 0 {
		t.Fatal("sound rule rejected")
	}
	r2 := implRule("dog", "animal", 0.7)
	if am.AddRule(r2, 0) != -4 {
		t.Error("duplicate should be rejected")
	}
	r3 := implRule("dog", "animal", 0.7)
	if am.AddRule(r3, 1) != 1 {
		t.Error("user duplicate should update")
	}
	if r1.Conf() != 0.7 {
		t.Errorf("existing conf = %v, want 0.7", r1.Conf())
	}
	if am.NumRules() != 1 {
		t.Errorf("rules = %d", am.NumRules())
	}
}

func TestTwoStepHaloBands(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory
	o := newObj(w)
	post(w, o, "ako", "dog", 0, 1.0)

	r1 := implRule("dog", "mammal", 0.9)
	r2 := implRule("mammal", "breathes", 0.8)
	k.Amem.AddRule(r1, 0)
	k.Amem.AddRule(r2, 0)

	w.ClearHalo()
	k.Amem.RefreshHalo(w)

	mam := haloWith(w, "mammal")
	brt := haloWith(w, "breathes")
	if mam == nil || brt == nil {
		t.Fatal("missing inferences")
	}
	if !w.InBand(mam, 2) {
		t.Error("one-step result should be in band 2")
	}
	if !w.InBand(brt, 3) {
		t.Error("two-step result should be in band 3")
	}
	if brt.Belief() != 0.8 {
		t.Errorf("two-step belief = %v", brt.Belief())
	}

	// refresh twice: halo rebuilt from scratch, no duplicates
	w.ClearHalo()
	k.Amem.RefreshHalo(w)
	cnt := 0
	for n := w.Halo().First(-1); n != nil; n = w.Halo().NextPool(n) {
		if n.LexMatch("mammal") {
			cnt++
		}
	}
	if cnt != 1 {
		t.Errorf("mammal inferred %d times", cnt)
	}
}

func TestConsolidation(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory
	o := newObj(w)
	post(w, o, "ako", "dog", 0, 1.0)

	r1 := implRule("dog", "mammal", 0.9)
	r2 := implRule("mammal", "breathes", 0.8)
	k.Amem.AddRule(r1, 0)
	k.Amem.AddRule(r2, 0)
	w.ClearHalo()
	k.Amem.RefreshHalo(w)

	brt := haloWith(w, "breathes")
	if brt == nil {
		t.Fatal("no two-step inference")
	}

	// bindings as an operator would hold them: the essential fact is halo
	probe := semnet.NewPool().MakeNode("obj", "", 0, 1.0, 0)
	b := semnet.NewBindings(nil)
	b.Bind(probe, brt)

	if n := k.Amem.Consolidate(b); n != 1 {
		t.Fatalf("Consolidate = %d", n)
	}
	combo := k.Amem.NextRule(r2)
	if combo == nil {
		t.Fatal("combined rule missing")
	}
	if combo.Conf() != 0.8 {
		t.Errorf("combo conf = %v, want min(0.9, 0.8)", combo.Conf())
	}
	// condition mentions dog, result mentions breathes, no mammal step
	condDog, condMam := false, false
	for i := 0; i < combo.Cond.NumItems(); i++ {
		if combo.Cond.Item(i).LexMatch("dog") {
			condDog = true
		}
		if combo.Cond.Item(i).LexMatch("mammal") {
			condMam = true
		}
	}
	if !condDog || condMam {
		t.Errorf("combo condition wrong (dog=%v mammal=%v)", condDog, condMam)
	}
	if combo.Result.NumItems() == 0 || !combo.Result.Item(0).LexMatch("breathes") {
		t.Error("combo result wrong")
	}

	// doing it again yields a duplicate, which is rejected
	w.ClearHalo()
	k.Amem.RefreshHalo(w)
	brt2 := haloWith(w, "breathes")
	b2 := semnet.NewBindings(nil)
	b2.Bind(probe, brt2)
	k.Amem.Consolidate(b2)
	if k.Amem.NumRules() != 3 {
		t.Errorf("rules = %d after duplicate consolidation", k.Amem.NumRules())
	}
}
