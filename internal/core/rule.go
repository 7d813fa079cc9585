// Package core implements the reasoning layer of noesis: declarative rules
// and their halo inference cycle, procedural operators, the hierarchical
// directive/chain/play execution model, the attention tree scheduler, the
// cognition kernel with its grounding API, and knowledge file I/O.
package core

import (
	"math"

	"noesis/internal/logging"
	"noesis/internal/semnet"
)

// MaxHaloInst caps halo instantiations per rule per cycle.
const MaxHaloInst = 50

// Rule is a declarative implication: when the precondition graphlet matches
// working memory (and no caveat matches), the result graphlet is asserted
// into the halo with this rule's confidence. Each halo fact remembers the
// rule and bindings that produced it for credit assignment.
type Rule struct {
	*semnet.Situation

	Result semnet.Graphlet
	gist   string
	next   *Rule
	conf0  float64
	conf   float64
	id     int
	lvl    int

	// run-time match state
	hinst []*semnet.Bindings
	hyp   []int
	wmem  *semnet.WorkingMemory
	nh    int

	// source of info
	Prov string
	PNum int
}

// NewRule creates an empty rule with confidence 1.0.
func NewRule() *Rule {
	r := &Rule{
		Situation: semnet.NewSituation(),
		conf:      1.0,
		conf0:     1.0,
		hinst:     make([]*semnet.Bindings, MaxHaloInst),
		hyp:       make([]int, MaxHaloInst),
	}
	for i := range r.hinst {
		r.hinst[i] = semnet.NewBindings(nil)
	}
	return r
}

// RuleNum returns the rule id (implements semnet.RuleTag).
func (r *Rule) RuleNum() int { return r.id }

// Conf returns the current result confidence.
func (r *Rule) Conf() float64 { return r.conf }

// Level returns the provenance level (0 kernel, 1 extras, 2 accumulated).
func (r *Rule) Level() int { return r.lvl }

// SetLevel records the provenance level.
func (r *Rule) SetLevel(lvl int) { r.lvl = lvl }

// Gist returns the human readable source utterance.
func (r *Rule) Gist() string { return r.gist }

// SetGist remembers the utterance that generated this rule.
func (r *Rule) SetGist(sent string) { r.gist = sent }

// SetConf changes confidence, quantized to two decimals and clamped to
// [0.1, 1.2]. Returns the signed amount actually applied.
func (r *Rule) SetConf(v float64) float64 {
	v = math.Round(100.0*v) / 100.0
	if v < 0.1 {
		v = 0.1
	}
	if v > 1.2 {
		v = 1.2
	}
	chg := v - r.conf
	r.conf = v
	return chg
}

// DefaultConf returns the original (loaded) confidence.
func (r *Rule) DefaultConf() float64 { return r.conf0 }

///////////////////////////////////////////////////////////////////////////
//                             Main functions                            //
///////////////////////////////////////////////////////////////////////////

// AssertMatches finds all bindings that make the precondition hold and
// asserts the instantiated result into the halo. Conditions must have
// belief >= mth or belief exactly 0 (hypothetical chains are allowed).
// With add > 0, bindings from the previous round are retained so two-step
// inferences can consume one-step results. Returns newly asserted count.
func (r *Rule) AssertMatches(f *semnet.WorkingMemory, mth float64, add int) int {
	ni := r.Cond.NumItems()
	if ni == 0 {
		return 0
	}
	if add <= 0 {
		r.nh = 0
	}
	mc := MaxHaloInst - r.nh
	if mc <= 0 {
		return 0
	}
	nh0 := r.nh

	for i := 0; i < mc; i++ {
		r.hinst[i].Clear()
		r.hinst[i].Expect = ni
	}

	r.wmem = f
	r.Bth = -mth // hypothetical preconditions are ok
	r.Found = r.matchFound
	r.nh += r.MatchGraph(r.hinst, &mc, &r.Cond, f, nil)
	r.wmem = nil
	return r.nh - nh0
}

// matchFound instantiates the result into the halo for one complete match.
func (r *Rule) matchFound(m []*semnet.Bindings, mc *int) int {
	b := m[*mc-1]
	nb := b.NumPairs()
	h := 0
	if b.AnyHyp() {
		h = 1
	}

	// find most relevant NOTE and newest generation among preconditions
	tval, ver := 0, 0
	r.hyp[*mc-1] = h
	for i := 0; i < nb; i++ {
		if n := b.GetSub(i); n != nil {
			if n.Generation() > ver {
				ver = n.Generation()
			}
			if n.Top > tval {
				tval = n.Top
			}
		}
	}

	// see if this same result was already posted by another binding set
	dup := r.sameResult(m, *mc, tval)
	if dup < 0 {
		return 0 // earlier instantiation has better relevance
	}
	if dup > 0 {
		// same effect but this set is more relevant: substitute in place
		for i := 0; i < nb; i++ {
			m[dup].SetSub(i, b.LookUp(m[dup].GetKey(i)))
		}
		r.initResult(m[dup], tval, ver, h)
		return 0
	}

	// otherwise create new result nodes in halo
	r.wmem.AssertHalo(&r.Result, b)
	r.initResult(b, tval, ver, h)

	// shift to next set of bindings (this set preserved)
	if *mc <= 1 {
		logging.HaloDebug("rule %d exceeded %d halo instantiations", r.id, MaxHaloInst)
	} else {
		*mc--
	}
	return 1
}

// sameResult checks whether the latest binding set duplicates the halo
// result of an earlier accepted set. Returns 0 if novel, the earlier index
// if the new set is more relevant (substitute), or its negation if the
// earlier one should stand.
func (r *Rule) sameResult(m []*semnet.Bindings, mc int, t0 int) int {
	b := m[mc-1]
	nb := b.NumPairs()
	h := r.hyp[mc-1]

	for j := MaxHaloInst - 1; j >= mc; j-- {
		if r.hyp[j] != h {
			continue
		}
		tval := 0
		same := true
		for i := 0; i < nb; i++ {
			pn := b.GetKey(i)
			n := m[j].LookUp(pn)
			if b.GetSub(i) != n && r.resultUses(pn) {
				same = false
				break
			}
			if n != nil && n.Top > tval {
				tval = n.Top
			}
		}
		if same {
			if tval >= t0 {
				return -j
			}
			return j
		}
	}
	return 0
}

// resultUses tells whether the instantiated result depends on a key.
func (r *Rule) resultUses(key *semnet.Node) bool {
	for i := 0; i < r.Result.NumItems(); i++ {
		item := r.Result.Item(i)
		if item == key {
			return true
		}
		for j := 0; j < item.NumArgs(); j++ {
			if item.Arg(j) == key {
				return true
			}
		}
	}
	return false
}

// initResult stamps freshly minted halo nodes: generation, focus relevance,
// default belief (zeroed for hypothetical chains), and provenance.
func (r *Rule) initResult(b *semnet.Bindings, tval, ver, zero int) {
	for i := 0; i < r.Result.NumItems(); i++ {
		pn := r.Result.Item(i)
		n := b.LookUp(pn)
		if n == nil || !n.Halo() || r.Cond.InDesc(n) {
			continue
		}
		r.wmem.Halo().SetGen(n, ver)
		n.TopMax(tval)
		n.SetDefault(pn.Default())
		if zero > 0 {
			n.TmpBelief(0.0)
		} else {
			n.TmpBelief(n.Default())
		}
		n.HRule = r
		n.HBind = b
	}
}

// Inferred fills a graphlet with the rule's full result under bindings.
func (r *Rule) Inferred(key *semnet.Graphlet, b *semnet.Bindings) {
	for i := 0; i < r.Result.NumItems(); i++ {
		item := r.Result.Item(i)
		if sub := b.LookUp(item); sub != nil {
			key.AddItem(sub)
		} else {
			key.AddItem(item)
		}
	}
}

///////////////////////////////////////////////////////////////////////////
//                          Halo consolidation                           //
///////////////////////////////////////////////////////////////////////////

// AddCombo merges the precondition of a step-1 rule (under its bindings)
// into this consolidated rule, keeping m2c as the memory-to-combo mapping.
func (r *Rule) AddCombo(m2c *semnet.Bindings, step1 *Rule, b1 *semnet.Bindings) {
	c1 := &step1.Cond
	for i := 0; i < c1.NumItems(); i++ {
		if mem := b1.LookUp(c1.Item(i)); mem != nil {
			r.Cond.AddItem(r.getEquiv(m2c, mem, 0))
		}
	}
}

// LinkCombo finishes the consolidated rule from the step-2 rule: non-halo
// preconditions join the combo condition, intermediate halo facts set the
// confidence floor, and the step-2 result becomes the combo result.
func (r *Rule) LinkCombo(m2c *semnet.Bindings, step2 *Rule, b2 *semnet.Bindings) {
	c2, r2 := &step2.Cond, &step2.Result
	r.conf = step2.conf

	for i := 0; i < c2.NumItems(); i++ {
		mem := b2.LookUp(c2.Item(i))
		if mem == nil {
			continue
		}
		if !mem.Halo() {
			r.Cond.AddItem(r.getEquiv(m2c, mem, 0))
		} else {
			// intermediate fact: result belief of the step-1 rule
			if mem.HBind != nil {
				if fact := mem.HBind.FindKey(mem); fact != nil && fact.Belief() < r.conf {
					r.conf = fact.Belief()
				}
			}
			r.getEquiv(m2c, mem, 1) // might be an arg in combo result
		}
	}
	r.connectArgs(&r.Cond, m2c)

	for i := 0; i < r2.NumItems(); i++ {
		if mem := b2.LookUp(r2.Item(i)); mem != nil {
			r.Result.AddItem(r.getEquiv(m2c, mem, 1))
		}
	}
	r.connectArgs(&r.Result, m2c)
	r.Result.RemAll(&r.Cond)
	r.Result.ForceBelief(r.conf)
	r.conf0 = r.conf
}

// getEquiv returns (or creates) the combo-local node for a memory node.
func (r *Rule) getEquiv(m2c *semnet.Bindings, probe *semnet.Node, bcpy int) *semnet.Node {
	blf := 1.0
	if bcpy > 0 && probe.Halo() && probe.HBind != nil {
		if fact := probe.HBind.FindKey(probe); fact != nil {
			blf = fact.Belief()
		}
	}
	if equiv := m2c.LookUp(probe); equiv != nil {
		return equiv
	}
	equiv := r.MakeNode(probe.Kind(), probe.Lex(), probe.Neg(), -blf, probe.Done())
	m2c.Bind(probe, equiv)
	return equiv
}

// connectArgs replicates the argument wiring of the original memory nodes
// onto the combo nodes, pulling in intermediate arguments as needed.
func (r *Rule) connectArgs(desc *semnet.Graphlet, m2c *semnet.Bindings) {
	for i := 0; i < desc.NumItems(); i++ {
		combo := desc.Item(i)
		mem := m2c.FindKey(combo)
		if mem == nil {
			continue
		}
		for j := 0; j < mem.NumArgs(); j++ {
			if carg := m2c.LookUp(mem.Arg(j)); carg != nil {
				combo.AddArg(mem.Slot(j), carg)
				desc.AddItem(carg)
			}
		}
	}
}

///////////////////////////////////////////////////////////////////////////
//                              Rule tests                               //
///////////////////////////////////////////////////////////////////////////

// Identical checks for an exact structural duplicate (same item order).
func (r *Rule) Identical(ref *Rule) bool {
	nc, nr := r.Cond.NumItems(), r.Result.NumItems()
	if ref.Cond.NumItems() != nc || ref.Result.NumItems() != nr {
		return false
	}
	for i := 0; i < nc; i++ {
		if !sameStruct(r.Cond.Item(i), ref.Cond.Item(i)) {
			return false
		}
	}
	for i := 0; i < nr; i++ {
		if !sameStruct(r.Result.Item(i), ref.Result.Item(i)) {
			return false
		}
	}
	return true
}

// sameStruct compares two rule-local nodes by shape (assumes numbering).
func sameStruct(focus, mate *semnet.Node) bool {
	if mate.Neg() != focus.Neg() || focus.Lex() != mate.Lex() ||
		mate.NumArgs() != focus.NumArgs() {
		return false
	}
	for i := 0; i < focus.NumArgs(); i++ {
		if focus.Arg(i).Inst() != mate.Arg(i).Inst() ||
			focus.Slot(i) != mate.Slot(i) {
			return false
		}
	}
	return true
}

// Tautology tells whether the result is satisfiable from the precondition
// alone, making the rule useless (infers X from X).
func (r *Rule) Tautology() bool {
	sit := semnet.NewSituation()
	sit.BuildCond()
	b := semnet.NewBindings(nil)
	sit.Assert(&r.Cond, b, 1.0, 0, nil)
	sit.BuildIn(nil)

	b2 := semnet.NewBindings(nil)
	b2.Expect = sit.Cond.NumItems()
	mc := 1
	sit.Bth = -0.1 // structural test, belief magnitudes irrelevant
	return sit.MatchGraph([]*semnet.Bindings{b2}, &mc, sit.Pattern(), &r.Result, nil) > 0
}

// Bipartite tells whether the result shares no nodes (directly or through
// arguments) with the precondition, i.e. the implication is disconnected.
func (r *Rule) Bipartite() bool {
	touches := func(n *semnet.Node) bool {
		if r.Cond.InDesc(n) {
			return true
		}
		for j := 0; j < n.NumArgs(); j++ {
			if r.Cond.InDesc(n.Arg(j)) {
				return true
			}
		}
		for j := 0; j < n.NumProps(); j++ {
			if r.Cond.InDesc(n.Prop(j)) {
				return true
			}
		}
		return false
	}
	for i := 0; i < r.Result.NumItems(); i++ {
		if touches(r.Result.Item(i)) {
			return false
		}
	}
	return r.Result.NumItems() > 0
}
