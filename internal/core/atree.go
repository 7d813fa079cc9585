package core

import (
	"math"
	"time"

	"noesis/internal/config"
	"noesis/internal/logging"
	"noesis/internal/semnet"
)

// MaxFoci caps the attention ring.
const MaxFoci = 50

// MoodSink receives affect-relevant feedback from reasoning: rule credit
// adjustments and prediction statistics. An affect model can subscribe
// without being part of the core.
type MoodSink interface {
	RuleAdj(chg float64)
	RuleEval(hit, miss int, surprise float64)
	OpAdj(chg float64)
}

// NullMood discards all feedback.
type NullMood struct{}

// RuleAdj implements MoodSink.
func (NullMood) RuleAdj(float64) {}

// RuleEval implements MoodSink.
func (NullMood) RuleEval(int, int, float64) {}

// OpAdj implements MoodSink.
func (NullMood) OpAdj(float64) {}

// ActionTree holds the attentional foci on top of working memory:
// a compacted array of plans with importance weights and recency boosts,
// serviced newest-to-oldest once per cycle, retired a while after they
// finish, with mark-sweep garbage collection of unreferenced facts.
type ActionTree struct {
	*semnet.WorkingMemory

	focus  [MaxFoci]*Chain
	done   [MaxFoci]int
	mark   [MaxFoci]int
	wt     [MaxFoci]float64
	boost  [MaxFoci]int
	active [MaxFoci]time.Time
	err    [MaxFoci]semnet.Graphlet

	fill  int
	chock int
	svc   int
	now   time.Time

	// note under construction (grounding API)
	nkey semnet.Graphlet

	// learning hyperparameters
	cinc, cdec float64 // rule confidence up/down
	pinc, pdec float64 // operator preference up/down
	pess       float64 // operator preference threshold
	wild       float64 // operator choice randomness
	fresh      float64 // Motive recall window (secs)
	retire     float64 // finished focus removal delay (secs)

	core *Kernel
}

// NewActionTree builds an attention tree over a fresh working memory.
func NewActionTree(rname string, lc config.LearningConfig) *ActionTree {
	at := &ActionTree{
		WorkingMemory: semnet.NewWorkingMemory(rname),
		svc:           -1,
		now:           time.Now(),
		cinc:          lc.ConfInc,
		cdec:          lc.ConfDec,
		pinc:          lc.PrefInc,
		pdec:          lc.PrefDec,
		pess:          lc.MinPref,
		wild:          lc.Wild,
		fresh:         lc.FreshSecs,
		retire:        lc.RetireSecs,
	}
	return at
}

// MaxFociCap returns the focus capacity.
func (at *ActionTree) MaxFociCap() int { return MaxFoci }

// NumFoci returns the current focus count.
func (at *ActionTree) NumFoci() int { return at.fill }

// Active counts foci still running.
func (at *ActionTree) Active() int {
	cnt := 0
	for i := 0; i < at.fill; i++ {
		if at.done[i] <= 0 {
			cnt++
		}
	}
	return cnt
}

// Inactive counts finished foci awaiting retirement.
func (at *ActionTree) Inactive() int { return at.fill - at.Active() }

// MinPref returns the operator preference gate.
func (at *ActionTree) MinPref() float64 { return at.pess }

// SetMinPref adjusts the preference gate, clamped to (0, 1.2].
func (at *ActionTree) SetMinPref(v float64) {
	if v < 0.01 {
		v = 0.01
	}
	if v > 1.2 {
		v = 1.2
	}
	at.pess = v
}

// Wildness returns the operator choice randomness.
func (at *ActionTree) Wildness() float64 { return at.wild }

// SetWild adjusts operator choice randomness, clamped to [0, 1].
func (at *ActionTree) SetWild(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	at.wild = v
}

///////////////////////////////////////////////////////////////////////////
//                       Confidence and preference                       //
///////////////////////////////////////////////////////////////////////////

// AdjRuleConf sets a rule's confidence, reporting the signed change.
func (at *ActionTree) AdjRuleConf(r *Rule, cf float64) float64 {
	if r == nil {
		return 0.0
	}
	chg := r.SetConf(cf)
	if chg != 0.0 {
		dir := "raise"
		if chg < 0 {
			dir = "lower"
		}
		logging.Learn("rule %d --> %s conf to %4.2f", r.RuleNum(), dir, r.Conf())
	}
	return chg
}

// incConf raises a rule's confidence after a correct prediction whose halo
// belief fell below the current skepticism. Never decreases; clamps <= 1.2.
func (at *ActionTree) incConf(r *Rule, conf0 float64) float64 {
	if conf0 >= at.MinBlf() {
		return 0.0
	}
	c := math.Min(conf0+at.cinc, 1.2)
	return at.AdjRuleConf(r, c)
}

// decConf lowers a rule's confidence after a contradicted prediction that
// was above threshold. Never increases; clamps >= 0.1.
func (at *ActionTree) decConf(r *Rule, conf0 float64) float64 {
	if conf0 < at.MinBlf() {
		return 0.0
	}
	c := math.Max(conf0-at.cdec, 0.1)
	return at.AdjRuleConf(r, c)
}

// AdjOpPref raises (up > 0) or lowers an operator's preference.
func (at *ActionTree) AdjOpPref(op *Operator, up int) float64 {
	if op == nil {
		return 0.0
	}
	dv := at.pinc
	if up <= 0 {
		dv = -at.pdec
	}
	chg := op.SetPref(op.Pref() + dv)
	if chg != 0.0 {
		dir := "raise"
		if chg < 0 {
			dir = "lower"
		}
		logging.Learn("operator %d --> %s pref to %4.2f", op.OpNum(), dir, op.Pref())
		if at.core != nil && at.core.Mood != nil {
			at.core.Mood.OpAdj(chg)
		}
	}
	return chg
}

///////////////////////////////////////////////////////////////////////////
//                          List manipulation                            //
///////////////////////////////////////////////////////////////////////////

// NextFocus returns the index of the next unserviced active focus, newest
// first among those present at cycle start. Negative when none remain.
func (at *ActionTree) NextFocus() int {
	i := at.chock - 1
	for ; i >= 0; i-- {
		if at.mark[i] <= 0 && at.done[i] <= 0 {
			break
		}
	}
	if i >= 0 {
		at.mark[i] = 1
	}
	at.svc = i
	return i
}

// FocusN returns a particular focus chain.
func (at *ActionTree) FocusN(n int) *Chain {
	if n < 0 || n >= at.fill {
		return nil
	}
	return at.focus[n]
}

// Error returns the explicit error graphlet of the focus being serviced.
func (at *ActionTree) Error() *semnet.Graphlet {
	if at.svc < 0 || at.svc >= at.fill || at.err[at.svc].Empty() {
		return nil
	}
	return &at.err[at.svc]
}

// NeverRun reports a focus that has not had a cycle yet.
func (at *ActionTree) NeverRun(n int) bool {
	if n < 0 || n >= at.fill {
		return false
	}
	return at.done[n] <= 0 && at.active[n].IsZero()
}

// BaseBid gives the priority for actions connected to a focus: weight with
// a slight boost for recency.
func (at *ActionTree) BaseBid(n int) int {
	if n < 0 || n >= at.fill {
		return 0
	}
	return int(math.Round(1000.0*at.wt[n])) + at.boost[n]
}

// SetActive marks a focus chain as running now or finished.
func (at *ActionTree) SetActive(s *Chain, running int) {
	for i := 0; i < at.fill; i++ {
		if at.focus[i] != s {
			continue
		}
		if running > 0 {
			at.active[i] = at.now
		} else {
			at.done[i] = 1
		}
		return
	}
}

// ServiceWt updates the serviced focus's weight from the method preference
// of the operator that just fired. Returns the updated base bid.
func (at *ActionTree) ServiceWt(pref float64) int {
	if at.svc < 0 || at.svc >= at.fill {
		return 0
	}
	at.wt[at.svc] = pref
	return at.BaseBid(at.svc)
}

// ServiceBid returns the bid of the focus currently being serviced.
func (at *ActionTree) ServiceBid() int { return at.BaseBid(at.svc) }

///////////////////////////////////////////////////////////////////////////
//                          List modification                            //
///////////////////////////////////////////////////////////////////////////

// ClrFoci removes every focus (state transition, e.g. reset).
func (at *ActionTree) ClrFoci() {
	for i := 0; i < at.fill; i++ {
		at.focus[i] = nil
		at.err[i].Clear()
	}
	at.fill = 0
	at.chock = 0
	at.svc = -1
}

// AddFocus schedules a new plan, dropping the oldest finished focus when
// full. New items get a boost above older unfinished ones so recency wins
// among equal weights. Returns the slot index, negative when out of room.
func (at *ActionTree) AddFocus(f *Chain, pref float64) int {
	if at.fill >= MaxFoci {
		if at.dropOldest() <= 0 {
			logging.Attn("more than %d foci, new plan refused", MaxFoci)
			return -1
		}
	}

	n := at.fill
	at.focus[n] = f
	at.done[n] = 0
	at.mark[n] = 0
	at.wt[n] = pref
	at.err[n].Clear()

	// NOTE directives at the root can trigger reactive operators
	if d := f.GetDir(); d != nil && d.Kind == DirNote {
		d.Root = 1
		d.Own = n + 1
		for i := 0; i < d.Key.NumItems(); i++ {
			d.Key.Item(i).TopMax(n + 1)
		}
	}

	// importance boost computed from newest unfinished older item
	at.boost[n] = 0
	for i := n - 1; i >= 0; i-- {
		if at.done[i] <= 0 {
			at.boost[n] = at.boost[i] + 1
			break
		}
	}

	at.active[n] = time.Time{} // zero marks never-run
	at.fill++
	logging.Attn("new focus %d (wt %4.2f, boost %d)", n, pref, at.boost[n])
	return n
}

// dropOldest removes the longest-finished focus to make room.
func (at *ActionTree) dropOldest() int {
	drop := -1
	var worst time.Duration
	for i := 0; i < at.fill; i++ {
		if at.done[i] > 0 {
			age := at.now.Sub(at.active[i])
			if drop < 0 || age > worst {
				worst = age
				drop = i
			}
		}
	}
	if drop < 0 {
		return 0
	}
	at.remCompact(drop)
	return 1
}

// remCompact removes a focus slot and shifts the tail down.
func (at *ActionTree) remCompact(n int) {
	at.fill--
	at.chock--
	if at.chock < 0 {
		at.chock = 0
	}
	for i := n; i < at.fill; i++ {
		at.focus[i] = at.focus[i+1]
		at.done[i] = at.done[i+1]
		at.mark[i] = at.mark[i+1]
		at.wt[i] = at.wt[i+1]
		at.boost[i] = at.boost[i+1]
		at.active[i] = at.active[i+1]
		at.err[i].Copy(&at.err[i+1])
	}
	at.focus[at.fill] = nil
	at.err[at.fill].Clear()
	if at.svc > n {
		at.svc--
	}
}

///////////////////////////////////////////////////////////////////////////
//                              Maintenance                              //
///////////////////////////////////////////////////////////////////////////

// Update starts a cycle: discards expired foci, optionally garbage
// collects unreferenced nodes, and bumps the generation counter.
// Returns positive when working memory changed since the last cycle.
func (at *ActionTree) Update(gc bool) int {
	at.now = time.Now()
	at.pruneFoci()

	if gc {
		for i := 0; i < at.fill; i++ {
			at.focus[i].MarkSeeds(true)
			at.err[i].MarkSeeds()
		}
		if n := at.CleanMem(); n > 0 {
			logging.Wmem("garbage collected %d nodes", n)
		}
	}
	at.BumpVer()
	return at.Changes()
}

// pruneFoci retires foci finished longer than the retirement delay and
// clears service marks for the new cycle.
func (at *ActionTree) pruneFoci() int {
	i := 0
	for i < at.fill {
		if at.done[i] > 0 && at.now.Sub(at.active[i]).Seconds() > at.retire {
			logging.Attn("retiring focus %d", i)
			at.remCompact(i)
			continue
		}
		at.mark[i] = 0
		i++
	}
	at.chock = at.fill
	return at.chock
}

// ServiceCycle runs one scheduling pass: each eligible focus advances by
// exactly one Status call, newest first. Returns foci serviced.
func (at *ActionTree) ServiceCycle() int {
	cnt := 0
	for {
		n := at.NextFocus()
		if n < 0 {
			break
		}
		cnt++
		ch := at.focus[n]
		if at.NeverRun(n) {
			at.active[n] = at.now
			if res := ch.Start(at.core, 0); ch.Terminal(res) {
				at.finish(n, res)
			}
			continue
		}
		if res := ch.Status(); ch.Terminal(res) {
			at.finish(n, res)
		} else {
			at.active[n] = at.now
		}
	}
	return cnt
}

// finish stamps a verdict on a focus.
func (at *ActionTree) finish(n, res int) {
	at.done[n] = 1
	at.active[n] = at.now
	if res < 0 {
		if dir := at.FindFailN(n); dir != nil {
			logging.Attn("focus %d failed at %s[%s]", n, dir.KindTag(), dir.KeyTag())
		} else {
			logging.Attn("focus %d failed", n)
		}
	} else {
		logging.Attn("focus %d finished (%d)", n, res)
	}
}

///////////////////////////////////////////////////////////////////////////
//                           Halo interaction                            //
///////////////////////////////////////////////////////////////////////////

// CompareHalo measures how unexpected a newly posted situation is relative
// to halo predictions, crediting or discrediting the one-step rules
// responsible. Only predictions with positive belief participate.
// Returns the surprise for the whole key.
func (at *ActionTree) CompareHalo(key *semnet.Graphlet, mood MoodSink) float64 {
	surp := 0.0
	hit, miss := 0, 0

	for i := 0; i < key.NumItems(); i++ {
		focus := key.Item(i)
		if focus.ObjNode() {
			continue
		}
		blf := focus.Belief()
		lo := -1.0
		var mate *semnet.Node
		for {
			mate = at.haloEquiv(focus, mate)
			if mate == nil {
				break
			}
			halo := mate.Belief()
			var s float64
			if focus.Neg() == mate.Neg() {
				s = math.Abs(blf - halo) // expected to some degree
			} else {
				s = blf + halo // full contradiction
			}
			if lo < 0.0 || s < lo {
				lo = s // best prediction for this element
			}

			r, _ := mate.HRule.(*Rule)
			if halo >= at.MinBlf() {
				if focus.Neg() == mate.Neg() {
					hit++
				} else {
					miss++
				}
			}

			// one-step inferences (band 2) get clean credit assignment
			if r != nil && at.InBand(mate, 2) {
				var chg float64
				if focus.Neg() == mate.Neg() {
					chg = at.incConf(r, halo)
				} else {
					chg = at.decConf(r, halo)
				}
				if mood != nil {
					mood.RuleAdj(chg)
				}
			}
		}
		if lo > surp {
			surp = lo // combine across whole key
		}
	}

	if mood != nil {
		mood.RuleEval(hit, miss, surp)
	}
	return surp
}

// haloEquiv finds the next halo prediction with the same lex, event state,
// and exact arguments as the probe (negation deliberately ignored), beyond
// the ghost band.
func (at *ActionTree) haloEquiv(n *semnet.Node, h0 *semnet.Node) *semnet.Node {
	bin := n.Code()
	h := h0
	for {
		h = at.Halo().Next(h, bin)
		if h == nil {
			return nil
		}
		if at.InBand(h, 1) {
			continue // ghost facts are recollections, not predictions
		}
		if h.Belief() <= 0.0 || h.Done() != n.Done() ||
			h.NumArgs() != n.NumArgs() || !h.LexSame(n) {
			continue
		}
		ok := true
		for i := 0; i < n.NumArgs(); i++ {
			if !h.HasVal(n.Slot(i), n.Arg(i)) {
				ok = false
				break
			}
		}
		if ok {
			return h
		}
	}
}

///////////////////////////////////////////////////////////////////////////
//                            Rule promotion                             //
///////////////////////////////////////////////////////////////////////////

// ReifyRules promotes halo facts referenced by the bindings into working
// memory, creating a NOTE focus for each rule whose result became real.
// The bindings are updated in place to reference the promoted nodes.
// Returns the number of NOTEs generated.
func (at *ActionTree) ReifyRules(b *semnet.Bindings, note int) int {
	h2m := semnet.NewBindings(nil)
	fcnt := 0

	for {
		item, step := at.pickNonWmem(b, h2m, 0)
		if item == nil {
			break
		}
		if item.HBind != nil {
			at.promoteAll(h2m, item.HBind)
		} else {
			b2 := semnet.NewBindings(nil)
			b2.Bind(item, item)
			at.promoteAll(h2m, b2)
		}
		b.ReplaceSubs(h2m)
		if note <= 0 || step < note {
			continue
		}

		// instantiate the responsible rule's result as a NOTE
		if r, ok := item.HRule.(*Rule); ok && item.HBind != nil {
			dir := NewDirective(DirNote)
			b2 := semnet.NewBindings(nil)
			b2.CopyReplace(item.HBind, h2m)
			r.Inferred(&dir.Key, b2)
			ch := NewChain()
			ch.BindDir(dir)
			at.AddFocus(ch, 1.0)
			fcnt++
		}
	}
	return fcnt
}

// pickNonWmem finds a substitution that still lives outside main memory,
// preferring precursor facts of a rule chain (step 1) before the directly
// relevant fact itself (step 2). Returns nil when everything is promoted.
func (at *ActionTree) pickNonWmem(b *semnet.Bindings, h2m *semnet.Bindings, stop int) (*semnet.Node, int) {
	bcnt := b.NumPairs()
	if stop > 0 && stop < bcnt {
		bcnt = stop
	}
	for i := 0; i < bcnt; i++ {
		sub := b.GetSub(i)
		if sub == nil || at.InMain(sub) {
			continue
		}
		if stop <= 0 && sub.HRule != nil && sub.HBind != nil {
			if r, ok := sub.HRule.(*Rule); ok {
				b2 := semnet.NewBindings(nil)
				b2.CopyReplace(sub.HBind, h2m)
				if mid, _ := at.pickNonWmem(b2, h2m, r.NumPat()); mid != nil {
					return mid, 1
				}
			}
		}
		return sub, 2
	}
	return nil, 0
}

// promoteAll mints a main memory node for every non-wmem substitution in
// the bindings (and their arguments), then replicates the halo structure
// onto the new nodes. Correspondences accumulate in h2m.
func (at *ActionTree) promoteAll(h2m *semnet.Bindings, b *semnet.Bindings) {
	at.BuildIn(nil)
	b2 := semnet.NewBindings(nil)
	b2.CopyReplace(b, h2m)
	h0 := h2m.NumPairs()

	for i := 0; i < b2.NumPairs(); i++ {
		n := b2.GetSub(i)
		if n == nil {
			continue
		}
		at.promote(h2m, n)
		for j := 0; j < n.NumArgs(); j++ {
			at.promote(h2m, n.ArgSurf(j))
		}
	}

	// replicate arcs of each promoted node
	for i := h0; i < h2m.NumPairs(); i++ {
		n0 := h2m.GetKey(i)
		n := h2m.GetSub(i)
		for j := 0; j < n0.NumArgs(); j++ {
			n2 := n0.ArgSurf(j)
			if !at.InMain(n2) {
				n2 = h2m.LookUp(n2)
			}
			if n2 != nil {
				n.AddArg(n0.Slot(j), n2)
			}
		}
	}
}

// promote makes an equivalent wmem node for one halo or LTM node,
// mooring object promotions to their long-term cognates.
func (at *ActionTree) promote(h2m *semnet.Bindings, n *semnet.Node) int {
	if n == nil || at.InMain(n) || h2m.InKeys(n) {
		return 0
	}
	deep := n.Deep()

	n2 := at.MakeNode(n.Kind(), n.Lex(), n.Neg(), 1.0, n.Done())
	n2.SetBelief(n.Default())
	n2.Reveal(1)
	h2m.Bind(n, n2)

	if n.ObjNode() && !deep.Halo() && deep != n {
		logging.Wmem("promote creates %s for memory %s", n2.Nick(), deep.Nick())
		n2.MoorTo(deep)
		at.NoteSolo(n2)
	}
	return 1
}

///////////////////////////////////////////////////////////////////////////
//                          Execution tracing                            //
///////////////////////////////////////////////////////////////////////////

// HaltActive stops all in-progress activities matching the description
// whose focus bid is at or below the given bid; higher-bid matches are
// left running and flagged. Returns 1 if all matching activities stopped,
// -2 when some could not be preempted.
func (at *ActionTree) HaltActive(desc *semnet.Graphlet, skip *Directive, bid int) int {
	act := desc.MainAct()
	if act == nil {
		return 0
	}
	neg := act.Neg()
	act.SetNeg(0)
	defer act.SetNeg(neg)

	ans := 1
	for i := 0; i < at.fill; i++ {
		ch := at.focus[i]
		if ch == nil {
			continue
		}
		if bid >= at.BaseBid(i) {
			ch.FindActive(desc, true)
		} else if ch.FindActive(desc, false) > 0 {
			ans = -2 // soft conflict: cannot preempt
		}
	}
	return ans
}

// Motive finds the operator behind the most recent fresh call matching the
// description, plus a mapping from description variables to operator
// variables. Returns nil when nothing recent matches.
func (at *ActionTree) Motive(desc *semnet.Graphlet, d2o *semnet.Bindings) *Operator {
	main := desc.MainAct()
	if main == nil {
		return nil
	}
	if d2o != nil {
		d2o.Clear()
	}
	cutoff := time.Now().Add(-time.Duration(at.fresh * float64(time.Second)))

	var bestOp *Operator
	var bestAt time.Time
	for i := 0; i < at.fill; i++ {
		at.findCall(at.focus[i], main, cutoff, &bestOp, &bestAt, d2o)
	}
	return bestOp
}

// findCall walks executed steps looking for the freshest directive whose
// key action matches the probe.
func (at *ActionTree) findCall(ch *Chain, main *semnet.Node, cutoff time.Time,
	bestOp **Operator, bestAt *time.Time, d2o *semnet.Bindings) {
	seen := map[*Chain]bool{}
	var walk func(s *Chain)
	walk = func(s *Chain) {
		if s == nil || seen[s] {
			return
		}
		seen[s] = true
		if d := s.GetDir(); d != nil {
			if act := d.KeyAct(); act != nil && act.LexSame(main) {
				if op := d.LastOp(); op != nil && s.mt0.After(cutoff) {
					if *bestOp == nil || s.mt0.After(*bestAt) {
						*bestOp = op
						*bestAt = s.mt0
						if d2o != nil && d.LastVars() != nil {
							d2o.Copy(d.LastVars())
						}
					}
				}
			}
			if d.Meth != nil {
				walk(d.Meth)
			}
		}
		if p := s.GetPlay(); p != nil {
			for j := 0; j < p.NumReq(); j++ {
				walk(p.ReqN(j))
			}
			for j := 0; j < p.NumSimul(); j++ {
				walk(p.SimulN(j))
			}
		}
		walk(s.Cont)
		walk(s.Alt)
		walk(s.Fail)
	}
	walk(ch)
}

// FindFail locates the leaf directive to blame for the most recently
// serviced focus's failure.
func (at *ActionTree) FindFail() *Directive { return at.FindFailN(at.svc) }

// FindFailN attributes failure for a particular focus: failed required
// steps of a play first, then terminated guards, then the last step along
// the executed path.
func (at *ActionTree) FindFailN(n int) *Directive {
	ch := at.FocusN(n)
	if ch == nil {
		return nil
	}
	return at.failedDir(ch)
}

// playProb finds the first failing activity within a play.
func (at *ActionTree) playProb(play *Play) *Directive {
	for i := 0; i < play.NumReq(); i++ {
		if play.ReqStatus(i) < 0 {
			return at.failedDir(play.ReqN(i))
		}
	}
	for i := 0; i < play.NumSimul(); i++ {
		if play.SimulStatus(i) != 0 {
			seq := play.SimulN(i)
			if dir := at.failedDir(seq); dir != nil {
				return dir
			}
			// otherwise blame the last thing the guard did
			last := seq.Last()
			if d := last.GetDir(); d != nil {
				return d
			}
			if p := last.GetPlay(); p != nil && p.NumReq() > 0 {
				return at.failedDir(p.ReqN(0))
			}
		}
	}
	return nil
}

// failedDir follows saved verdicts to the first failing directive.
func (at *ActionTree) failedDir(start *Chain) *Directive {
	seen := map[*Chain]bool{}
	step := start
	for step != nil {
		if seen[step] {
			return nil // loop
		}
		seen[step] = true
		v := step.Verdict()
		if v < 0 {
			// a FIND retry that moved on is not the culprit
			if step.Cont == nil || step.Cont.Verdict() == 0 {
				if d := step.GetDir(); d != nil {
					return d
				}
				if p := step.GetPlay(); p != nil {
					return at.playProb(p)
				}
				return nil
			}
		} else if v == 0 {
			if d := step.GetDir(); d != nil && d.Meth != nil {
				if leaf := at.failedDir(d.Meth); leaf != nil {
					return leaf
				}
			}
			return nil // still running
		}
		if v == 2 {
			step = step.Alt
		} else {
			step = step.Cont
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
//                          External interface                           //
///////////////////////////////////////////////////////////////////////////

// StartNote opens a top-level NOTE for construction: subsequent NewNode,
// NewProp, AddArg, and NewLex calls accumulate the assertion.
func (at *ActionTree) StartNote() {
	at.nkey.Clear()
	at.BuildIn(&at.nkey)
	at.SetVisDef(0) // facts stay hidden until FinishNote posts them
}

// NewNode creates a fresh node for the note under construction.
func (at *ActionTree) NewNode(kind, word string, neg int, blf float64) *semnet.Node {
	return at.MakeNode(kind, word, neg, -blf, 0)
}

// NewProp attaches a property to a note node.
func (at *ActionTree) NewProp(head *semnet.Node, role, word string, neg int, blf float64) *semnet.Node {
	return at.AddProp(head, role, word, neg, -blf)
}

// NewLex attaches or changes the lexical term of a note node.
func (at *ActionTree) NewLex(head *semnet.Node, word string) {
	at.SetLex(head, word)
}

// Person finds a node by personal name.
func (at *ActionTree) Person(name string) *semnet.Node { return at.FindName(name) }

// Self returns the fixed system node.
func (at *ActionTree) Self() *semnet.Node { return at.Robot() }

// User returns the current conversation partner.
func (at *ActionTree) User() *semnet.Node { return at.Human() }

// Resolve finds an existing main memory equivalent for the note built so
// far. When one exists the construction is discarded and the match is
// returned; otherwise the focus argument comes back unchanged.
func (at *ActionTree) Resolve(focus *semnet.Node) *semnet.Node {
	sit := semnet.NewSituation()
	sit.InitPattern(&at.nkey)
	at.WorkingMemory.MaxBand(0)
	sit.Bth = at.MinBlf()
	if got := sit.FindRef(focus, at.WorkingMemory); got != nil {
		for i := 0; i < at.nkey.NumItems(); i++ {
			at.RemNode(at.nkey.Item(i))
		}
		at.nkey.Clear()
		return got
	}
	return focus
}

// NewFound marks a node volunteered by a grounding kernel as visible and
// fully believed, eligible for FIND.
func (at *ActionTree) NewFound(obj *semnet.Node) {
	if obj == nil {
		return
	}
	obj.SetBelief(1.0)
	obj.Reveal(1)
	at.SetGen(obj, 0)
}

// FinishNote posts the note under construction as a new focus. With fail
// set, the note also becomes the error description of the focus currently
// being serviced. Returns the focus index, -2 when nothing was built.
func (at *ActionTree) FinishNote(fail bool) int {
	at.BuildIn(nil)
	at.SetVisDef(1)
	if at.nkey.Empty() {
		return -2
	}
	at.nkey.MainProp()

	if fail && at.svc >= 0 && at.svc < at.fill {
		at.err[at.svc].Copy(&at.nkey)
	}

	dir := NewDirective(DirNote)
	dir.Key.Copy(&at.nkey)
	ch := NewChain()
	ch.BindDir(dir)
	at.nkey.Clear()
	return at.AddFocus(ch, 1.0)
}

// NoteSolo posts a single-node NOTE.
func (at *ActionTree) NoteSolo(n *semnet.Node) {
	at.StartNote()
	at.nkey.AddItem(n)
	at.FinishNote(false)
}

// ExplainFail posts an introspective NOTE naming the directive that could
// not run and why (e.g. an unbound grounding function).
func (at *ActionTree) ExplainFail(d *Directive, why string) {
	at.StartNote()
	evt := at.NewNode("act", "fail", 0, 1.0)
	evt.SetDone(1)
	at.NewProp(evt, "mod", why, 0, 1.0)
	if act := d.KeyAct(); act != nil {
		evt.AddArg("obj", act)
	}
	evt.AddArg("agt", at.Self())
	at.FinishNote(true)
}
