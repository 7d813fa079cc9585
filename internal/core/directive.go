package core

import (
	"math"
	"math/rand"
	"time"

	"noesis/internal/logging"
	"noesis/internal/semnet"
)

// DirKind enumerates the directive types. Order is load-bearing: tags and
// serialized forms index by it.
type DirKind int

// Directive kinds.
const (
	DirNote DirKind = iota // assertion posting; try all operators one by one
	DirDo                  // request action; first operator success wins
	DirAnte                // prepare for action; exhaust operators then succeed
	DirPunt                // immediate failure (short-circuit)
	DirFcn                 // kernel grounding call; externally terminated
	DirAch                 // goal: succeed as soon as item true
	DirKeep                // guard: fail when item becomes false
	DirChk                 // truth test; cont on true, alt on false
	DirFind                // bind description to some known item; max 3 guesses
	DirBind                // like FIND but may create a new item when stuck
	DirEach                // enumerate all bindings; alt-success when exhausted
	DirAny                 // like EACH but returns alt if no first binding
	DirNone                // block executed when FIND/BIND/EACH/ANY got stuck
	DirTry                 // scope boundary for new command/question
	DirAdd                 // accept new rule/operator into system
	DirMax
)

var dirTags = [DirMax]string{
	"NOTE", "DO", "ANTE", "PUNT", "FCN", "ACH", "KEEP", "CHK",
	"FIND", "BIND", "EACH", "ANY", "NONE", "TRY", "ADD",
}

// Tag returns the serialized name for a directive kind.
func (k DirKind) Tag() string {
	if k < 0 || k >= DirMax {
		return "?"
	}
	return dirTags[k]
}

// KindFromTag parses a directive kind name (-1 when unknown).
func KindFromTag(tag string) DirKind {
	for i, t := range dirTags {
		if t == tag {
			return DirKind(i)
		}
	}
	return -1
}

// Capacity limits for directive state.
const (
	MaxOps   = 20 // operator choices per selection round
	MaxHist  = 20 // non-return inhibition history
	MaxGuess = 3  // FIND/BIND guesses before failure is final
)

type nriEntry struct {
	op  *Operator
	b   *semnet.Bindings
	res int
}

// Directive states what sort of thing to do. It owns operator selection
// with non-return inhibition, CHK truth testing, FIND/BIND reference
// resolution with backtracking, and verdict reporting along the chain.
type Directive struct {
	sit *semnet.Situation // private matcher for CHK/ACH/KEEP/FIND

	// basic configuration
	Key  semnet.Graphlet
	Kind DirKind
	Root int // top-level focus marker
	Own  int // focus relevance value for NOTE triggers

	// payload for ADD
	NewRule *Rule
	NewOper *Operator

	// current matching progress (filled by ProcMem)
	Op    [MaxOps]*Operator
	match [MaxOps]*semnet.Bindings
	MC    int

	// action currently in progress
	Meth *Chain

	// already tried operators
	nri []nriEntry

	// choices for FIND-family directives
	guess   []*semnet.Node
	hyp     *semnet.Node
	cand0   int
	assumed bool

	// execution state
	step     *Chain
	core     *Kernel
	inst     int // nri index of the running method
	verdict  int
	started  bool
	matched  bool
	anteDone bool // DO only: implicit preparation phase exhausted
	anyOps   bool
	t0       time.Time
}

// NewDirective creates a directive of the given kind.
func NewDirective(kind DirKind) *Directive {
	d := &Directive{Kind: kind, sit: semnet.NewSituation(), inst: -1}
	for i := range d.match {
		d.match[i] = semnet.NewBindings(nil)
	}
	return d
}

// KindTag returns the serialized kind name.
func (d *Directive) KindTag() string { return d.Kind.Tag() }

// IsNote reports a NOTE directive.
func (d *Directive) IsNote() bool { return d.Kind == DirNote }

// IsFind reports a concrete reference search (FIND or BIND).
func (d *Directive) IsFind() bool { return d.Kind == DirFind || d.Kind == DirBind }

// ConcreteFind reports a FIND-family step holding a usable guess, i.e. a
// valid backstop for retry.
func (d *Directive) ConcreteFind() bool {
	return (d.Kind == DirFind || d.Kind == DirBind || d.Kind == DirEach || d.Kind == DirAny) &&
		d.hyp != nil
}

// KeyMain returns the key's distinguished node.
func (d *Directive) KeyMain() *semnet.Node { return d.Key.Main() }

// KeyAct returns the key main when it is a predicate.
func (d *Directive) KeyAct() *semnet.Node { return d.Key.MainAct() }

// KeyNick returns the key main nickname.
func (d *Directive) KeyNick() string { return d.Key.MainNick() }

// KeyTag returns the key main tag.
func (d *Directive) KeyTag() string { return d.Key.MainTag() }

// HasAlt reports kinds with a meaningful alternate continuation.
func (d *Directive) HasAlt() bool {
	return d.Kind == DirChk || d.Kind == DirEach || d.Kind == DirAny
}

// NumGuess returns how many FIND candidates have been tried.
func (d *Directive) NumGuess() int { return d.cand0 }

// NumTries returns the operator history length.
func (d *Directive) NumTries() int { return len(d.nri) }

// Verdict returns the cached outcome (0 while working).
func (d *Directive) Verdict() int { return d.verdict }

// LastOp returns the operator behind the running (or last) method.
func (d *Directive) LastOp() *Operator {
	if d.inst < 0 || d.inst >= len(d.nri) {
		return nil
	}
	return d.nri[d.inst].op
}

// LastVars returns the bindings used for the running (or last) method.
func (d *Directive) LastVars() *semnet.Bindings {
	if d.inst < 0 || d.inst >= len(d.nri) {
		return nil
	}
	return d.nri[d.inst].b
}

// matchSlice exposes the match array to the operator matcher.
func (d *Directive) matchSlice() []*semnet.Bindings { return d.match[:] }

// Involves tells whether the directive mentions a node in its key or its
// currently instantiated method.
func (d *Directive) Involves(item *semnet.Node) bool {
	if d.Key.InDesc(item) {
		return true
	}
	for i := 0; i < d.Key.NumItems(); i++ {
		k := d.Key.Item(i)
		for j := 0; j < k.NumArgs(); j++ {
			if k.Arg(j) == item {
				return true
			}
		}
	}
	return d.Meth != nil && d.Meth.Involves(item)
}

// MarkSeeds protects the directive's nodes during garbage collection.
func (d *Directive) MarkSeeds() {
	d.Key.MarkSeeds()
	if d.hyp != nil {
		d.hyp.SetKeep(1)
	}
	for _, g := range d.guess {
		g.SetKeep(1)
	}
	if d.Meth != nil {
		d.Meth.MarkSeeds(true)
	}
}

// reset clears run state for a fresh start.
func (d *Directive) reset() {
	d.MC = 0
	d.Meth = nil
	d.nri = d.nri[:0]
	d.guess = d.guess[:0]
	d.hyp = nil
	d.cand0 = 0
	d.assumed = false
	d.inst = -1
	d.verdict = 0
	d.matched = false
	d.anteDone = false
	d.anyOps = false
}

///////////////////////////////////////////////////////////////////////////
//                            Main functions                             //
///////////////////////////////////////////////////////////////////////////

// Start begins (or retries) the directive under the given chain step.
// Returns the initial verdict: 0 working, -2 for immediate failure.
func (d *Directive) Start(st *Chain) int {
	d.step = st
	d.core = st.core

	retry := d.started && d.ConcreteFind()
	if retry {
		d.verdict = 0 // keep guess history, exclude prior candidates
	} else {
		d.reset()
	}
	d.started = true
	d.t0 = time.Now()

	switch d.Kind {
	case DirPunt:
		d.verdict = -2
	case DirNote:
		// post the assertion: make visible, retract older variants,
		// measure surprise against halo expectations
		w := d.core.Atree.WorkingMemory
		d.Key.ActualizeAll(w.Version())
		w.RevealAll(&d.Key)
		w.Endorse(&d.Key)
		d.core.Atree.CompareHalo(&d.Key, d.core.Mood)
	}
	return d.verdict
}

// Status advances the directive by one cycle. Returns 0 while working,
// 1 for cont, 2 for alt, -2 for failure.
func (d *Directive) Status() int {
	if d.verdict != 0 {
		return d.verdict
	}

	switch d.Kind {
	case DirPunt:
		return d.report(-2)
	case DirTry:
		return d.report(1)
	case DirAdd:
		return d.doAdd()
	case DirFcn:
		return d.doFcn()
	case DirAch:
		if d.patConfirm(false) > 0 {
			return d.report(1) // item already (or now) true
		}
	case DirKeep:
		if d.patViolated() {
			return d.report(-2) // guarded condition has become false
		}
	case DirChk:
		if v := d.seekMatch(); v != 0 {
			return d.report(v)
		}
	case DirFind, DirBind, DirEach, DirAny:
		return d.seekInstance()
	}

	// run the instantiated method, if any
	if d.Meth != nil {
		res := d.Meth.Status()
		if res == 0 {
			return 0
		}
		d.recordResult(res)
		switch d.Kind {
		case DirDo:
			// preparation methods never settle the DO itself
			if res > 0 && d.anteDone {
				return d.report(1)
			}
		case DirAch:
			if d.patConfirm(false) > 0 {
				return d.report(1)
			}
		case DirChk:
			if v := d.seekMatch(); v != 0 {
				return d.report(v)
			}
		}
		d.Meth = nil
	}
	return d.nextMethod()
}

// Stop halts any running method and caches a neutral verdict.
func (d *Directive) Stop() int {
	if d.Meth != nil {
		d.Meth.Stop()
	}
	if d.verdict == 0 {
		d.verdict = -1
	}
	return d.verdict
}

// recordResult stamps the running method's outcome into the history.
func (d *Directive) recordResult(res int) {
	if d.inst >= 0 && d.inst < len(d.nri) {
		d.nri[d.inst].res = res
	}
}

// report caches the final verdict, applying operator preference feedback
// for top-level directives.
func (d *Directive) report(v int) int {
	d.verdict = v
	if d.Root > 0 && v != 0 {
		d.alterPref(v)
	}
	if v != 0 {
		logging.ActionDebug("%s[%s] verdict %d after %d tries",
			d.KindTag(), d.KeyTag(), v, len(d.nri))
	}
	return v
}

// alterPref walks backwards through the history: the operator that finally
// succeeded is reinforced, operators that failed before it are penalized.
func (d *Directive) alterPref(v int) {
	at := d.core.Atree
	seenWin := false
	for i := len(d.nri) - 1; i >= 0; i-- {
		e := d.nri[i]
		if e.res > 0 && !seenWin {
			seenWin = true
			if v > 0 {
				at.AdjOpPref(e.op, 1)
			}
			continue
		}
		if e.res < 0 && (seenWin || v < 0) {
			at.AdjOpPref(e.op, 0)
		}
	}
}

///////////////////////////////////////////////////////////////////////////
//                          Method selection                             //
///////////////////////////////////////////////////////////////////////////

// nextMethod matches operators (once per phase) and launches the best
// untried one. A DO runs ANTE-kind preparation advice to exhaustion before
// matching its own kind. When the supply is gone the kind decides the
// final verdict.
func (d *Directive) nextMethod() int {
	at := d.core.Atree

	// implicit preparation phase for action requests
	if d.Kind == DirDo && !d.anteDone {
		if !d.matched {
			d.core.Pmem.FindOpsKind(d, DirAnte, at.WorkingMemory, d.core.MinPref(), at.MinBlf())
			d.matched = true
		}
		if sel := d.pickMethod(); sel >= 0 {
			return d.launchMethod(sel)
		}
		// preparation exhausted: progress to the action itself
		d.anteDone = true
		d.matched = false
	}

	if !d.matched {
		d.core.Pmem.FindOps(d, at.WorkingMemory, d.core.MinPref(), at.MinBlf())
		d.matched = true
	}

	sel := d.pickMethod()
	if sel < 0 {
		// no more applicable operators
		switch d.Kind {
		case DirNote, DirAnte, DirNone:
			return d.report(1)
		case DirKeep:
			return 0 // idle guard: only termination can end it
		default: // DO, ACH, CHK
			return d.report(-2)
		}
	}
	return d.launchMethod(sel)
}

// launchMethod records and starts the method at the given match slot.
func (d *Directive) launchMethod(sel int) int {
	op := d.Op[sel]
	b := semnet.NewBindings(d.match[sel])
	d.nri = append(d.nri, nriEntry{op: op, b: semnet.NewBindings(b)})
	d.inst = len(d.nri) - 1
	d.core.Atree.ServiceWt(op.Pref())

	// trigger facts drawn from the halo become real: consolidate any
	// two-step inference path, then promote the facts into main memory
	// (rewriting b) so the method acts on durable nodes
	for i := 0; i < b.NumPairs(); i++ {
		if sub := b.GetSub(i); sub != nil && sub.Halo() {
			d.core.Amem.Consolidate(b)
			d.core.Atree.ReifyRules(b, 2)
			break
		}
	}

	d.Meth = op.Meth.Instantiate(d.core.Atree.WorkingMemory, b)
	if d.Meth == nil {
		return d.report(-2)
	}
	logging.Action("%s[%s] expands via operator %d (pref %4.2f)",
		d.KindTag(), d.KeyTag(), op.OpNum(), op.Pref())
	return d.Meth.Start(d.core, d.level()+1)
}

// level returns the nesting depth of the owning step.
func (d *Directive) level() int {
	if d.step == nil {
		return 0
	}
	return d.step.level
}

// pickMethod selects the best match slot not excluded by non-return
// inhibition: highest preference first, most specific trigger on ties,
// optionally weighted-random when the wildness knob is up.
func (d *Directive) pickMethod() int {
	var cand []int
	for i := MaxOps - 1; i >= d.MC; i-- {
		if d.Op[i] == nil {
			continue
		}
		if d.inNRI(d.Op[i], d.match[i]) {
			continue
		}
		cand = append(cand, i)
	}
	if len(cand) == 0 {
		return -1
	}
	if w := d.core.Wild(); w > 0.0 && len(cand) > 1 {
		return cand[d.wtdRand(cand, w)]
	}
	best := cand[0]
	for _, i := range cand[1:] {
		if d.Op[i].Pref() > d.Op[best].Pref() {
			best = i
		} else if d.Op[i].Pref() == d.Op[best].Pref() &&
			d.Op[i].Cond.NumItems() > d.Op[best].Cond.NumItems() {
			best = i // most specific trigger wins ties
		}
	}
	return best
}

// wtdRand picks an index into cand with probability proportional to
// pref^(1/wild), so high wildness flattens the distribution.
func (d *Directive) wtdRand(cand []int, wild float64) int {
	total := 0.0
	wts := make([]float64, len(cand))
	for i, c := range cand {
		wts[i] = math.Pow(d.Op[c].Pref(), 1.0/wild)
		total += wts[i]
	}
	pick := rand.Float64() * total
	for i, w := range wts {
		pick -= w
		if pick <= 0 {
			return i
		}
	}
	return len(cand) - 1
}

// inNRI checks whether an operator was already tried with equal bindings.
func (d *Directive) inNRI(op *Operator, b *semnet.Bindings) bool {
	for _, e := range d.nri {
		if e.op == op && op.SameEffect(e.b, b) && e.b.Same(b) {
			return true
		}
	}
	return false
}

///////////////////////////////////////////////////////////////////////////
//                             CHK control                               //
///////////////////////////////////////////////////////////////////////////

// seekMatch looks for a direct answer to a CHK in memory (halo included).
// Returns 1 when the key holds, 2 when its negation holds, 0 for unknown.
func (d *Directive) seekMatch() int {
	mate := d.patMate(true)
	if mate == nil {
		return 0
	}
	main := d.KeyMain()
	if main != nil && mate.Neg() != main.Neg() {
		return 2 // truth value flipped: take alt branch
	}
	return 1
}

// patConfirm tests whether the key description currently holds. With flip,
// polarity mismatches are tolerated during matching.
func (d *Directive) patConfirm(flip bool) int {
	mate := d.patMate(flip)
	if mate == nil {
		return 0
	}
	main := d.KeyMain()
	if main != nil && mate.Neg() != main.Neg() {
		return -1
	}
	return 1
}

// patViolated tells a KEEP directive that its guarded item became false.
func (d *Directive) patViolated() bool {
	return d.patConfirm(true) < 0
}

// patMate matches the key against memory, returning the node standing in
// for the key main (nil when no complete match).
func (d *Directive) patMate(flip bool) *semnet.Node {
	w := d.core.Atree.WorkingMemory
	w.MaxBand(3)

	d.sit.Cond.Copy(&d.Key)
	d.sit.Bth = -w.MinBlf()
	if flip {
		d.sit.ChkMode = 1
		defer func() { d.sit.ChkMode = 0 }()
	}

	b := semnet.NewBindings(nil)
	b.Expect = d.Key.NumItems()
	d.preBindScope(b)

	var hit *semnet.Bindings
	d.sit.Found = func(m []*semnet.Bindings, mc *int) int {
		hit = semnet.NewBindings(m[*mc-1])
		return 1
	}
	mc := 1
	if d.sit.MatchGraph([]*semnet.Bindings{b}, &mc, &d.sit.Cond, w, nil) <= 0 || hit == nil {
		return nil
	}
	return hit.LookUp(d.KeyMain())
}

// preBindScope seeds bindings with substitutions from earlier FINDs in the
// same chain so shared variables resolve consistently.
func (d *Directive) preBindScope(b *semnet.Bindings) {
	if d.step == nil {
		return
	}
	sc := d.step.Scope()
	for i := 0; i < d.Key.NumItems(); i++ {
		item := d.Key.Item(i)
		if s := sc.LookUp(item); s != nil {
			b.Bind(item, s)
		}
	}
}

///////////////////////////////////////////////////////////////////////////
//                             FIND control                              //
///////////////////////////////////////////////////////////////////////////

// seekInstance tries to bind the key description to some concrete item.
// Success publishes the guess into the chain scope and reports cont;
// exhaustion is kind-specific: BIND fabricates an item, EACH/ANY take the
// alt branch, FIND fails after the guess budget.
func (d *Directive) seekInstance() int {
	limited := d.Kind == DirFind || d.Kind == DirBind
	if !limited || d.cand0 < MaxGuess {
		if cand := d.satCriteria(); cand != nil {
			return d.adoptGuess(cand)
		}
	}

	// candidate supply exhausted
	switch d.Kind {
	case DirBind:
		if !d.assumed {
			return d.adoptGuess(d.assumeFound())
		}
		return d.report(-2)
	case DirEach:
		if d.cand0 > 0 {
			return d.report(2) // loop complete
		}
		return d.report(-2) // no first binding
	case DirAny:
		return d.report(2)
	default: // FIND
		return d.report(-2)
	}
}

// adoptGuess records a candidate, scopes it, and reports success.
func (d *Directive) adoptGuess(cand *semnet.Node) int {
	if cand == nil {
		return d.report(-2)
	}
	d.guess = append(d.guess, cand)
	d.cand0++
	d.hyp = cand
	if d.step != nil {
		if main := d.KeyMain(); main != nil {
			d.step.Scope().Rebind(main, cand)
		}
	}
	logging.ActionDebug("%s[%s] guess %d = %s", d.KindTag(), d.KeyTag(), d.cand0, cand.Nick())
	return d.report(1)
}

// satCriteria finds the best untried memory node satisfying the key
// description: complete match required, most recently changed wins.
func (d *Directive) satCriteria() *semnet.Node {
	w := d.core.Atree.WorkingMemory
	main := d.KeyMain()
	if main == nil {
		return nil
	}
	w.MaxBand(0) // guesses come from conscious memory

	d.sit.Cond.Copy(&d.Key)
	d.sit.Bth = -w.MinBlf()
	d.sit.RefMode = 1
	defer func() { d.sit.RefMode = 0 }()
	matched := false
	d.sit.Found = func(m []*semnet.Bindings, mc *int) int {
		matched = true
		return 1
	}

	var best *semnet.Node
	for cand := w.Next(nil, -1); cand != nil; cand = w.Next(cand, -1) {
		if !w.VisMem(cand, 0) || cand.Hyp() || d.tried(cand) {
			continue
		}
		if cand == main || d.Key.InDesc(cand) {
			continue
		}
		b := semnet.NewBindings(nil)
		b.Expect = d.Key.NumItems()
		if d.step != nil {
			// the key main's scoped value is this directive's own
			// earlier guess, so it is not pre-bound
			sc := d.step.Scope()
			for i := 0; i < d.Key.NumItems(); i++ {
				if item := d.Key.Item(i); item != main {
					if s := sc.LookUp(item); s != nil {
						b.Bind(item, s)
					}
				}
			}
		}
		matched = false
		mc := 1
		d.sit.TryBinding(main, cand, []*semnet.Bindings{b}, &mc, &d.sit.Cond, w, nil)
		if matched {
			if best == nil || cand.Generation() > best.Generation() {
				best = cand
			}
		}
	}
	return best
}

// tried checks the guess history.
func (d *Directive) tried(n *semnet.Node) bool {
	for _, g := range d.guess {
		if g == n {
			return true
		}
	}
	return false
}

// assumeFound fabricates a new item satisfying the description (BIND only).
func (d *Directive) assumeFound() *semnet.Node {
	w := d.core.Atree.WorkingMemory
	main := d.KeyMain()
	if main == nil {
		return nil
	}
	d.assumed = true

	item := w.MakeNode(main.Kind(), main.Lex(), main.Neg(), -1.0, main.Done())
	item.Reveal(1)
	b := semnet.NewBindings(nil)
	b.Bind(main, item)
	w.Assert(&d.Key, b, 1.0, 0, nil)
	logging.Action("BIND[%s] assumes new item %s", d.KeyTag(), item.Nick())
	return item
}

///////////////////////////////////////////////////////////////////////////
//                           FCN / ADD control                           //
///////////////////////////////////////////////////////////////////////////

// doFcn dispatches to a registered grounding kernel, keyed by the key main
// lexical term. A missing binding is a resource error: the directive fails
// and an explanatory NOTE is posted.
func (d *Directive) doFcn() int {
	name := d.KeyTag()
	fn := d.core.Ground(name)
	if fn == nil {
		d.core.Atree.ExplainFail(d, "unknown function")
		return d.report(-2)
	}
	res := fn(d)
	if res == 0 {
		return 0 // still working, adapter will finish it
	}
	return d.report(res)
}

// doAdd accepts a carried rule or operator into the long-lived memories.
func (d *Directive) doAdd() int {
	if d.NewRule != nil {
		if d.core.Amem.AddRule(d.NewRule, 1) <= 0 {
			return d.report(-2)
		}
		d.NewRule = nil
		return d.report(1)
	}
	if d.NewOper != nil {
		if d.core.Pmem.AddOperator(d.NewOper) <= 0 {
			return d.report(-2)
		}
		d.NewOper = nil
		return d.report(1)
	}
	return d.report(-2)
}

// FindActive checks whether this directive is running an action matching
// the description, stopping it when halt is set. Returns 1 when found.
func (d *Directive) FindActive(desc *semnet.Graphlet, halt bool) int {
	if d.verdict != 0 {
		return 0
	}
	act := desc.MainAct()
	if mine := d.KeyAct(); act != nil && mine != nil && mine.LexSame(act) {
		if halt {
			d.Stop()
		}
		return 1
	}
	if d.Meth != nil {
		return d.Meth.FindActive(desc, halt)
	}
	return 0
}

