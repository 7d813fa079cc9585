package core

import (
	"math"

	"noesis/internal/semnet"
)

// Default expected completion time for NOTE operators (seconds).
const (
	defOpTime = 5.0
	defOpDev  = 2.0
)

// Operator is typed procedural advice: when a directive of the matching
// kind has a key satisfying the trigger (and no caveat holds), the method
// chain is offered at the given preference.
type Operator struct {
	*semnet.Situation

	Kind DirKind
	Meth *Chain

	gist  string
	next  *Operator
	pref0 float64
	pref  float64
	tavg  float64
	tstd  float64
	id    int
	lvl   int

	// matching state (valid while FindMatches runs)
	first int
	tval  int
	d     *Directive

	// source of info
	Prov string
	PNum int
}

// NewOperator creates an empty operator of the given kind with pref 1.0.
func NewOperator(kind DirKind) *Operator {
	return &Operator{
		Situation: semnet.NewSituation(),
		Kind:      kind,
		pref:      1.0,
		pref0:     1.0,
		tavg:      defOpTime,
		tstd:      defOpDev,
	}
}

// OpNum returns the operator id.
func (op *Operator) OpNum() int { return op.id }

// Pref returns the current preference.
func (op *Operator) Pref() float64 { return op.pref }

// DefaultPref returns the loaded preference.
func (op *Operator) DefaultPref() float64 { return op.pref0 }

// Level returns the provenance level.
func (op *Operator) Level() int { return op.lvl }

// SetLevel records the provenance level.
func (op *Operator) SetLevel(lvl int) { op.lvl = lvl }

// Gist returns the source utterance.
func (op *Operator) Gist() string { return op.gist }

// SetGist remembers the utterance that generated this operator.
func (op *Operator) SetGist(sent string) { op.gist = sent }

// SetPref changes preference, quantized to two decimals and clamped to
// [0.1, 1.2]. Returns the signed change.
func (op *Operator) SetPref(v float64) float64 {
	v = math.Round(100.0*v) / 100.0
	if v < 0.1 {
		v = 0.1
	}
	if v > 1.2 {
		v = 1.2
	}
	chg := v - op.pref
	op.pref = v
	return chg
}

// AdjPref nudges preference by a signed amount.
func (op *Operator) AdjPref(dv float64) float64 { return op.SetPref(op.pref + dv) }

// Time returns the expected duration (seconds).
func (op *Operator) Time() float64 { return op.tavg }

// Dev returns the duration spread.
func (op *Operator) Dev() float64 { return op.tstd }

// Budget returns the time allowance before a NOTE focus is abandoned.
func (op *Operator) Budget() float64 { return op.tavg + op.tstd }

// SetTime sets the duration estimate, quantized to tenths.
func (op *Operator) SetTime(avg, dev float64) {
	op.tavg = math.Round(10.0*avg) / 10.0
	op.tstd = math.Round(10.0*dev) / 10.0
}

// AdjTime folds an observed completion time into the running estimate
// (EMA with mix 0.1), allowing lengthening on success and shortening when
// stopped early.
func (op *Operator) AdjTime(secs float64) {
	const tmix = 0.1
	v0 := op.tstd * op.tstd
	dt := secs - op.tavg
	tvar := (1.0 - tmix) * (v0 + tmix*dt*dt)
	op.SetTime(op.tavg+tmix*dt, math.Sqrt(tvar))
}

///////////////////////////////////////////////////////////////////////////
//                            Main functions                             //
///////////////////////////////////////////////////////////////////////////

// FindMatches looks for ways this operator's trigger fits the directive,
// recording each distinct match in the directive's match array. The fact
// sources vary by the operator's own kind: NOTE scans all of memory with a
// relevance check, CHK may anchor anywhere in the key (polarity-blind),
// ANTE anchors on the key act and also walks its superclass chain (so a DO
// directive running its implicit preparation phase engages ANTE advice),
// and everything else must anchor on the key main node.
// Returns matches recorded, negative to stop.
func (op *Operator) FindMatches(dir *Directive, f *semnet.WorkingMemory, mth float64) int {
	focus := op.Cond.Main()
	if focus == nil {
		return 0
	}
	nc := op.Cond.NumItems()
	k := op.Kind
	if k == DirBind || k == DirEach || k == DirAny {
		k = DirFind
	}

	// main node of NOTE not special, so pick most constrained instead
	if k == DirNote && f.NumBins() > 1 {
		best := 0
		for i := 0; i < nc; i++ {
			item := op.Cond.Item(i)
			occ := f.SameBin(item, nil)
			if occ <= 0 {
				return 0 // pattern unmatchable
			}
			if best <= 0 || occ < best {
				focus = item
				best = occ
			}
		}
	}

	// set control parameters
	bin := -1
	if focus.Lex() != "" {
		bin = focus.Code()
	}
	op.tval = dir.Own
	if k == DirChk || k == DirFind {
		op.Bth = -mth
	} else {
		op.Bth = mth
	}
	op.d = dir
	op.Found = op.matchFound
	op.AllowHidden = true // directive keys are unposted hypotheses
	defer func() {
		op.d = nil
		op.AllowHidden = false
	}()

	cnt := 0
	switch {
	case k == DirChk:
		// CHK triggers can start matching anywhere in the key (ignore neg)
		op.ChkMode = 1
		defer func() { op.ChkMode = 0 }()
		for mate := dir.Key.NextNode(nil, -1); mate != nil; mate = dir.Key.NextNode(mate, -1) {
			found := op.tryMate(focus, mate, dir, f)
			if found < 0 {
				return found
			}
			cnt += found
		}
	case k == DirNote:
		// NOTE triggers match anything in memory (including halo);
		// relevance to the new assertion is checked in matchFound
		for mate := f.NextNode(nil, bin); mate != nil; mate = f.NextNode(mate, bin) {
			found := op.tryMate(focus, mate, dir, f)
			if found < 0 {
				return found
			}
			cnt += found
		}
	case k == DirAnte:
		// preparation advice anchors on the key act itself, then on
		// every superclass of the verb (snarf -> grab)
		act := dir.KeyAct()
		if act == nil {
			return 0
		}
		found := op.tryMate(focus, act, dir, f)
		if found < 0 {
			return found
		}
		cnt += found
		w := 0
		for {
			mate := act.Fact("fcn", w)
			if mate == nil {
				break
			}
			w++
			found := op.tryMate(focus, mate, dir, f)
			if found < 0 {
				return found
			}
			cnt += found
		}
	default: // most directives (DO, FIND, ACH, KEEP, ...)
		cnt = op.tryMate(focus, dir.KeyMain(), dir, f)
	}
	return cnt
}

// tryMate tests the main pairing then runs the core matcher: one-step for
// NOTE (whole memory), two-step for others (key first, then memory).
func (op *Operator) tryMate(focus *semnet.Node, mate *semnet.Node, dir *Directive, f *semnet.WorkingMemory) int {
	if mate == nil {
		return -1 // stops all matching for this operator
	}
	if !mate.Visible() && op.Kind == DirNote {
		return 0 // NOTE triggers react only to posted facts
	}

	// test main node compatibility (okay with blank nodes)
	if op.Kind == DirNote && !sureOrHyp(mate, op.Bth) {
		return 0
	}
	if mate.Neg() != focus.Neg() || mate.Done() != focus.Done() ||
		(focus.Lex() != "" && !focus.LexMatch(mate.Lex())) {
		return 0
	}
	if mate.Arity(1) != focus.Arity(1) {
		return 0
	}

	// force binding of initial items and set trigger size
	n := op.Cond.NumItems()
	op.first = dir.MC
	m := dir.matchSlice()
	for i := 0; i < op.first; i++ {
		m[i].Clear()
		m[i].Bind(focus, mate)
		m[i].Expect = n
	}

	// run the core matcher: one source for NOTE, two otherwise
	if op.Kind == DirNote {
		return op.MatchGraph(m, &dir.MC, &op.Cond, f, nil)
	}
	return op.MatchGraph(m, &dir.MC, &op.Cond, &dir.Key, f)
}

// sureOrHyp applies the signed belief threshold rule to a candidate.
func sureOrHyp(n *semnet.Node, bth float64) bool {
	if bth > 0.0 {
		return n.Belief() >= bth
	}
	return n.Belief() >= -bth || n.Belief() == 0.0
}

// matchFound vets one complete trigger match: the NOTE relevance test and
// non-duplicate effect, then shifts to the next binding slot.
func (op *Operator) matchFound(m []*semnet.Bindings, mc *int) int {
	if *mc <= 0 {
		return 0 // typically checking an unless clause
	}
	b := m[*mc-1]
	nb := b.NumPairs()

	// NOTE triggers must touch at least one node posted by the new focus
	if op.tval > 0 {
		hit := false
		for i := 0; i < nb; i++ {
			k := b.GetKey(i)
			n := b.GetSub(i)
			if !k.ObjNode() && n != nil && n.Top == op.tval {
				hit = true
				break
			}
		}
		if !hit {
			return 0
		}
	}

	// proposed action must not duplicate an earlier match of this operator
	op.d.anyOps = true
	for i := *mc; i < op.first; i++ {
		if op.SameEffect(b, m[i]) {
			return 0
		}
	}

	// accept bindings and shift to next set
	if *mc > 1 {
		*mc--
	}
	return 1
}

// SameEffect tells whether two binding sets would produce the same action:
// every key the method chain mentions maps to the same substitution.
func (op *Operator) SameEffect(b1, b2 *semnet.Bindings) bool {
	if op.Meth == nil {
		return true
	}
	for i := 0; i < b1.NumPairs(); i++ {
		k := b1.GetKey(i)
		if op.Meth.Involves(k) && b2.LookUp(k) != b1.GetSub(i) {
			return false
		}
	}
	return true
}
