package semnet

// MaxUnless caps the number of caveat graphlets on one situation.
const MaxUnless = 5

// MatchFunc is invoked for each complete, caveat-free set of bindings.
// m is the array of candidate binding sets, mc the index one past the
// current working set; implementations normally record m[*mc-1] and
// decrement *mc to preserve it.
type MatchFunc func(m []*Bindings, mc *int) int

// Situation is a semantic network description to be matched: a condition
// graphlet that facts MUST satisfy plus caveat graphlets that MUST NOT be
// satisfiable once the condition binds. It encapsulates the subgraph
// isomorphism matcher and owns a private pool for its pattern nodes.
// Only full matches are enumerated; partials get combinatorial.
type Situation struct {
	*Pool

	Cond   Graphlet
	Unless [MaxUnless]Graphlet
	NU     int

	// RefMode restricts "you"/"me" to the conversation participants;
	// ChkMode ignores polarity so a truth value can flip.
	RefMode int
	ChkMode int

	// AllowHidden lets unposted nodes serve as mates. Operator triggers
	// need this to bind directive key nodes; direct confirmation must
	// leave it off so a hypothesis cannot satisfy itself.
	AllowHidden bool

	// Bth is the belief threshold: positive requires belief >= Bth,
	// negative accepts belief >= -Bth or exactly 0 (hypothetical).
	Bth float64

	// Found is called for every surviving complete match (required).
	Found MatchFunc
}

// NewSituation creates a situation with an empty pattern pool.
func NewSituation() *Situation {
	s := &Situation{Pool: NewPool(), Bth: 0.5}
	s.Found = func(m []*Bindings, mc *int) int { return 1 }
	return s
}

// InitPattern copies a description into the condition.
func (s *Situation) InitPattern(desc *Graphlet) {
	s.Cond.Copy(desc)
	s.NU = 0
}

// Pattern exposes the condition graphlet.
func (s *Situation) Pattern() *Graphlet { return &s.Cond }

// NumPat returns the condition size.
func (s *Situation) NumPat() int { return s.Cond.NumItems() }

// InPat reports condition membership.
func (s *Situation) InPat(n *Node) bool { return s.Cond.InDesc(n) }

// BuildCond directs node construction into the condition graphlet.
func (s *Situation) BuildCond() { s.BuildIn(&s.Cond) }

// BuildUnless opens a fresh caveat graphlet for construction.
func (s *Situation) BuildUnless() int {
	if s.NU >= MaxUnless {
		return 0
	}
	s.BuildIn(&s.Unless[s.NU])
	s.NU++
	return s.NU
}

// CmdHead forces a particular node to be the condition main.
func (s *Situation) CmdHead(cmd *Node) { s.Cond.SetMain(cmd) }

// PropHead promotes a predicate to condition main.
func (s *Situation) PropHead() { s.Cond.MainProp() }

// UnlessHead promotes a predicate to main in the latest caveat.
func (s *Situation) UnlessHead() {
	if s.NU > 0 {
		s.Unless[s.NU-1].MainProp()
	}
}

///////////////////////////////////////////////////////////////////////////
//                            Main functions                             //
///////////////////////////////////////////////////////////////////////////

// MatchGraph matches a pattern fragment against assertions in memory.
// m is an array of binding sets, one per potential match, with *mc the
// count of unfilled sets; *mc == 0 marks a caveat probe where the first
// complete match wins. f is the primary fact source; f2 (optional) takes
// over for pattern nodes the primary source cannot supply, which is how an
// operator trigger first matches the directive key and then the remainder
// against working memory. Returns the number of complete matches found.
func (s *Situation) MatchGraph(m []*Bindings, mc *int, pat *Graphlet, f NodeList, f2 NodeList) int {
	b := m[max0(*mc-1)]

	// degenerate empty pattern trivially matches once
	if pat.NumItems() == 0 && b.Empty() && *mc > 0 {
		return s.Found(m, mc)
	}

	// see if current instance fully matched
	if b.Complete() {
		// if testing caveat, report blockage
		if *mc <= 0 {
			return 1
		}

		// otherwise check that none of the caveats are matched
		// always use wmem (f2) for unless parts of operators
		for i := 0; i < s.NU; i++ {
			m2 := NewBindings(b)
			m2.Expect += s.Unless[i].NumItems()
			mc2 := 0
			cf := f
			if f2 != nil {
				cf = f2
			}
			if s.MatchGraph([]*Bindings{m2}, &mc2, &s.Unless[i], cf, nil) > 0 {
				return 0
			}
		}

		// current set of bindings is suitable
		return s.Found(m, mc)
	}

	// otherwise pick some new pattern node and try to match it to memory
	// negative means no candidate, 0 means no matches for the picked one
	cnt := s.tryProps(m, mc, pat, f, f2)
	if cnt < 0 {
		cnt = s.tryArgs(m, mc, pat, f, f2)
	}
	if cnt < 0 {
		if f.NumBins() > 1 {
			cnt = s.tryHash(m, mc, pat, f, f2)
		} else {
			cnt = s.tryBare(m, mc, pat, f, f2)
		}
	}
	if cnt > 0 {
		return cnt
	}

	// for operator, if trigger fully matched then try rest with wmem
	if f2 != nil {
		return s.MatchGraph(m, mc, pat, f2, nil)
	}
	return 0 // pattern cannot be fully matched
}

// tryProps matches an unbound node which is a property of something already
// bound. Returns -1 if no proper focus, else matches that caused invocations.
func (s *Situation) tryProps(m []*Bindings, mc *int, pat *Graphlet, f NodeList, f2 NodeList) int {
	b := m[max0(*mc-1)]
	var anchor, focus *Node
	pnum := 0

	// get a bound node from the pattern whose property is still unbound
	n := b.NumPairs()
	for i := 0; i < n && focus == nil; i++ {
		anchor = b.GetKey(i)
		np := anchor.NumProps()
		for pnum = 0; pnum < np; pnum++ {
			cand := anchor.Prop(pnum)
			if !b.InKeys(cand) && pat.InDesc(cand) {
				focus = cand
				break
			}
		}
	}
	if focus == nil {
		return -1
	}
	role := anchor.Role(pnum)
	val := b.LookUp(anchor)

	// consider properties of anchor's binding as candidates (recent first)
	cnt := 0
	for i := val.NumProps() - 1; i >= 0; i-- {
		if val.RoleMatch(i, role) {
			n := s.tryBinding(focus, val.Prop(i), m, mc, pat, f, f2)
			if n < 0 {
				return 1
			}
			cnt += n
		}
	}
	return cnt
}

// tryArgs matches an unbound node which is an argument of something already
// bound. Returns -1 if no proper focus.
func (s *Situation) tryArgs(m []*Bindings, mc *int, pat *Graphlet, f NodeList, f2 NodeList) int {
	b := m[max0(*mc-1)]
	var anchor, focus *Node
	anum := 0

	n := b.NumPairs()
	for i := 0; i < n && focus == nil; i++ {
		anchor = b.GetKey(i)
		na := anchor.NumArgs()
		for anum = 0; anum < na; anum++ {
			cand := anchor.Arg(anum)
			if !b.InKeys(cand) && pat.InDesc(cand) {
				focus = cand
				break
			}
		}
	}
	if focus == nil {
		return -1
	}
	slot := anchor.Slot(anum)
	fact := b.LookUp(anchor)

	cnt := 0
	for i := 0; i < fact.NumArgs(); i++ {
		if fact.Slot(i) == slot {
			n := s.tryBinding(focus, fact.Arg(i), m, mc, pat, f, f2)
			if n < 0 {
				return 1
			}
			cnt += n
		}
	}
	return cnt
}

// tryBare matches an unbound pattern node against every fact in the source.
// Scan preference: literal argument, literal property, lexical term, any.
func (s *Situation) tryBare(m []*Bindings, mc *int, pat *Graphlet, f NodeList, f2 NodeList) int {
	b := m[max0(*mc-1)]
	var focus *Node

	n := pat.NumItems()
	for scan := 0; scan <= 3 && focus == nil; scan++ {
		for i := 0; i < n; i++ {
			cand := pat.Item(i)
			if b.InKeys(cand) {
				continue
			}
			if (scan <= 0 && pat.ArgOut(cand)) || (scan == 1 && pat.PropOut(cand)) ||
				(scan == 2 && b.LexSub(cand) != "") || scan >= 3 {
				focus = cand
				break
			}
		}
	}
	if focus == nil {
		return -1
	}

	cnt := 0
	for mate := f.NextNode(nil, -1); mate != nil; mate = f.NextNode(mate, -1) {
		n := s.tryBinding(focus, mate, m, mc, pat, f, f2)
		if n < 0 {
			return 1
		}
		cnt += n
	}
	return cnt
}

// tryHash picks the pattern node with the fewest possible matches and tries
// only candidates from its hash bin.
func (s *Situation) tryHash(m []*Bindings, mc *int, pat *Graphlet, f NodeList, f2 NodeList) int {
	b := m[max0(*mc-1)]
	var focus *Node
	best := 0

	n := pat.NumItems()
	for i := 0; i < n; i++ {
		item := pat.Item(i)
		if b.InKeys(item) {
			continue
		}
		occ := f.SameBin(item, b)
		if occ <= 0 {
			return -1 // pattern unmatchable
		}
		if focus == nil || occ < best {
			focus = item
			best = occ
		}
	}
	if focus == nil {
		return -1
	}

	bin := -1
	if b.LexSub(focus) != "" {
		bin = focus.Code()
		if focus.LexVar() {
			bin = b.LexBin(focus)
		}
	}
	cnt := 0
	for mate := f.NextNode(nil, bin); mate != nil; mate = f.NextNode(mate, bin) {
		n := s.tryBinding(focus, mate, m, mc, pat, f, f2)
		if n < 0 {
			return 1
		}
		cnt += n
	}
	return cnt
}

// TryBinding binds focus to mate then continues matching. Exposed so FIND
// guessing can probe a particular instantiation.
func (s *Situation) TryBinding(focus, mate *Node, m []*Bindings, mc *int, pat *Graphlet, f NodeList, f2 NodeList) int {
	return s.tryBinding(focus, mate, m, mc, pat, f, f2)
}

// tryBinding extends all remaining binding sets with focus = mate, recurses,
// then backtracks. Returns matches found, -1 if a caveat probe succeeded.
func (s *Situation) tryBinding(focus, mate *Node, m []*Bindings, mc *int, pat *Graphlet, f NodeList, f2 NodeList) int {
	if mate == nil || (!mate.Visible() && !s.AllowHidden) {
		return 0
	}
	n := max0(*mc - 1)

	// make sure superficial pairing is okay
	if f2 != nil {
		// matching operator condition against directive key
		if !f.InList(mate) {
			return 0
		}
		if s.consistent(mate, focus, pat, m[n], -fabs(s.Bth)) <= 0 {
			return 0
		}
	} else if f.Prohibited(mate) {
		return 0
	} else if s.consistent(mate, focus, pat, m[n], s.Bth) <= 0 {
		return 0
	}

	// add pair to all remaining binding sets (all stay identical)
	nb := 0
	for i := 0; i <= n; i++ {
		nb = m[i].Bind(focus, mate)
	}
	if nb < 0 {
		return 0
	}

	// try to complete pattern (stop after first match for caveat)
	cnt := s.MatchGraph(m, mc, pat, f, f2)
	if cnt > 0 && *mc <= 0 {
		return -1
	}

	// remove pair for backtrack (mc may have changed on success);
	// nb-1 since rule assertion adds result bindings past this point
	n = max0(*mc - 1)
	for i := 0; i <= n; i++ {
		m[i].TrimTo(nb - 1)
	}
	return cnt
}

// consistent checks whether mate can stand in for focus given the current
// bindings. Normally accepts only belief >= th; negative th accepts
// belief >= -th or exactly 0 (hypothetical). Returns 1 when okay, zero or
// negative indicating where the check failed.
func (s *Situation) consistent(mate, focus *Node, pat *Graphlet, b *Bindings, th float64) int {
	// prevent use of same term for different "variables"
	if b.InSubs(mate) {
		return -9
	}

	// predicate sense, belief, arity, and event state must line up
	if !focus.ObjNode() {
		if s.ChkMode <= 0 && mate.Neg() != focus.Neg() {
			return -8
		}
		if th > 0.0 {
			if !mate.Sure(th) {
				return -7
			}
		} else if mate.Belief() < -th && mate.Belief() != 0.0 {
			return -7
		}
		if focus.Arity(1) != mate.Arity(0) { // "father" matches "father of"
			return -6
		}
		if mate.Done() != focus.Done() {
			return -5
		}
	}

	// actual predicate terms must be the same
	if !b.LexAgree(focus, mate) {
		return -4
	}

	// finding referents inside a rule or operator: participants special
	// ("you" can match "someone" but "someone" cannot match "you")
	if s.RefMode > 0 {
		if mate.LexMatch("you") && !focus.LexMatch("you") {
			return -3
		}
		if mate.LexMatch("me") && !focus.LexMatch("me") {
			return -2
		}
	}

	// mate must realize all already-closed argument arrows
	for i := 0; i < focus.NumArgs(); i++ {
		arg := focus.Arg(i)
		val := b.LookUp(arg)
		if val == nil && !pat.InList(arg) {
			val = arg
		}
		if val != nil && !mate.HasVal(focus.Slot(i), val) {
			return -1
		}
	}

	// mate must realize all already-closed property arrows
	for i := 0; i < focus.NumProps(); i++ {
		if fact := b.LookUp(focus.Prop(i)); fact != nil {
			if !mate.HasFact(fact, focus.Role(i)) {
				return 0
			}
		}
	}
	return 1
}

// FindRef finds an equivalent node in memory for a locally built pattern.
// Build the condition first (BuildCond + construction calls), then pass the
// node of interest. Returns the memory node bound to focus, nil if no match.
func (s *Situation) FindRef(focus *Node, wmem NodeList) *Node {
	b := NewBindings(nil)
	b.Expect = s.Cond.NumItems()
	mc := 1
	var hit *Bindings
	old := s.Found
	s.Found = func(m []*Bindings, mc *int) int {
		hit = NewBindings(m[max0(*mc-1)])
		return 1
	}
	defer func() { s.Found = old }()
	if s.MatchGraph([]*Bindings{b}, &mc, &s.Cond, wmem, nil) > 0 && hit != nil {
		return hit.LookUp(focus)
	}
	return nil
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
