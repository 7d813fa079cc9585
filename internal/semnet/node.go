// Package semnet implements the semantic network substrate: typed nodes with
// directed labeled arguments and reverse-indexed properties, insertion-ordered
// pools with lex-hash binning, graphlets, bindings, the subgraph matcher, and
// the layered working memory (main pool + inference halo).
package semnet

import (
	"fmt"
	"strings"
)

// Capacity limits for a single node. The scheduling and matching invariants
// depend on these staying fixed, so overflow is an error, not a grow.
const (
	MaxArgs  = 10
	MaxProps = 100
)

// RuleTag identifies the rule that produced a halo node. The concrete type
// lives in the reasoning layer; consumers type-assert when they need more.
type RuleTag interface {
	RuleNum() int
}

type argRef struct {
	slot string
	val  *Node
}

type propRef struct {
	node *Node
	anum int
}

// Node is one element of a semantic network: either an object or a
// predicate/event. Instances are only created and deleted by a Pool.
// A node can be tethered to a cognate in another pool (moor/buoy).
//
//	evt:  0 = state, 1 = completed event
//	neg:  0 = positive assertion, 1 = negated
//	blf:  pos = valid belief, 0 = hypothetical, neg = suppressed
//	vis:  0 = hidden, 1 = eligible for matching
//	gen:  cycle when node was last changed
//	ref:  conversation recency for pronouns
//	top:  action focus (if any) node is associated with
//	keep: preserve during garbage collection
type Node struct {
	kind  string
	id    int
	lex   string
	quote string
	neg   int
	evt   int
	blf   float64
	blf0  float64

	args  []argRef
	props []propRef
	na0   int // distinct slot labels (suffix digits collapse)
	wrt   int // count of "wrt" links, tracked separately

	moor *Node
	buoy *Node
	home *Pool

	next  *Node // pool order chain
	bnext *Node // hash bin chain
	hash  int
	gen   int
	ref   int
	vis   int
	keep  int

	// status and grammatical tags
	Top  int
	Mark int
	LTM  int
	Tags uint32

	// source of halo inference
	HRule RuleTag
	HBind *Bindings
}

// grammatical tag bits (subset used by the core)
const (
	TagNoun uint32 = 1 << iota
	TagVerb
	TagAdj
)

// Kind returns the short type tag (copied from moor when tethered).
func (n *Node) Kind() string {
	if n.moor != nil {
		return n.moor.kind
	}
	return n.kind
}

// Inst returns the node id (negative for halo nodes).
func (n *Node) Inst() int { return n.id }

// Code returns the lex hash bin for this node.
func (n *Node) Code() int { return n.hash }

// Generation returns the cycle of last change.
func (n *Node) Generation() int { return n.gen }

// Nick returns the "kind-id" nickname used in serialized graphs.
func (n *Node) Nick() string {
	sep := "-"
	if n.id < 0 {
		sep = "+"
	}
	return fmt.Sprintf("%s%s%d", n.Kind(), sep, abs(n.id))
}

// Lex returns the lexical term or "" when none is attached.
func (n *Node) Lex() string {
	if n.moor != nil {
		return n.moor.lex
	}
	return n.lex
}

// LexVar reports whether the lex is a late-binding variable ("***-...").
func (n *Node) LexVar() bool { return strings.HasPrefix(n.Lex(), "*") }

// Halo reports whether this node lives in a halo pool.
func (n *Node) Halo() bool { return n.id < 0 }

// Visible reports whether the node is eligible for matching.
func (n *Node) Visible() bool { return n.vis > 0 }

// LastConvo returns the conversational recency stamp.
func (n *Node) LastConvo() int { return n.ref }

// Literal returns an attached quoted string ("" when none).
func (n *Node) Literal() string {
	if n.moor != nil {
		return n.moor.quote
	}
	return n.quote
}

// String reports whether the node carries a literal string payload.
func (n *Node) String() bool { return n.Literal() != "" }

// Neg returns the predicate polarity (copied from moor when tethered).
func (n *Node) Neg() int {
	if n.moor != nil {
		return n.moor.neg
	}
	return n.neg
}

// Done returns state (0) vs completed event (1).
func (n *Node) Done() int {
	if n.moor != nil {
		return n.moor.evt
	}
	return n.evt
}

// Default returns the default (pending) belief.
func (n *Node) Default() float64 {
	if n.moor != nil {
		return n.moor.blf0
	}
	return n.blf0
}

// Belief returns the current belief.
func (n *Node) Belief() float64 { return n.blf }

// DefHyp reports whether the default belief marks a hypothetical.
func (n *Node) DefHyp() bool { return n.Default() <= 0.0 }

// Hyp reports whether the node is currently hypothetical or suppressed.
func (n *Node) Hyp() bool { return n.blf <= 0.0 }

// Blf returns current belief when bth > 0, else the default belief.
func (n *Node) Blf(bth float64) float64 {
	if bth > 0.0 {
		return n.blf
	}
	return n.blf0
}

// Sure applies the belief threshold rule: for positive bth compare current
// belief, for negative bth compare the default against -bth.
func (n *Node) Sure(bth float64) bool {
	if bth > 0.0 {
		return n.blf >= bth
	}
	return n.blf0 >= -bth
}

// NounTag / VerbTag consult the grammatical tag bits.
func (n *Node) NounTag() bool { return n.Tags&TagNoun != 0 }

// VerbTag reports the verb tag bit.
func (n *Node) VerbTag() bool { return n.Tags&TagVerb != 0 }

// Reveal makes the node eligible (or ineligible) for matching.
func (n *Node) Reveal(doit int) { n.vis = doit }

// TopMax raises the focus association marker.
func (n *Node) TopMax(tval int) {
	if tval > n.Top {
		n.Top = tval
	}
}

// GenMax advances the change generation stamp.
func (n *Node) GenMax(ver int) {
	if ver > 0 && ver > n.gen {
		n.gen = ver
	}
}

// SetConvo stamps conversational recency.
func (n *Node) SetConvo(val int) { n.ref = val }

// XferConvo moves conversational recency from another node to this one.
func (n *Node) XferConvo(src *Node) {
	if src == nil || src == n {
		return
	}
	n.ref = src.ref
	src.ref = 0
}

// SetString attaches a literal string payload.
func (n *Node) SetString(txt string) { n.quote = txt }

// SetNeg sets predicate polarity.
func (n *Node) SetNeg(val int) { n.neg = val }

// SetDone sets state vs completed event.
func (n *Node) SetDone(val int) { n.evt = val }

// SetBelief sets both current and default belief.
func (n *Node) SetBelief(val float64) { n.blf = val; n.blf0 = val }

// SetDefault sets only the default (pending) belief.
func (n *Node) SetDefault(val float64) { n.blf0 = val }

// TmpBelief sets only the current belief.
func (n *Node) TmpBelief(val float64) { n.blf = val }

// Suppress forces the belief negative so the fact no longer matches.
// Routes through the moor so a tethered pair stays consistent.
func (n *Node) Suppress() {
	n.blf = -fabs(n.blf)
	if n.moor != nil {
		n.moor.blf = -fabs(n.moor.blf)
	}
}

// Actual returns +1 when believed, -1 when hypothetical or suppressed.
func (n *Node) Actual() int {
	if n.blf > 0.0 {
		return 1
	}
	return -1
}

// Actualize copies the default belief into the current belief, stamping the
// generation. Returns 1 if the belief changed.
func (n *Node) Actualize(ver int) int {
	if n.blf == n.blf0 {
		return 0
	}
	n.blf = n.blf0
	n.GenMax(ver)
	return 1
}

///////////////////////////////////////////////////////////////////////////
//                           Argument functions                          //
///////////////////////////////////////////////////////////////////////////

// NumArgs returns the argument count (via moor when tethered).
func (n *Node) NumArgs() int {
	if n.moor != nil {
		return len(n.moor.args)
	}
	return len(n.args)
}

// ArgsFull reports whether another argument would overflow.
func (n *Node) ArgsFull() bool { return n.NumArgs() >= MaxArgs }

// ObjNode reports whether this is a plain object (no arguments).
func (n *Node) ObjNode() bool { return n.NumArgs() <= 0 }

// Arity counts uniquely named slots; "ref"/"ref2" collapse to one and "wrt"
// is counted only when all > 0.
func (n *Node) Arity(all int) int {
	cnt, xtra := n.na0, n.wrt
	if n.moor != nil {
		cnt, xtra = n.moor.na0, n.moor.wrt
	}
	if all > 0 && xtra > 0 {
		cnt++
	}
	return cnt
}

// HypAny checks this node and all arguments (recursively) for hypotheticals.
func (n *Node) HypAny() bool {
	if n.Hyp() {
		return true
	}
	for i := 0; i < n.NumArgs(); i++ {
		if n.Arg(i).HypAny() {
			return true
		}
	}
	return false
}

// Arg returns the i'th argument value (moor preferred).
func (n *Node) Arg(i int) *Node {
	if i < 0 || i >= n.NumArgs() {
		return nil
	}
	if n.moor != nil {
		return n.moor.args[i].val
	}
	return n.args[i].val
}

// ArgSurf returns the i'th argument converted to its surface node.
func (n *Node) ArgSurf(i int) *Node {
	a := n.Arg(i)
	if a == nil {
		return nil
	}
	return a.Surf()
}

// Slot returns the link name of the i'th argument.
func (n *Node) Slot(i int) string {
	if i < 0 || i >= n.NumArgs() {
		return ""
	}
	if n.moor != nil {
		return n.moor.args[i].slot
	}
	return n.args[i].slot
}

// SlotMatch checks the i'th argument link name.
func (n *Node) SlotMatch(i int, link string) bool {
	return link != "" && n.Slot(i) == link
}

// NumVals counts fillers for the given slot.
func (n *Node) NumVals(slot string) int {
	cnt := 0
	for i := 0; i < n.NumArgs(); i++ {
		if n.Slot(i) == slot {
			cnt++
		}
	}
	return cnt
}

// Val returns the i'th filler of a slot (nil when out of range).
func (n *Node) Val(slot string, i int) *Node {
	cnt := i
	for j := 0; j < n.NumArgs(); j++ {
		if n.Slot(j) == slot {
			if cnt <= 0 {
				return n.Arg(j)
			}
			cnt--
		}
	}
	return nil
}

// remNum strips a trailing digit run so "ref2" compares equal to "ref".
func remNum(slot string) string {
	end := len(slot)
	for end > 0 && slot[end-1] >= '0' && slot[end-1] <= '9' {
		end--
	}
	return slot[:end]
}

// AddArg attaches another node as an argument with the given link name,
// maintaining arity counts and the reverse property index on val.
// Duplicate (slot, val) pairs are ignored. Errors when either side is full.
func (n *Node) AddArg(slot string, val *Node) error {
	if val == nil {
		return fmt.Errorf("nil argument for %s", n.Nick())
	}
	if n.HasVal(slot, val) {
		return nil // ignore duplicates
	}
	if len(n.args) >= MaxArgs {
		return fmt.Errorf("more than %d arguments on %s", MaxArgs, n.Nick())
	}
	if len(val.props) >= MaxProps {
		return fmt.Errorf("more than %d properties on %s", MaxProps, val.Nick())
	}

	// see if a new kind of link (boosts arity)
	if slot == "wrt" {
		n.wrt++
	} else {
		bare := remNum(slot)
		found := false
		for _, a := range n.args {
			if remNum(a.slot) == bare {
				found = true
				break
			}
		}
		if !found {
			n.na0++
		}
	}

	n.args = append(n.args, argRef{slot: slot, val: val})
	val.props = append(val.props, propRef{node: n, anum: len(n.args) - 1})
	return nil
}

// remArg removes every argument entry pointing at item, compacting the list
// and maintaining arity counts. The reverse index must be fixed separately.
func (n *Node) remArg(item *Node) {
	for i := 0; i < len(n.args); {
		if n.args[i].val != item {
			i++
			continue
		}
		if n.args[i].slot == "wrt" {
			n.wrt--
		} else {
			bare := remNum(n.args[i].slot)
			shared := false
			for j, a := range n.args {
				if j != i && remNum(a.slot) == bare {
					shared = true
					break
				}
			}
			if !shared {
				n.na0--
			}
		}
		n.args = append(n.args[:i], n.args[i+1:]...)
		// later reverse entries shift down by one
		for j := i; j < len(n.args); j++ {
			v := n.args[j].val
			for k := range v.props {
				if v.props[k].node == n && v.props[k].anum == j+1 {
					v.props[k].anum = j
					break
				}
			}
		}
	}
}

// remProp removes every reverse-index entry pointing at item.
func (n *Node) remProp(item *Node) {
	for i := 0; i < len(n.props); {
		if n.props[i].node == item {
			n.props = append(n.props[:i], n.props[i+1:]...)
		} else {
			i++
		}
	}
}

// SubstArg replaces the i'th argument in place, preserving the slot and
// fixing both reverse indices.
func (n *Node) SubstArg(i int, val *Node) {
	if i < 0 || i >= len(n.args) || val == nil || val == n.args[i].val {
		return
	}
	old := n.args[i].val
	// detach only the reverse entry for this particular slot index
	for k := 0; k < len(old.props); k++ {
		if old.props[k].node == n && old.props[k].anum == i {
			old.props = append(old.props[:k], old.props[k+1:]...)
			break
		}
	}
	n.args[i].val = val
	val.props = append(val.props, propRef{node: n, anum: i})
}

// RefreshArg moves this node to the tail of the argument's property list so
// recency-ordered scans find it first.
func (n *Node) RefreshArg(i int) {
	if i < 0 || i >= len(n.args) {
		return
	}
	val := n.args[i].val
	last := len(val.props) - 1
	if last < 0 || val.props[last].node == n {
		return
	}
	for now := 0; now < last; now++ {
		if val.props[now].node == n {
			pr := val.props[now]
			copy(val.props[now:], val.props[now+1:])
			val.props[last] = propRef{node: pr.node, anum: i}
			return
		}
	}
}

///////////////////////////////////////////////////////////////////////////
//                          Property functions                           //
///////////////////////////////////////////////////////////////////////////

// NumProps returns the property count, combining moor and surface entries.
func (n *Node) NumProps() int {
	if n.moor != nil {
		return len(n.props) + len(n.moor.props)
	}
	return len(n.props)
}

// PropsFull reports whether the reverse index is at capacity.
func (n *Node) PropsFull() bool { return len(n.props) >= MaxProps }

// Naked reports whether nothing points at this node.
func (n *Node) Naked() bool { return n.NumProps() <= 0 }

// Prop returns the i'th property node: moor entries first, then surface.
func (n *Node) Prop(i int) *Node {
	if i < 0 || i >= n.NumProps() {
		return nil
	}
	if n.moor == nil {
		return n.props[i].node
	}
	if i < len(n.moor.props) {
		return n.moor.props[i].node
	}
	return n.props[i-len(n.moor.props)].node
}

// PropSurf returns the i'th property converted to its surface node.
func (n *Node) PropSurf(i int) *Node {
	p := n.Prop(i)
	if p == nil {
		return nil
	}
	return p.Surf()
}

// Role returns the link name by which the i'th property points here.
func (n *Node) Role(i int) string {
	if i < 0 || i >= n.NumProps() {
		return ""
	}
	var pr propRef
	if n.moor == nil {
		pr = n.props[i]
	} else if i < len(n.moor.props) {
		pr = n.moor.props[i]
	} else {
		pr = n.props[i-len(n.moor.props)]
	}
	if pr.node == nil || pr.anum >= len(pr.node.args) {
		return ""
	}
	return pr.node.args[pr.anum].slot
}

// RoleMatch checks the i'th property link name.
func (n *Node) RoleMatch(i int, link string) bool {
	return link != "" && n.Role(i) == link
}

// RoleIn checks the i'th property link against several candidates.
func (n *Node) RoleIn(i int, opts ...string) bool {
	r := n.Role(i)
	for _, o := range opts {
		if o != "" && r == o {
			return true
		}
	}
	return false
}

// PropMatch returns the i'th property if it has the given role, adequate
// belief, and matching polarity.
func (n *Node) PropMatch(i int, role string, bth float64, neg int) *Node {
	if !n.RoleMatch(i, role) {
		return nil
	}
	p := n.Prop(i)
	if p.Neg() != neg {
		return nil
	}
	if bth > 0.0 && p.Belief() < bth {
		return nil
	}
	return p
}

// NumFacts counts properties with the given role.
func (n *Node) NumFacts(role string) int {
	cnt := 0
	for i := 0; i < n.NumProps(); i++ {
		if n.RoleMatch(i, role) {
			cnt++
		}
	}
	return cnt
}

// Fact returns the i'th property with the given role.
func (n *Node) Fact(role string, i int) *Node {
	cnt := i
	for j := 0; j < n.NumProps(); j++ {
		if n.RoleMatch(j, role) {
			if cnt <= 0 {
				return n.Prop(j)
			}
			cnt--
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
//                       Long term memory linkage                        //
///////////////////////////////////////////////////////////////////////////

// Buoy returns the surface cognate of a deep node (nil when untethered).
func (n *Node) Buoy() *Node { return n.buoy }

// Moor returns the deep cognate of a surface node (nil when untethered).
func (n *Node) Moor() *Node { return n.moor }

// Surf returns the active surface node of a tethered pair.
func (n *Node) Surf() *Node {
	if n.buoy != nil {
		return n.buoy
	}
	return n
}

// Deep returns the deep node of a tethered pair.
func (n *Node) Deep() *Node {
	if n.moor != nil {
		return n.moor
	}
	return n
}

// Buoyed / Moored report tethering state.
func (n *Node) Buoyed() bool { return n.buoy != nil }

// Moored reports whether this surface node has a deep cognate.
func (n *Node) Moored() bool { return n.moor != nil }

// MoorTo tethers this surface node to the given deep node, breaking any
// previous pairing of the deep node. Passing nil unmoors.
func (n *Node) MoorTo(deep *Node) {
	if deep == n.moor || deep == n {
		return
	}
	if deep != nil {
		if s0 := deep.buoy; s0 != nil {
			s0.moor = nil
		}
		deep.buoy = n
	}
	n.moor = deep
}

// Home reports whether the node belongs to the given pool.
func (n *Node) Home(p *Pool) bool { return n.home == p }

// SetKeep marks the garbage collection state of the surface node.
func (n *Node) SetKeep(val int) {
	if n.buoy != nil {
		n.buoy.keep = val
	} else {
		n.keep = val
	}
}

// Keep reads the garbage collection state of the surface node.
func (n *Node) Keep() int {
	if n.buoy != nil {
		return n.buoy.keep
	}
	return n.keep
}

///////////////////////////////////////////////////////////////////////////
//                           Simple matching                             //
///////////////////////////////////////////////////////////////////////////

// HasVal checks participation in the triple <self> -slot-> val, accepting
// the tethered cognates of val as equivalent.
func (n *Node) HasVal(slot string, val *Node) bool {
	if val == nil || slot == "" {
		return false
	}
	for i := 0; i < n.NumArgs(); i++ {
		if n.SlotMatch(i, slot) {
			a := n.Arg(i)
			if a == val || a == val.buoy || a == val.moor {
				return true
			}
		}
	}
	return false
}

// HasFact checks participation in the triple fact -role-> <self>.
func (n *Node) HasFact(fact *Node, role string) bool {
	if fact == nil {
		return false
	}
	return fact.HasVal(role, n)
}

// SameArgs checks that two nodes share exactly the same argument set.
func (n *Node) SameArgs(ref *Node) bool {
	if ref == nil || ref.NumArgs() != n.NumArgs() {
		return false
	}
	for i := 0; i < n.NumArgs(); i++ {
		if !ref.HasVal(n.Slot(i), n.Arg(i)) {
			return false
		}
	}
	return true
}

// SameArgsBound checks ref against this node's arguments remapped through b.
func (n *Node) SameArgsBound(ref *Node, b *Bindings) bool {
	if ref == nil || ref.NumArgs() != n.NumArgs() {
		return false
	}
	for i := 0; i < n.NumArgs(); i++ {
		a := n.Arg(i)
		if b != nil {
			if a2 := b.LookUp(a); a2 != nil {
				a = a2
			}
		}
		if !ref.HasVal(n.Slot(i), a) {
			return false
		}
	}
	return true
}

// FindProp finds a property with the given role, lex, polarity, and belief.
func (n *Node) FindProp(role, word string, neg int, bth float64) *Node {
	for i := 0; i < n.NumProps(); i++ {
		if n.RoleMatch(i, role) {
			p := n.Prop(i)
			if p.Neg() == neg && p.LexMatch(word) && p.Belief() >= bth {
				return p
			}
		}
	}
	return nil
}

// FindArg finds an argument with the given slot, lex, polarity, and belief.
func (n *Node) FindArg(slot, word string, neg int, bth float64) *Node {
	for i := 0; i < n.NumArgs(); i++ {
		if n.SlotMatch(i, slot) {
			a := n.Arg(i)
			if a.Neg() == neg && a.LexMatch(word) && a.Belief() >= bth {
				return a
			}
		}
	}
	return nil
}

// HasSlot checks for any argument with the given link name.
func (n *Node) HasSlot(slot string) bool {
	for i := 0; i < n.NumArgs(); i++ {
		if n.SlotMatch(i, slot) {
			return true
		}
	}
	return false
}

// AnySlot checks for any of several link names.
func (n *Node) AnySlot(opts ...string) bool {
	for _, o := range opts {
		if o != "" && n.HasSlot(o) {
			return true
		}
	}
	return false
}

// SameSlots checks that two nodes use the same set of link names.
func (n *Node) SameSlots(ref *Node) bool {
	if ref == nil || ref.NumArgs() != n.NumArgs() {
		return false
	}
	for i := 0; i < n.NumArgs(); i++ {
		if !ref.HasSlot(n.Slot(i)) {
			return false
		}
	}
	return true
}

///////////////////////////////////////////////////////////////////////////
//                 Predicate terms and reference names                   //
///////////////////////////////////////////////////////////////////////////

// LexMatch tests exact lexical equality against a string.
func (n *Node) LexMatch(txt string) bool { return txt != "" && n.Lex() == txt }

// LexSame tests exact lexical equality against another node.
func (n *Node) LexSame(m *Node) bool { return m != nil && n.Lex() == m.Lex() }

// LexIn tests the lexical term against several candidates.
func (n *Node) LexIn(opts ...string) bool {
	for _, o := range opts {
		if n.LexMatch(o) {
			return true
		}
	}
	return false
}

// Tag returns the lex when present, else the nickname.
func (n *Node) Tag() string {
	if n.Lex() != "" {
		return n.Lex()
	}
	return n.Nick()
}

// Name returns the i'th believed "name" property lex (newest first).
// A non-positive bth accepts names regardless of belief.
func (n *Node) Name(i int, bth float64) string {
	cnt := 0
	for j := n.NumProps() - 1; j >= 0; j-- {
		if n.RoleMatch(j, "name") {
			p := n.Prop(j)
			if bth <= 0.0 || (p.Neg() <= 0 && p.Belief() >= bth) {
				if cnt >= i {
					return p.Lex()
				}
				cnt++
			}
		}
	}
	return ""
}

// HasName checks if a name is associated with this item (case-insensitive).
// With truOnly, negated name restrictions do not count.
func (n *Node) HasName(word string, truOnly bool) bool {
	if word == "" {
		return false
	}
	for i := 0; i < n.NumProps(); i++ {
		if n.RoleMatch(i, "name") {
			p := n.Prop(i)
			if strings.EqualFold(p.Lex(), word) {
				return !truOnly || p.Neg() <= 0
			}
		}
	}
	return false
}

// Label returns the first believed name, else the nickname.
func (n *Node) Label() string {
	if nm := n.Name(0, 0.5); nm != "" {
		return nm
	}
	return n.Nick()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func fabs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
