package semnet

import "strings"

// MaxExt caps the external reference table.
const MaxExt = 50

// External reference kinds.
const (
	ExtObject  = 0
	ExtAgent   = 1
	ExtSurface = 2
)

type extLink struct {
	node *Node
	rnum int
	kind int
	used bool
}

// WorkingMemory is the main temporary semantic network: a recency-ordered
// main pool plus an embedded halo pool holding rule inferences. The halo is
// split into bands by id boundaries:
//
//	band 0:  main pool, ids positive (ordered by recency)
//	band 1:  long-term ghost facts   (|id| 1..rim)
//	band 2:  one-rule inferences     (rim+1..nimbus)
//	band 3:  two-rule inferences     (nimbus+1..)
//
// NextNode traverses seamlessly from main into the halo up to the band set
// by MaxBand, which is how the matcher sees a single layered fact space.
type WorkingMemory struct {
	*Pool

	halo *Pool

	rim    int // last LTM ghost id
	nimbus int // last single-rule inference id
	mode   int // deepest band served (0-3)

	self *Node // fixed node representing the system
	user *Node // node for current person communicating

	ext [MaxExt]extLink

	skep float64 // global condition belief threshold (skepticism)
}

// NewWorkingMemory creates an empty working memory with participants.
// Main pool nodes start hidden: a fact only becomes matchable once posted
// (FinishNote, promotion, or an adapter's NewFound). Halo nodes are born
// visible since inference results are immediately usable.
func NewWorkingMemory(rname string) *WorkingMemory {
	w := &WorkingMemory{
		Pool: NewPool(),
		halo: NewHaloPool(),
		mode: 3,
		skep: 0.5,
	}
	w.SetVisDef(0)
	w.InitPeople(rname)
	return w
}

// Halo exposes the embedded halo pool.
func (w *WorkingMemory) Halo() *Pool { return w.halo }

// Border records the LTM ghost boundary (rim) after ghost loading.
func (w *WorkingMemory) Border() { w.rim = w.halo.LastLabel() }

// Horizon records the single-rule boundary (nimbus) after halo pass 1.
func (w *WorkingMemory) Horizon() { w.nimbus = w.halo.LastLabel() }

// LastGhost returns the rim boundary.
func (w *WorkingMemory) LastGhost() int { return w.rim }

// LastSingle returns the nimbus boundary.
func (w *WorkingMemory) LastSingle() int { return w.nimbus }

// MaxBand limits traversal and matching to bands 0..lvl.
func (w *WorkingMemory) MaxBand(lvl int) {
	if lvl < 0 {
		lvl = 0
	}
	if lvl > 3 {
		lvl = 3
	}
	w.mode = lvl
}

// WmemSize counts main pool nodes.
func (w *WorkingMemory) WmemSize(hyp int) int { return w.NodeCnt(hyp) }

// HaloSize counts halo nodes.
func (w *WorkingMemory) HaloSize(hyp int) int { return w.halo.NodeCnt(hyp) }

// MinBlf returns the skepticism threshold.
func (w *WorkingMemory) MinBlf() float64 { return w.skep }

// SetMinBlf adjusts skepticism, clamped to [0.1, 1.0].
func (w *WorkingMemory) SetMinBlf(s float64) {
	if s < 0.1 {
		s = 0.1
	}
	if s > 1.0 {
		s = 1.0
	}
	w.skep = s
}

///////////////////////////////////////////////////////////////////////////
//                      Conversation participants                        //
///////////////////////////////////////////////////////////////////////////

// InitPeople builds the fixed self node and a default user node. The "me"
// and "you" lexical terms anchor participant identity during refmode
// matching, while human-readable names ride along as properties.
func (w *WorkingMemory) InitPeople(rname string) {
	w.self = w.MakeNode("self", "me", 0, -1.0, 0)
	w.self.Reveal(1)
	if rname != "" {
		w.AddName(w.self, rname, 0)
	}
	w.user = nil
	w.ShiftUser("")
}

// Robot returns the fixed self node.
func (w *WorkingMemory) Robot() *Node { return w.self }

// Human returns the current user node.
func (w *WorkingMemory) Human() *Node { return w.user }

// SetUser makes an existing node the current user.
func (w *WorkingMemory) SetUser(n *Node) *Node {
	if n != nil {
		w.user = n
	}
	return w.user
}

// ShiftUser switches to a (possibly new) user with the given name.
func (w *WorkingMemory) ShiftUser(name string) *Node {
	if name != "" {
		if n := w.FindName(name); n != nil {
			return w.SetUser(n)
		}
	}
	n := w.MakeNode("agt", "you", 0, -1.0, 0)
	n.Reveal(1)
	if name != "" {
		w.AddName(n, name, 0)
	}
	return w.SetUser(n)
}

// AddName asserts a name for a node, also posting the bare first name for
// two-part positive names ("Jon C" also yields "Jon").
func (w *WorkingMemory) AddName(n *Node, name string, neg int) {
	if n == nil || name == "" {
		return
	}
	first := ""
	if sp := strings.IndexByte(name, ' '); sp >= 0 {
		first = name[:sp]
	}
	p := w.AddProp(n, "name", name, neg, -1.0)
	if p != nil {
		p.Tags |= TagNoun
		p.Reveal(1)
	}
	if first != "" && neg <= 0 {
		if p := w.AddProp(n, "name", first, 0, -1.0); p != nil {
			p.Tags |= TagNoun
			p.Reveal(1)
		}
	}
}

// FindName locates the most recent node bearing a personal name, checking
// the full name first and then just the first name.
func (w *WorkingMemory) FindName(full string) *Node {
	if full == "" {
		return nil
	}
	if p := w.scanName(full); p != nil {
		return p
	}
	sp := strings.IndexByte(full, ' ')
	if sp < 0 {
		return nil
	}
	return w.scanName(full[:sp])
}

func (w *WorkingMemory) scanName(name string) *Node {
	h := w.LexHash(name)
	for n := w.Next(nil, h); n != nil; n = w.Next(n, h) {
		if n.Neg() <= 0 && n.Belief() >= w.skep && n.LexMatch(name) {
			if p := n.Val("name", 0); p != nil {
				if !w.NameClash(p, name, 0) {
					return p
				}
			}
		}
	}
	return nil
}

// NameClash checks whether a name assertion (or denial with neg) conflicts
// with the names and restrictions already attached to the node.
func (w *WorkingMemory) NameClash(n *Node, name string, neg int) bool {
	if n == nil || name == "" {
		return false
	}
	first := ""
	if sp := strings.IndexByte(name, ' '); sp >= 0 {
		first = name[:sp]
	}
	for i := 0; i < n.NumProps(); i++ {
		if !n.RoleMatch(i, "name") {
			continue
		}
		p := n.PropSurf(i)
		if !p.Halo() && p.Belief() >= w.skep {
			if incompatibleName(p.Lex(), p.Neg(), name, first, neg) {
				return true
			}
		}
	}
	return false
}

// incompatibleName decides whether a known name (with polarity nneg)
// conflicts with a newly given full/first name (polarity fneg).
// A one-part new name arrives in full with first == "".
func incompatibleName(name string, nneg int, full, first string, fneg int) bool {
	// new assertion is denying some name
	if fneg > 0 {
		if nneg > 0 {
			return false // restrictions never clash with restrictions
		}
		if name == full {
			return true // Jon C vs -Jon C
		}
		// node's first name matches denied full (Jon C vs -Jon)
		sp := strings.IndexByte(name, ' ')
		if sp < 0 {
			return false
		}
		return name[:sp] == first
	}

	// positive new assertion with two parts
	if first != "" {
		if nneg > 0 {
			// either new part matches a restriction (-Jon vs Jon C)
			return name == full || name == first
		}
		// barf if node name is not the same as new first or full
		return name != full && name != first
	}

	// positive one part new name against node name
	if nneg > 0 {
		return name == full // -Jon vs Jon
	}
	if name == full {
		return false // Jon vs Jon
	}
	sp := strings.IndexByte(name, ' ')
	if sp < 0 {
		return true
	}
	return name[:sp] != full // Jon C vs Jon agree on first part
}

///////////////////////////////////////////////////////////////////////////
//                              List access                              //
///////////////////////////////////////////////////////////////////////////

// NextNode returns the next node, transitioning from main into the halo up
// to the band limit set by MaxBand. Main may be shuffled by recency; halo
// ids ascend strictly in creation order.
func (w *WorkingMemory) NextNode(prev *Node, bin int) *Node {
	if w.mode < 0 {
		return nil
	}

	var n *Node
	if prev != nil && prev.Halo() {
		n = w.halo.Next(prev, bin) // continue in halo
	} else if n = w.Next(prev, bin); n == nil && w.mode > 0 {
		n = w.halo.First(bin) // shift to halo
	}

	if n == nil || !n.Halo() {
		return n
	}

	// skip halo nodes outside the valid band range
	for n != nil {
		id := abs(n.Inst())
		if (w.mode == 1 && id <= w.rim) || (w.mode == 2 && id <= w.nimbus) || w.mode == 3 {
			break // id just right so keep
		}
		if bin < 0 {
			n = w.halo.NextPool(n) // id too high so shift bin
		} else {
			n = nil // id too high so punt
		}
	}
	return n
}

// Length implements NodeList by counting main pool nodes only; halo nodes
// are not counted.
func (w *WorkingMemory) Length() int { return w.NodeCnt(1) }

// InList accepts nodes of either pool.
func (w *WorkingMemory) InList(n *Node) bool {
	return w.Pool.InList(n) || w.halo.InList(n)
}

// InMain accepts only main pool nodes.
func (w *WorkingMemory) InMain(n *Node) bool { return w.Pool.InList(n) }

// Prohibited rejects halo nodes beyond the current band limit.
func (w *WorkingMemory) Prohibited(n *Node) bool {
	if n == nil {
		return true
	}
	if w.mode <= 0 && n.Inst() < 0 {
		return true
	}
	if w.mode == 1 && n.Inst() < -w.rim {
		return true
	}
	if w.mode == 2 && n.Inst() < -w.nimbus {
		return true
	}
	return false
}

// SameBin counts candidates for a pattern node across main and halo.
func (w *WorkingMemory) SameBin(focus *Node, b *Bindings) int {
	var bin int
	switch {
	case focus.Lex() == "":
		bin = -1
	case b != nil:
		bin = b.LexBin(focus)
	default:
		bin = focus.Code()
	}
	if w.mode <= 0 {
		return w.BinCnt(bin)
	}
	return w.BinCnt(bin) + w.halo.BinCnt(bin)
}

// NumBands reports how many bands the current mode serves.
func (w *WorkingMemory) NumBands() int { return w.mode + 1 }

// InBand tests which band a node belongs to. Foreign nodes (other pools)
// are accepted everywhere.
func (w *WorkingMemory) InBand(n *Node, part int) bool {
	if n == nil || (!n.Home(w.Pool) && !n.Home(w.halo)) {
		return true
	}
	if !n.Halo() {
		return part == 0
	}
	id := -n.Inst()
	switch part {
	case 1:
		return id <= w.rim
	case 2:
		return id > w.rim && id <= w.nimbus
	case 3:
		return id > w.nimbus
	}
	return false
}

// VisMem tells whether a node is visible for FIND: main nodes always, halo
// nodes only when ghost is allowed and they are LTM ghosts (band 1).
func (w *WorkingMemory) VisMem(n *Node, ghost int) bool {
	if n == nil || !n.Visible() {
		return false
	}
	if ghost <= 0 {
		return w.InMain(n)
	}
	return w.InMain(n) || (w.halo.InList(n) && abs(n.Inst()) <= w.rim)
}

///////////////////////////////////////////////////////////////////////////
//                            Halo functions                             //
///////////////////////////////////////////////////////////////////////////

// ClearHalo wipes all inferences (rebuilt each cycle).
func (w *WorkingMemory) ClearHalo() { w.halo.PurgeAll() }

// AssertHalo instantiates a rule result into the halo using bindings.
func (w *WorkingMemory) AssertHalo(pat *Graphlet, b *Bindings) {
	w.halo.Assert(pat, b, 0.0, 0, nil)
}

// CloneHalo copies a node into the halo pool.
func (w *WorkingMemory) CloneHalo(n *Node) *Node { return w.halo.CloneNode(n, 1) }

///////////////////////////////////////////////////////////////////////////
//                          Truth maintenance                            //
///////////////////////////////////////////////////////////////////////////

// RevealAll makes every element of a description eligible for matching.
// Information becomes available only at proper times (after FinishNote).
func (w *WorkingMemory) RevealAll(desc *Graphlet) {
	cnt := 0
	for i := 0; i < desc.NumItems(); i++ {
		n := desc.Item(i)
		if !n.Visible() {
			n.Reveal(1)
			cnt++
		}
	}
	w.Dirty(cnt) // for halo refresh
}

// Endorse suppresses older main memory variants of each predicate in the
// description (same lex and args, either polarity) so only one variant has
// positive belief. Returns the number of assertions overridden.
func (w *WorkingMemory) Endorse(desc *Graphlet) int {
	cnt := 0
	for i := 0; i < desc.NumItems(); i++ {
		n := desc.Item(i)
		if n.Hyp() || n.ObjNode() {
			continue
		}
		for n2 := w.Next(nil, -1); n2 != nil; n2 = w.Next(n2, -1) {
			if n2 != n && !n2.Hyp() && !n2.ObjNode() {
				if n.LexSame(n2) && n.SameArgs(n2) {
					// suppression instead of removal: node deletion
					// could leave dangling references in active plans
					n2.Suppress()
					cnt++
					break
				}
			}
		}
	}
	w.Dirty(cnt)
	return cnt
}

///////////////////////////////////////////////////////////////////////////
//                           External nodes                              //
///////////////////////////////////////////////////////////////////////////

// ExtLink ties an adapter-side reference number to a node (kind selects the
// namespace: object, agent, surface). A nil node erases the entry.
// Returns 1 if recorded, 0 for no change or out of space.
func (w *WorkingMemory) ExtLink(rnum int, obj *Node, kind int) int {
	// look for pre-existing entry for this id
	for i := range w.ext {
		e := &w.ext[i]
		if e.used && e.kind == kind && e.rnum == rnum {
			if obj == e.node {
				return 0
			}
			if obj != nil {
				e.node = obj
			} else {
				e.used = false
				e.node = nil
			}
			return 1
		}
	}
	if obj == nil {
		return 0
	}
	// claim a free slot
	for i := range w.ext {
		e := &w.ext[i]
		if !e.used {
			*e = extLink{node: obj, rnum: rnum, kind: kind, used: true}
			return 1
		}
	}
	return 0
}

// ExtRef returns the node registered under an external id (nil if none).
func (w *WorkingMemory) ExtRef(rnum, kind int) *Node {
	for i := range w.ext {
		e := &w.ext[i]
		if e.used && e.kind == kind && e.rnum == rnum {
			return e.node
		}
	}
	return nil
}

// ExtID does the reverse lookup from node to external id (-1 if none).
func (w *WorkingMemory) ExtID(obj *Node, kind int) int {
	for i := range w.ext {
		e := &w.ext[i]
		if e.used && e.kind == kind && e.node == obj {
			return e.rnum
		}
	}
	return -1
}

// ExtEnum returns the smallest registered id greater than last (-1 if none).
func (w *WorkingMemory) ExtEnum(last, kind int) int {
	best := -1
	for i := range w.ext {
		e := &w.ext[i]
		if e.used && e.kind == kind && e.rnum > last {
			if best < 0 || e.rnum < best {
				best = e.rnum
			}
		}
	}
	return best
}

// remExt clears any external entries pointing at a removed node.
func (w *WorkingMemory) remExt(obj *Node) {
	for i := range w.ext {
		if w.ext[i].used && w.ext[i].node == obj {
			w.ext[i] = extLink{}
		}
	}
}

///////////////////////////////////////////////////////////////////////////
//                         Garbage collection                            //
///////////////////////////////////////////////////////////////////////////

// CleanMem removes main memory nodes unreachable from externally marked
// seeds or the conversation participants (mark-sweep). Callers mark seed
// nodes via SetKeep first. Returns the number of nodes removed.
func (w *WorkingMemory) CleanMem() int {
	// normalize marks
	for n := w.NextNode(nil, -1); n != nil; n = w.NextNode(n, -1) {
		if n.Keep() > 0 {
			n.SetKeep(1)
		} else {
			n.SetKeep(0)
		}
	}

	// spread marks from every externally marked node
	for n := w.Next(nil, -1); n != nil; n = w.Next(n, -1) {
		if n.Keep() == 1 {
			w.keepFrom(n)
		}
	}

	// definite keepers
	w.keepParty(w.self)
	w.keepParty(w.user)
	return w.remUnmarked()
}

// keepParty marks a conversational participant plus its non-hypothetical
// name, category, and quality facts (with degree modifiers).
func (w *WorkingMemory) keepParty(anchor *Node) {
	if anchor == nil {
		return
	}
	anchor.SetKeep(2)
	for i := 0; i < anchor.NumProps(); i++ {
		prop := anchor.PropSurf(i)
		if prop.Hyp() || !w.InPool(prop) {
			continue
		}
		if anchor.RoleIn(i, "name", "ako") ||
			(anchor != w.self && anchor.RoleIn(i, "hq", "wrt")) {
			prop.SetKeep(2)
			for j := 0; j < prop.NumArgs(); j++ {
				prop.ArgSurf(j).SetKeep(1) // allow spreading from arg
			}
			// retain degree for properties like "very smart"
			for j := 0; j < prop.NumProps(); j++ {
				deg := prop.PropSurf(j)
				if !deg.Hyp() && w.InPool(deg) && prop.RoleMatch(j, "deg") {
					deg.SetKeep(2)
				}
			}
		}
	}
}

// keepFrom marks a node and everything connected through its args and most
// of its props: "meta" annotations are reclaimed with their owner, and a
// nil-belief prop with no dependents of its own is not worth keeping.
func (w *WorkingMemory) keepFrom(anchor *Node) {
	if anchor == nil || anchor.Keep() > 1 || !w.InPool(anchor) {
		return
	}
	if anchor == w.self || anchor == w.user {
		return // handled separately
	}
	anchor.SetKeep(2)
	for i := 0; i < anchor.NumArgs(); i++ {
		w.keepFrom(anchor.ArgSurf(i))
	}
	for i := 0; i < anchor.NumProps(); i++ {
		if anchor.RoleMatch(i, "meta") {
			continue
		}
		prop := anchor.PropSurf(i)
		if prop != nil && prop.Hyp() && prop.Naked() {
			continue
		}
		w.keepFrom(prop)
	}
}

// remUnmarked sweeps out anything left unmarked, resetting survivors.
func (w *WorkingMemory) remUnmarked() int {
	cnt := 0
	n := w.Next(nil, -1)
	for n != nil {
		if n.Keep() > 0 {
			n.SetKeep(0) // eligible for deletion next round
			n = w.Next(n, -1)
			continue
		}
		tail := w.Next(n, -1)
		w.remExt(n) // for external object ids
		w.RemNode(n)
		cnt++
		n = tail
	}
	return cnt
}
