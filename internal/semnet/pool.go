package semnet

import (
	"strconv"
	"strings"
)

// NBins is the number of lex hash bins (bin 0 holds lex-less nodes).
const NBins = 256

// NodeList is anything whose nodes can be enumerated by the matcher.
type NodeList interface {
	// NextNode returns the node after prev (first node when prev is nil),
	// optionally restricted to one hash bin (bin < 0 means all).
	NextNode(prev *Node, bin int) *Node
	// Length returns the node count.
	Length() int
	// InList reports membership.
	InList(n *Node) bool
	// Prohibited rejects candidates the source will not serve.
	Prohibited(n *Node) bool
	// NumBins reports how many hash bins the source distinguishes.
	NumBins() int
	// SameBin estimates the candidate count for a pattern node.
	SameBin(focus *Node, b *Bindings) int
}

type binList struct {
	head *Node
	tail *Node
	pop  int
}

// Pool is an insertion-ordered collection of nodes with per-lex-hash
// bucketing. Main pools insert at the head (most recent first) and use
// positive ids; halo pools append at the tail with negative ids so |id|
// ascends in creation order.
type Pool struct {
	head  *Node
	tail  *Node
	bins  map[int]*binList
	ncnt  int
	label int
	dn    bool // negative ids (halo pool)

	acc *Graphlet // construction accumulator (BuildIn)

	ver    int
	refnum int
	ref0   int

	xadd int
	xdel int
	xmod int

	vis0 int // default visibility for created nodes

	// translation table while loading
	trans map[string]*Node
}

// NewPool creates an empty main pool (positive ids, recency ordered).
func NewPool() *Pool {
	return &Pool{bins: make(map[int]*binList), vis0: 1}
}

// NewHaloPool creates an empty halo pool (negative ids, creation ordered).
func NewHaloPool() *Pool {
	p := NewPool()
	p.dn = true
	return p
}

// NegID reports whether this pool assigns negative (halo) ids.
func (p *Pool) NegID() bool { return p.dn }

// LastLabel returns the highest id ever assigned (absolute value).
func (p *Pool) LastLabel() int { return p.label }

// Version returns the current generation counter.
func (p *Pool) Version() int { return p.ver }

// BumpVer advances the generation counter and returns it.
func (p *Pool) BumpVer() int { p.ver++; return p.ver }

// VisDef returns the default visibility given to created nodes.
func (p *Pool) VisDef() int { return p.vis0 }

// SetVisDef changes the default visibility for subsequently created nodes.
func (p *Pool) SetVisDef(vis int) { p.vis0 = vis }

// LexHash maps a lexical term to its hash bin (stable within a run).
// Lex-less nodes live in bin 0.
func (p *Pool) LexHash(word string) int {
	if word == "" {
		return 0
	}
	var h uint32 = 2166136261
	for i := 0; i < len(word); i++ {
		h ^= uint32(word[i])
		h *= 16777619
	}
	return int(h%(NBins-1)) + 1
}

// BinCnt returns the population of one bin, or the whole pool for bin < 0.
func (p *Pool) BinCnt(bin int) int {
	if bin < 0 {
		return p.ncnt
	}
	if bl := p.bins[bin]; bl != nil {
		return bl.pop
	}
	return 0
}

// IncConvo advances the conversation counter.
func (p *Pool) IncConvo() int { p.refnum++; return p.refnum }

// InitConvo records the conversation baseline.
func (p *Pool) InitConvo() { p.ref0 = p.refnum }

// LocalConvo returns the conversation baseline.
func (p *Pool) LocalConvo() int { return p.ref0 }

// MarkConvo stamps a node with the next conversation number.
func (p *Pool) MarkConvo(n *Node) {
	if n != nil {
		n.ref = p.IncConvo()
	}
}

// Changes reports accumulated modification counts since the last call.
func (p *Pool) Changes() int {
	chg := p.xadd + p.xdel + p.xmod
	p.xadd, p.xdel, p.xmod = 0, 0, 0
	return chg
}

// Dirty records external modifications (e.g. belief edits) for halo refresh.
func (p *Pool) Dirty(cnt int) { p.xmod += cnt }

///////////////////////////////////////////////////////////////////////////
//                            List functions                             //
///////////////////////////////////////////////////////////////////////////

// PurgeAll removes every node from the pool.
func (p *Pool) PurgeAll() {
	p.head, p.tail = nil, nil
	p.bins = make(map[int]*binList)
	p.ncnt = 0
	if p.dn {
		p.label = 0 // halo ids restart each refresh
	}
}

// First returns the first node, overall or within one bin.
func (p *Pool) First(bin int) *Node {
	if bin < 0 {
		return p.head
	}
	if bl := p.bins[bin]; bl != nil {
		return bl.head
	}
	return nil
}

// Next returns the node after ref, overall or within one bin.
func (p *Pool) Next(ref *Node, bin int) *Node {
	if ref == nil {
		return p.First(bin)
	}
	if bin < 0 {
		return ref.next
	}
	return ref.bnext
}

// NextPool returns the node after ref in pure pool order.
func (p *Pool) NextPool(ref *Node) *Node {
	if ref == nil {
		return p.head
	}
	return ref.next
}

// NodeCnt counts nodes, optionally excluding hypotheticals.
func (p *Pool) NodeCnt(hyp int) int {
	if hyp > 0 {
		return p.ncnt
	}
	cnt := 0
	for n := p.head; n != nil; n = n.next {
		if !n.Hyp() {
			cnt++
		}
	}
	return cnt
}

// NextNode implements NodeList over the bare pool.
func (p *Pool) NextNode(prev *Node, bin int) *Node { return p.Next(prev, bin) }

// Length implements NodeList.
func (p *Pool) Length() int { return p.ncnt }

// InList reports whether the node belongs to this pool.
func (p *Pool) InList(n *Node) bool { return n != nil && n.home == p }

// InPool is a synonym for InList.
func (p *Pool) InPool(n *Node) bool { return p.InList(n) }

// Prohibited implements NodeList (plain pools serve everything).
func (p *Pool) Prohibited(n *Node) bool { return n == nil }

// NumBins implements NodeList.
func (p *Pool) NumBins() int { return NBins }

// SameBin implements NodeList: candidate count for a pattern node.
func (p *Pool) SameBin(focus *Node, b *Bindings) int {
	if focus.Lex() == "" {
		return p.BinCnt(-1)
	}
	if b != nil {
		return p.BinCnt(b.LexBin(focus))
	}
	return p.BinCnt(focus.Code())
}

///////////////////////////////////////////////////////////////////////////
//                           Main functions                              //
///////////////////////////////////////////////////////////////////////////

// BuildIn directs subsequent node construction into the given graphlet
// (nil disables accumulation). Returns the previous accumulator.
func (p *Pool) BuildIn(g *Graphlet) *Graphlet {
	old := p.acc
	p.acc = g
	return old
}

// Accum returns the current construction accumulator.
func (p *Pool) Accum() *Graphlet { return p.acc }

// SetGen stamps a node with the given generation (current when v <= 0).
func (p *Pool) SetGen(n *Node, v int) *Node {
	if n == nil {
		return nil
	}
	if v <= 0 {
		v = p.ver
	}
	n.GenMax(v)
	return n
}

// Refresh moves a node to the head of the pool (recency reordering) and
// refreshes its argument links. Only meaningful for main pools.
func (p *Pool) Refresh(n *Node) int {
	if n == nil || n.home != p || p.dn {
		return 0
	}
	if p.head != n {
		p.unlink(n)
		p.relink(n)
	}
	for i := 0; i < len(n.args); i++ {
		n.RefreshArg(i)
	}
	return 1
}

// RefreshAll refreshes every node of a graphlet.
func (p *Pool) RefreshAll(gr *Graphlet) {
	for i := 0; i < gr.NumItems(); i++ {
		p.Refresh(gr.Item(i))
	}
}

// addToList hooks a created node into the pool and bin chains.
func (p *Pool) addToList(n *Node) {
	if p.dn {
		// halo: append at tail so |id| ascends
		if p.tail == nil {
			p.head, p.tail = n, n
		} else {
			p.tail.next = n
			p.tail = n
		}
	} else {
		// main: insert at head for recency order
		n.next = p.head
		p.head = n
		if p.tail == nil {
			p.tail = n
		}
	}
	bl := p.bins[n.hash]
	if bl == nil {
		bl = &binList{}
		p.bins[n.hash] = bl
	}
	if p.dn {
		if bl.tail == nil {
			bl.head, bl.tail = n, n
		} else {
			bl.tail.bnext = n
			bl.tail = n
		}
	} else {
		n.bnext = bl.head
		bl.head = n
		if bl.tail == nil {
			bl.tail = n
		}
	}
	bl.pop++
	p.ncnt++
	p.xadd++
}

// unlink removes a node from the pool and bin chains (structure untouched).
func (p *Pool) unlink(n *Node) {
	// global chain
	if p.head == n {
		p.head = n.next
	} else {
		for m := p.head; m != nil; m = m.next {
			if m.next == n {
				m.next = n.next
				break
			}
		}
	}
	if p.tail == n {
		p.tail = nil
		for m := p.head; m != nil; m = m.next {
			p.tail = m
		}
	}
	n.next = nil

	// bin chain
	if bl := p.bins[n.hash]; bl != nil {
		if bl.head == n {
			bl.head = n.bnext
		} else {
			for m := bl.head; m != nil; m = m.bnext {
				if m.bnext == n {
					m.bnext = n.bnext
					break
				}
			}
		}
		if bl.tail == n {
			bl.tail = nil
			for m := bl.head; m != nil; m = m.bnext {
				bl.tail = m
			}
		}
		bl.pop--
	}
	n.bnext = nil
}

// relink re-inserts an unlinked node (used for recency reordering).
func (p *Pool) relink(n *Node) {
	n.next = p.head
	p.head = n
	if p.tail == nil {
		p.tail = n
	}
	bl := p.bins[n.hash]
	if bl == nil {
		bl = &binList{}
		p.bins[n.hash] = bl
	}
	n.bnext = bl.head
	bl.head = n
	if bl.tail == nil {
		bl.tail = n
	}
	bl.pop++
}

// RemNode dissolves all links of a node and removes it from the pool.
func (p *Pool) RemNode(n *Node) int {
	if n == nil || n.home != p {
		return 0
	}
	// unhook tethering
	if n.moor != nil {
		n.moor.buoy = nil
		n.moor = nil
	}
	if n.buoy != nil {
		n.buoy.moor = nil
		n.buoy = nil
	}
	// dissolve incoming properties (facts that used this node as argument)
	for len(n.props) > 0 {
		n.props[0].node.remArg(n)
		n.remProp(n.props[0].node)
	}
	// dissolve outgoing arguments
	for _, a := range n.args {
		a.val.remProp(n)
	}
	n.args = nil
	n.na0, n.wrt = 0, 0

	p.unlink(n)
	n.home = nil
	p.ncnt--
	p.xdel++
	return 1
}

///////////////////////////////////////////////////////////////////////////
//                         Basic construction                            //
///////////////////////////////////////////////////////////////////////////

// createNode allocates a pool node with the given id (0 = assign next).
func (p *Pool) createNode(kind string, id int) *Node {
	if id == 0 {
		p.label++
		id = p.label
		if p.dn {
			id = -id
		}
	} else if abs(id) > p.label {
		p.label = abs(id)
	}
	n := &Node{kind: kind, id: id, home: p, vis: p.vis0, gen: p.ver}
	p.addToList(n)
	if p.acc != nil {
		p.acc.AddItem(n)
	}
	return n
}

// MakeNode creates a node of the given kind, optionally with a lexical term,
// polarity, and default belief. A negative def marks an already-actual fact
// with belief |def|; otherwise the node starts hypothetical (belief 0) with
// def pending.
func (p *Pool) MakeNode(kind, word string, neg int, def float64, done int) *Node {
	n := p.createNode(kind, 0)
	n.neg = neg
	n.evt = done
	if def < 0.0 {
		n.blf0 = -def
		n.blf = -def
	} else {
		n.blf0 = def
		n.blf = 0.0
	}
	if word != "" {
		p.SetLex(n, word)
	}
	return n
}

// MakeAct creates an action node ("act" kind) with the given verb.
func (p *Pool) MakeAct(word string, neg int, def float64, done int) *Node {
	return p.MakeNode("act", word, neg, def, done)
}

// CloneNode creates a fresh node copying kind, lex, polarity, event state,
// and (with bset) beliefs from the source.
func (p *Pool) CloneNode(src *Node, bset int) *Node {
	n := p.MakeNode(src.Kind(), src.Lex(), src.Neg(), src.Default(), src.Done())
	if bset > 0 {
		n.blf = src.Belief()
	}
	n.Tags = src.Tags
	return n
}

// AddProp creates a property node of the given role pointing at head:
// head <-role- prop(word). Returns the new property node.
func (p *Pool) AddProp(head *Node, role, word string, neg int, def float64) *Node {
	if head == nil {
		return nil
	}
	prop := p.MakeNode(role, word, neg, def, 0)
	if err := prop.AddArg(role, head); err != nil {
		p.RemNode(prop)
		return nil
	}
	return prop
}

// AddDeg creates a property with a degree modifier ("very big").
func (p *Pool) AddDeg(head *Node, role, word, amt string, neg int, def float64) *Node {
	prop := p.AddProp(head, role, word, neg, def)
	if prop != nil && amt != "" {
		p.AddProp(prop, "deg", amt, 0, def)
	}
	return prop
}

// SetLex attaches or changes the lexical term of a node, rebinning it.
func (p *Pool) SetLex(n *Node, txt string) {
	if n == nil || n.lex == txt {
		return
	}
	p.unlink(n)
	n.lex = txt
	n.hash = p.LexHash(txt)
	if p.dn {
		// keep halo creation order: rebuild position at tail
		p.appendRaw(n)
	} else {
		p.relink(n)
	}
	p.xmod++
}

// appendRaw re-inserts an unlinked halo node at the tail of its chains.
func (p *Pool) appendRaw(n *Node) {
	if p.tail == nil {
		p.head, p.tail = n, n
	} else {
		p.tail.next = n
		p.tail = n
	}
	bl := p.bins[n.hash]
	if bl == nil {
		bl = &binList{}
		p.bins[n.hash] = bl
	}
	if bl.tail == nil {
		bl.head, bl.tail = n, n
	} else {
		bl.tail.bnext = n
		bl.tail = n
	}
	bl.pop++
}

// MarkBelief sets a node's belief and stamps the generation.
func (p *Pool) MarkBelief(n *Node, blf float64) {
	if n == nil {
		return
	}
	n.SetBelief(blf)
	n.GenMax(p.ver)
	p.xmod++
}

// BuoyFor creates a surface node tethered to the given deep node. The buoy
// adopts the moor's hash bin so lex-restricted scans still find it.
func (p *Pool) BuoyFor(deep *Node) *Node {
	if deep == nil {
		return nil
	}
	if deep.buoy != nil {
		return deep.buoy
	}
	n := p.createNode(deep.Kind(), 0)
	p.unlink(n)
	n.hash = p.LexHash(deep.Lex())
	if p.dn {
		p.appendRaw(n)
	} else {
		p.relink(n)
	}
	n.MoorTo(deep)
	return n
}

///////////////////////////////////////////////////////////////////////////
//                         Pattern instantiation                         //
///////////////////////////////////////////////////////////////////////////

// Assert instantiates a pattern graphlet into this pool using the given
// bindings: pattern nodes without a substitution get fresh nodes (recorded
// back into b), and all pattern arcs are replicated. Returns the number of
// nodes created, negative on error.
func (p *Pool) Assert(pat *Graphlet, b *Bindings, conf float64, tval int, univ NodeList) int {
	made := 0
	ni := pat.NumItems()

	// ensure every pattern item has a substitution
	for i := 0; i < ni; i++ {
		pn := pat.Item(i)
		if n2 := p.lookupMake(pn, b, univ, conf, &made); n2 == nil {
			return -1
		}
	}

	// replicate argument structure (arguments may live outside the pattern)
	for i := 0; i < ni; i++ {
		pn := pat.Item(i)
		n2 := b.LookUp(pn)
		for j := 0; j < pn.NumArgs(); j++ {
			val := pn.Arg(j)
			v2 := b.LookUp(val)
			if v2 == nil {
				if pat.InDesc(val) {
					return -1 // should have been created above
				}
				v2 = val // external literal node
			}
			if err := n2.AddArg(pn.Slot(j), v2); err != nil {
				return -1
			}
		}
		if tval > 0 {
			n2.TopMax(tval)
		}
		p.SetGen(n2, 0)
	}
	return made
}

// lookupMake returns the substitution for a pattern node, creating and
// binding a fresh one when absent.
func (p *Pool) lookupMake(pn *Node, b *Bindings, univ NodeList, conf float64, made *int) *Node {
	if n2 := b.LookUp(pn); n2 != nil {
		return n2
	}
	word := b.LexSub(pn)
	n2 := p.createNode(pn.Kind(), 0)
	n2.neg = pn.Neg()
	n2.evt = pn.Done()
	n2.blf0 = pn.Default()
	if conf > 0.0 {
		n2.blf = pn.Default()
	}
	if word != "" {
		p.SetLex(n2, word)
	}
	if b.Bind(pn, n2) < 0 {
		p.RemNode(n2)
		return nil
	}
	*made++
	return n2
}

///////////////////////////////////////////////////////////////////////////
//                              Utilities                                //
///////////////////////////////////////////////////////////////////////////

// ParseName splits a "kind-id" nickname ("obj-12" or halo "obj+3").
func ParseName(desc string) (kind string, id int, ok bool) {
	sep := strings.LastIndexAny(desc, "-+")
	if sep <= 0 || sep == len(desc)-1 {
		return "", 0, false
	}
	num, err := strconv.Atoi(desc[sep+1:])
	if err != nil {
		return "", 0, false
	}
	if desc[sep] == '+' {
		num = -num
	}
	return desc[:sep], num, true
}

// FindNode locates a node by nickname, optionally creating it.
func (p *Pool) FindNode(desc string, make_ bool) *Node {
	kind, id, ok := ParseName(desc)
	if !ok {
		return nil
	}
	for n := p.head; n != nil; n = n.next {
		if n.id == id && n.kind == kind {
			return n
		}
	}
	if !make_ {
		return nil
	}
	return p.createNode(kind, id)
}

// Wash converts a node reference to the equivalent in this pool (by id).
func (p *Pool) Wash(ref *Node) *Node {
	if ref == nil || ref.home == p {
		return ref
	}
	for n := p.head; n != nil; n = n.next {
		if n.id == ref.id && n.kind == ref.kind {
			return n
		}
	}
	return nil
}
