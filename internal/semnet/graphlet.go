package semnet

// MaxItems caps the nodes a graphlet can reference.
const MaxItems = 50

// Graphlet is an ordered, deduplicated set of node references used as a
// pattern or as an accumulator while building a structure. The first element
// is the "main" node. A graphlet is just a grouping, never an owner.
type Graphlet struct {
	desc []*Node
}

// Clear removes all items.
func (g *Graphlet) Clear() { g.desc = g.desc[:0] }

// Init resets the graphlet to hold a single item.
func (g *Graphlet) Init(item *Node) {
	g.Clear()
	g.AddItem(item)
}

// Moot reports whether any element has lost its belief (invalidated key).
func (g *Graphlet) Moot() bool {
	for _, n := range g.desc {
		if n.Belief() <= 0.0 {
			return true
		}
	}
	return false
}

// Full reports whether capacity is exhausted.
func (g *Graphlet) Full() bool { return len(g.desc) >= MaxItems }

// Empty reports whether nothing is referenced.
func (g *Graphlet) Empty() bool { return len(g.desc) == 0 }

// NumItems returns the element count.
func (g *Graphlet) NumItems() int { return len(g.desc) }

// Item returns the i'th element (nil when out of range).
func (g *Graphlet) Item(i int) *Node {
	if i < 0 || i >= len(g.desc) {
		return nil
	}
	return g.desc[i]
}

// Main returns the distinguished first element.
func (g *Graphlet) Main() *Node { return g.Item(0) }

// MainNick returns the main node's nickname ("" when empty).
func (g *Graphlet) MainNick() string {
	if len(g.desc) == 0 {
		return ""
	}
	return g.Main().Nick()
}

// MainTag returns the main node's tag ("" when empty).
func (g *Graphlet) MainTag() string {
	if len(g.desc) == 0 {
		return ""
	}
	return g.Main().Tag()
}

// MainNeg returns the main node's polarity.
func (g *Graphlet) MainNeg() int {
	if len(g.desc) == 0 {
		return 0
	}
	return g.Main().Neg()
}

// MainAct returns the main node when it is an action-like predicate.
func (g *Graphlet) MainAct() *Node {
	m := g.Main()
	if m == nil || m.ObjNode() {
		return nil
	}
	return m
}

///////////////////////////////////////////////////////////////////////////
//                       NodeList implementation                         //
///////////////////////////////////////////////////////////////////////////

// NextNode returns the element after prev in graphlet order.
func (g *Graphlet) NextNode(prev *Node, bin int) *Node {
	if prev == nil {
		return g.Item(0)
	}
	for i, n := range g.desc {
		if n == prev {
			return g.Item(i + 1)
		}
	}
	return nil
}

// Length implements NodeList.
func (g *Graphlet) Length() int { return len(g.desc) }

// InList implements NodeList.
func (g *Graphlet) InList(n *Node) bool { return g.InDesc(n) }

// Prohibited implements NodeList.
func (g *Graphlet) Prohibited(n *Node) bool { return n == nil }

// NumBins implements NodeList (graphlets are too small to bin).
func (g *Graphlet) NumBins() int { return 1 }

// SameBin implements NodeList.
func (g *Graphlet) SameBin(focus *Node, b *Bindings) int { return 1 }

///////////////////////////////////////////////////////////////////////////
//                            Configuration                              //
///////////////////////////////////////////////////////////////////////////

// Copy replaces contents with those of the reference.
func (g *Graphlet) Copy(ref *Graphlet) {
	g.desc = append(g.desc[:0], ref.desc...)
}

// Append adds all items of the reference (deduplicated).
func (g *Graphlet) Append(ref *Graphlet) {
	for _, n := range ref.desc {
		g.AddItem(n)
	}
}

// CopyBind fills this graphlet with the substitutions of the reference's
// items under sub. Returns false if any item was unbound.
func (g *Graphlet) CopyBind(ref *Graphlet, sub *Bindings) bool {
	ok := true
	g.desc = g.desc[:0]
	for _, n := range ref.desc {
		alt := sub.LookUp(n)
		if alt == nil {
			ok = false
			continue
		}
		g.desc = append(g.desc, alt)
	}
	return ok
}

// CutTail moves elements from start onward into tail.
func (g *Graphlet) CutTail(tail *Graphlet, start int) {
	if start < 0 || start > len(g.desc) {
		return
	}
	tail.desc = append(tail.desc[:0], g.desc[start:]...)
	g.desc = g.desc[:start]
}

// AddItem appends a node reference; idempotent on duplicates.
// Returns the node, or nil when the graphlet is full.
func (g *Graphlet) AddItem(item *Node) *Node {
	if item == nil || g.InDesc(item) {
		return item
	}
	if len(g.desc) >= MaxItems {
		return nil
	}
	g.desc = append(g.desc, item)
	return item
}

// RemItem removes the i'th element.
func (g *Graphlet) RemItem(i int) int {
	if i < 0 || i >= len(g.desc) {
		return -1
	}
	g.desc = append(g.desc[:i], g.desc[i+1:]...)
	return 1
}

// RemNode removes a particular node reference.
func (g *Graphlet) RemNode(item *Node) int {
	for i, n := range g.desc {
		if n == item {
			return g.RemItem(i)
		}
	}
	return 0
}

// RemAll removes every node that also appears in the reference.
func (g *Graphlet) RemAll(ref *Graphlet) int {
	cnt := 0
	for _, n := range ref.desc {
		cnt += g.RemNode(n)
	}
	return cnt
}

// Pop drops the most recently added elements.
func (g *Graphlet) Pop(cnt int) {
	keep := len(g.desc) - cnt
	if keep < 0 {
		keep = 0
	}
	g.desc = g.desc[:keep]
}

// TrimTo keeps only the first cnt elements.
func (g *Graphlet) TrimTo(cnt int) {
	if cnt < 0 {
		cnt = 0
	}
	if cnt < len(g.desc) {
		g.desc = g.desc[:cnt]
	}
}

// SetMain moves (or adds) the given node to the front.
func (g *Graphlet) SetMain(main *Node) *Node {
	if main == nil {
		return nil
	}
	g.RemNode(main)
	if len(g.desc) >= MaxItems {
		return nil
	}
	g.desc = append([]*Node{main}, g.desc...)
	return main
}

// ReplaceMain swaps out the first element.
func (g *Graphlet) ReplaceMain(main *Node) int {
	if main == nil || len(g.desc) == 0 {
		return 0
	}
	g.desc[0] = main
	return 1
}

// MainLast promotes the most recently added element to main.
func (g *Graphlet) MainLast() *Node {
	return g.SetMain(g.Item(len(g.desc) - 1))
}

// MainProp promotes a property to main when the current main is a naked
// object, so the description leads with a predicate.
func (g *Graphlet) MainProp() *Node {
	main := g.Main()
	if main == nil {
		return nil
	}
	if !main.VerbTag() && main.NumArgs() <= 0 {
		for _, n := range g.desc {
			if n.VerbTag() || n.NumArgs() > 0 {
				return g.SetMain(n)
			}
		}
	}
	return main
}

// InDesc reports membership.
func (g *Graphlet) InDesc(item *Node) bool {
	for _, n := range g.desc {
		if n == item {
			return true
		}
	}
	return false
}

// ArgOut reports whether the item has an argument outside this graphlet.
func (g *Graphlet) ArgOut(item *Node) bool {
	if item == nil {
		return false
	}
	for i := 0; i < item.NumArgs(); i++ {
		if !g.InDesc(item.Arg(i)) {
			return true
		}
	}
	return false
}

// PropOut reports whether the item has a property outside this graphlet.
func (g *Graphlet) PropOut(item *Node) bool {
	if item == nil {
		return false
	}
	for i := 0; i < item.NumProps(); i++ {
		if !g.InDesc(item.Prop(i)) {
			return true
		}
	}
	return false
}

// ActualizeAll promotes pending beliefs for every element.
func (g *Graphlet) ActualizeAll(ver int) int {
	chg := 0
	for _, n := range g.desc {
		chg += n.Actualize(ver)
	}
	return chg
}

// MinBelief returns the smallest default belief among elements.
func (g *Graphlet) MinBelief() float64 {
	if len(g.desc) == 0 {
		return 0.0
	}
	lo := g.desc[0].Default()
	for _, n := range g.desc[1:] {
		if b := n.Default(); b < lo {
			lo = b
		}
	}
	return lo
}

// ForceBelief sets the default belief of every element.
func (g *Graphlet) ForceBelief(blf float64) {
	for _, n := range g.desc {
		n.SetDefault(blf)
	}
}

// MarkSeeds flags every element for retention during garbage collection.
func (g *Graphlet) MarkSeeds() {
	for _, n := range g.desc {
		n.SetKeep(1)
	}
}
