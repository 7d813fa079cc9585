package semnet

// MaxPairs caps the number of key/substitution pairs in one binding set.
const MaxPairs = 20

// Bind result codes (success returns the new pair count).
const (
	BindFull = -3 // no room left
	BindNil  = -2 // bad key
	BindDup  = -1 // duplicate key
)

type bpair struct {
	key  *Node
	sub  *Node
	term bool // this pair also binds a lex variable
}

// Bindings is an ordered key -> substitution list used during matching.
// Expect holds the pair count at which the set is considered complete.
type Bindings struct {
	pair   []bpair
	Expect int
}

// NewBindings creates an empty binding set, optionally copying a reference.
func NewBindings(ref *Bindings) *Bindings {
	b := &Bindings{pair: make([]bpair, 0, MaxPairs)}
	if ref != nil {
		b.Copy(ref)
	}
	return b
}

// Clear drops all pairs (Expect untouched).
func (b *Bindings) Clear() { b.pair = b.pair[:0] }

// Copy makes an exact copy of another set, including order and Expect.
func (b *Bindings) Copy(ref *Bindings) *Bindings {
	b.pair = append(b.pair[:0], ref.pair...)
	b.Expect = ref.Expect
	return b
}

// Complete reports whether the expected number of pairs has been bound.
func (b *Bindings) Complete() bool { return b.Expect > 0 && len(b.pair) >= b.Expect }

// Empty reports whether no pairs are bound.
func (b *Bindings) Empty() bool { return len(b.pair) == 0 }

// NumPairs returns the current pair count.
func (b *Bindings) NumPairs() int { return len(b.pair) }

// AnyHyp reports whether any substitution is hypothetical.
func (b *Bindings) AnyHyp() bool {
	for _, p := range b.pair {
		if p.sub != nil && p.sub.Hyp() {
			return true
		}
	}
	return false
}

// GetKey returns the i'th key (nil when out of range).
func (b *Bindings) GetKey(i int) *Node {
	if i < 0 || i >= len(b.pair) {
		return nil
	}
	return b.pair[i].key
}

// GetSub returns the i'th substitution (nil when out of range).
func (b *Bindings) GetSub(i int) *Node {
	if i < 0 || i >= len(b.pair) {
		return nil
	}
	return b.pair[i].sub
}

// SetSub overwrites the i'th substitution in place.
func (b *Bindings) SetSub(i int, n *Node) {
	if i >= 0 && i < len(b.pair) {
		b.pair[i].sub = n
	}
}

func (b *Bindings) index(probe *Node) int {
	if probe == nil {
		return -1
	}
	for i, p := range b.pair {
		if p.key == probe {
			return i
		}
	}
	return -1
}

// LookUp returns the substitution for a key (nil when unbound).
func (b *Bindings) LookUp(k *Node) *Node {
	if i := b.index(k); i >= 0 {
		return b.pair[i].sub
	}
	return nil
}

// FindKey does the inverse lookup; the first key found wins.
func (b *Bindings) FindKey(subst *Node) *Node {
	if subst == nil {
		return nil
	}
	for _, p := range b.pair {
		if p.sub == subst {
			return p.key
		}
	}
	return nil
}

// InKeys reports whether the node is bound as a key.
func (b *Bindings) InKeys(probe *Node) bool { return b.index(probe) >= 0 }

// InSubs reports whether the node is already used as a substitution.
func (b *Bindings) InSubs(probe *Node) bool {
	if probe == nil {
		return false
	}
	for _, p := range b.pair {
		if p.sub == probe {
			return true
		}
	}
	return false
}

// lookupLex finds the word bound to a lex variable by an earlier pair.
func (b *Bindings) lookupLex(v string) string {
	if v == "" {
		return ""
	}
	for _, p := range b.pair {
		if p.term && p.key.Lex() == v {
			return p.sub.Lex()
		}
	}
	return ""
}

// LexSub returns the lexical term for a node, resolving "***-x" variables
// through earlier bindings.
func (b *Bindings) LexSub(k *Node) string {
	if k == nil {
		return ""
	}
	if !k.LexVar() {
		return k.Lex()
	}
	return b.lookupLex(k.Lex())
}

// LexBin returns the hash bin for a node's (possibly variable) lex term.
func (b *Bindings) LexBin(k *Node) int {
	if !k.LexVar() {
		return k.Code()
	}
	v := k.Lex()
	for _, p := range b.pair {
		if p.term && p.key.Lex() == v {
			return p.sub.Code()
		}
	}
	return 0
}

// LexAgree tells whether the mate's lexical term is compatible with the
// focus term under the current variable bindings:
//
//	focus (bind)     mate    agree
//	""               ""      yes   don't care
//	big              ""      no    not specific
//	***-1 (any)      ""      no    not specific
//	""               small   yes   don't care
//	big              small   no    mismatch
//	***-1 (unbound)  small   yes   add
//	***-1 (big)      small   no    mismatch
//	***-1 (small)    small   yes   match
//	small            small   yes   match
func (b *Bindings) LexAgree(focus, mate *Node) bool {
	flex := focus.Lex()
	mlex := mate.Lex()
	if flex == "" {
		return true
	}
	if mlex == "" {
		return false
	}
	if focus.LexVar() {
		flex = b.lookupLex(flex)
		if flex == "" {
			return true // can add as binding
		}
	}
	return flex == mlex
}

// Bind appends a key-substitution pair, also recording a lex-variable
// binding when the key has an unbound variable term. Returns the new pair
// count, or a negative code (BindDup, BindNil, BindFull) without mutating.
func (b *Bindings) Bind(k *Node, subst *Node) int {
	if k == nil {
		return BindNil
	}
	if b.InKeys(k) {
		return BindDup
	}
	if len(b.pair) >= MaxPairs {
		return BindFull
	}
	term := k.LexVar() && b.lookupLex(k.Lex()) == ""
	b.pair = append(b.pair, bpair{key: k, sub: subst, term: term})
	return len(b.pair)
}

// TrimTo removes the most recently added pairs, keeping only n.
func (b *Bindings) TrimTo(n int) int {
	if n < 0 || n > len(b.pair) {
		return -1
	}
	if len(b.pair) == 0 {
		return 0
	}
	b.pair = b.pair[:n]
	return 1
}

// Pop removes the most recent pair.
func (b *Bindings) Pop() int { return b.TrimTo(len(b.pair) - 1) }

// Rebind replaces (or adds) the substitution for a key, preserving order
// for an existing pair. Returns the pair count, negative on error.
func (b *Bindings) Rebind(k *Node, subst *Node) int {
	if i := b.index(k); i >= 0 {
		b.pair[i].sub = subst
		return len(b.pair)
	}
	return b.Bind(k, subst)
}

// RemFinal removes the most recent pair only if it has the given key.
func (b *Bindings) RemFinal(k *Node) {
	if n := len(b.pair); n > 0 && b.pair[n-1].key == k {
		b.pair = b.pair[:n-1]
	}
}

// KeyMiss counts pattern nodes not present among the keys.
func (b *Bindings) KeyMiss(f NodeList) int {
	miss := f.Length()
	for n := f.NextNode(nil, -1); n != nil; n = f.NextNode(n, -1) {
		if b.InKeys(n) {
			miss--
		}
	}
	return miss
}

// SubstMiss counts pattern nodes not present among the substitutions.
func (b *Bindings) SubstMiss(f NodeList) int {
	miss := f.Length()
	for n := f.NextNode(nil, -1); n != nil; n = f.NextNode(n, -1) {
		if b.InSubs(n) {
			miss--
		}
	}
	return miss
}

// Same tells whether this list is equivalent to the reference: same keys to
// same values (order independent), including lex variable words.
func (b *Bindings) Same(ref *Bindings) bool {
	if len(b.pair) != len(ref.pair) {
		return false
	}
	for _, p := range b.pair {
		if !ref.InKeys(p.key) || ref.LookUp(p.key) != p.sub {
			return false
		}
		if p.term {
			v := p.key.Lex()
			w := ref.lookupLex(v)
			if w == "" || w != b.lookupLex(v) {
				return false
			}
		}
	}
	return true
}

// ReplaceSubs rewrites each substitution through the alternate bindings:
// self: a = b + alt: b = c --> self: a = c.
func (b *Bindings) ReplaceSubs(alt *Bindings) {
	for i := range b.pair {
		if s := alt.LookUp(b.pair[i].sub); s != nil {
			b.pair[i].sub = s
		}
	}
}

// CopyReplace copies ref then chains it through alt.
func (b *Bindings) CopyReplace(ref, alt *Bindings) {
	b.Copy(ref)
	b.ReplaceSubs(alt)
}
