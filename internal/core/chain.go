package core

import (
	"time"

	"noesis/internal/logging"
	"noesis/internal/semnet"
)

// Chain is the sequence backbone for activities in an FSM plan. Each step
// holds exactly one payload (a Directive or a Play) and links onward with
// cont/alt/fail edges. Jump labels make these graphs, not trees, so
// traversals carry a cycle guard and deletion cuts loops first.
type Chain struct {
	// calling environment
	core  *Kernel
	level int

	// variables from earlier FINDs
	scoping  *semnet.Bindings
	backstop *Chain
	mt0      time.Time
	spew     int

	// payload is one of two types
	d *Directive
	p *Play

	// serialization and traversal state
	idx  int
	fnum int
	cnum int
	anum int
	req  int

	// run status on last few cycles
	prev int
	done int

	// next step in graph
	Cont *Chain
	Alt  *Chain
	Fail *Chain

	// looping status
	AltFail int
}

// NewChain creates an empty step.
func NewChain() *Chain {
	return &Chain{scoping: semnet.NewBindings(nil), AltFail: 1}
}

// Verdict returns the cached outcome of this step.
func (ch *Chain) Verdict() int { return ch.done }

// Level returns the nesting depth recorded at start.
func (ch *Chain) Level() int { return ch.level }

// Scope returns the accumulated FIND variable bindings.
func (ch *Chain) Scope() *semnet.Bindings { return ch.scoping }

// Core returns the kernel this chain runs under.
func (ch *Chain) Core() *Kernel { return ch.core }

// LastReq returns the traversal cycle marker.
func (ch *Chain) LastReq() int { return ch.req }

// SetReq stamps the traversal cycle marker.
func (ch *Chain) SetReq(cyc int) { ch.req = cyc }

// BindDir attaches a directive payload (first binding wins).
func (ch *Chain) BindDir(dir *Directive) *Chain {
	if ch.p == nil && ch.d == nil {
		ch.d = dir
	}
	return ch
}

// BindPlay attaches a play payload (first binding wins).
func (ch *Chain) BindPlay(play *Play) *Chain {
	if ch.p == nil && ch.d == nil {
		ch.p = play
	}
	return ch
}

// GetDir returns the directive payload (nil for plays).
func (ch *Chain) GetDir() *Directive { return ch.d }

// GetPlay returns the play payload (nil for directives).
func (ch *Chain) GetPlay() *Play { return ch.p }

// Empty reports a step with no payload yet.
func (ch *Chain) Empty() bool { return ch.d == nil && ch.p == nil }

// StepDir checks the payload is a directive of the given kind.
func (ch *Chain) StepDir(kind DirKind) bool { return ch.d != nil && ch.d.Kind == kind }

// Enumerate marks this step as a generator: after success, a retry pulls
// the next binding instead of failing (used for EACH/ANY loops).
func (ch *Chain) Enumerate() { ch.spew = 2 }

// Variations reports a generator step able to produce more bindings.
func (ch *Chain) Variations() bool {
	return ch.Cont == nil && ch.spew >= 2 && ch.backstop != nil
}

// Last returns the final step along cont edges (loop safe).
func (ch *Chain) Last() *Chain {
	seen := map[*Chain]bool{}
	s := ch
	for s.Cont != nil && !seen[s] {
		seen[s] = true
		s = s.Cont
	}
	return s
}

// LastKey returns the key graphlet of the final directive step.
func (ch *Chain) LastKey() *semnet.Graphlet {
	s := ch.Last()
	if s.d == nil {
		return nil
	}
	return &s.d.Key
}

// Append hooks a tail onto the final cont edge, returning the head.
func (ch *Chain) Append(tackon *Chain) *Chain {
	ch.Last().Cont = tackon
	return ch
}

// Involves tells whether any step payload mentions the node (loop safe).
func (ch *Chain) Involves(item *semnet.Node) bool {
	seen := map[*Chain]bool{}
	var walk func(s *Chain) bool
	walk = func(s *Chain) bool {
		if s == nil || seen[s] {
			return false
		}
		seen[s] = true
		if s.d != nil && s.d.Involves(item) {
			return true
		}
		if s.p != nil && s.p.Involves(item) {
			return true
		}
		return walk(s.Cont) || walk(s.Alt) || walk(s.Fail)
	}
	return walk(ch)
}

// MarkSeeds protects all payload nodes during garbage collection.
func (ch *Chain) MarkSeeds(head bool) {
	seen := map[*Chain]bool{}
	var walk func(s *Chain)
	walk = func(s *Chain) {
		if s == nil || seen[s] {
			return
		}
		seen[s] = true
		if s.d != nil {
			s.d.MarkSeeds()
		}
		if s.p != nil {
			s.p.MarkSeeds()
		}
		walk(s.Cont)
		walk(s.Alt)
		walk(s.Fail)
	}
	walk(ch)
}

///////////////////////////////////////////////////////////////////////////
//                               Building                                //
///////////////////////////////////////////////////////////////////////////

// Instantiate deep-copies the chain graph binding pattern nodes through b,
// creating runtime nodes in mem for method elements with no substitution.
// Loops and shared steps are preserved.
func (ch *Chain) Instantiate(mem *semnet.WorkingMemory, b *semnet.Bindings) *Chain {
	seen := map[*Chain]*Chain{}
	return ch.dupSelf(seen, mem, b)
}

func (ch *Chain) dupSelf(seen map[*Chain]*Chain, mem *semnet.WorkingMemory, b *semnet.Bindings) *Chain {
	if ch == nil {
		return nil
	}
	if cp, ok := seen[ch]; ok {
		return cp
	}
	cp := NewChain()
	cp.spew = ch.spew
	cp.AltFail = ch.AltFail
	seen[ch] = cp
	if ch.d != nil {
		cp.d = ch.d.instantiate(mem, b)
	}
	if ch.p != nil {
		cp.p = ch.p.instantiate(seen, mem, b)
	}
	cp.Cont = ch.Cont.dupSelf(seen, mem, b)
	cp.Alt = ch.Alt.dupSelf(seen, mem, b)
	cp.Fail = ch.Fail.dupSelf(seen, mem, b)
	return cp
}

// instantiate builds a runtime copy of a template directive: the key is
// re-created in working memory under the given bindings (missing nodes are
// minted hypothetical), ADD payloads carry over.
func (d *Directive) instantiate(mem *semnet.WorkingMemory, b *semnet.Bindings) *Directive {
	cp := NewDirective(d.Kind)
	if d.Key.NumItems() > 0 {
		mem.Assert(&d.Key, b, 0.0, 0, nil)
		cp.Key.CopyBind(&d.Key, b)
	}
	cp.NewRule = d.NewRule
	cp.NewOper = d.NewOper
	return cp
}

///////////////////////////////////////////////////////////////////////////
//                            Main functions                             //
///////////////////////////////////////////////////////////////////////////

// Start begins execution as a fresh top-level plan.
func (ch *Chain) Start(all *Kernel, lvl int) int {
	ch.core = all
	ch.level = lvl
	ch.mt0 = time.Now()
	ch.scoping.Clear()
	ch.backstop = nil
	return ch.startPayload()
}

// StartFrom begins this step with environment inherited from the prior
// step. A nil prior is a FIND retry: the failed binding is dropped and the
// step restarted in place.
func (ch *Chain) StartFrom(prior *Chain) int {
	if prior == nil {
		ch.scoping.Pop() // remove failed guess
	} else {
		ch.core = prior.core
		ch.level = prior.level
		ch.mt0 = prior.mt0
		ch.scoping.Copy(prior.scoping)
		// a FIND/BIND with a concrete guess becomes the new backstop
		if d0 := prior.GetDir(); d0 != nil && d0.ConcreteFind() {
			ch.backstop = prior
		} else {
			ch.backstop = prior.backstop
		}
	}
	return ch.startPayload()
}

func (ch *Chain) startPayload() int {
	ch.prev = 0
	switch {
	case ch.d != nil:
		ch.done = ch.d.Start(ch)
	case ch.p != nil:
		ch.done = ch.p.Start(ch.core, ch, ch.level)
	default:
		ch.done = -2
	}
	return ch.done
}

// Status advances execution by one cycle, passing activation along the
// correct edge once the payload finishes. A payload failure within the
// dither window unwinds to the most recent FIND backstop for another
// binding. Returns the verdict propagating from the end of the chain.
func (ch *Chain) Status() int {
	first := ch.prev == 0
	ch.prev = ch.done

	// see if activation should be passed to next step
	if ch.done == 1 && ch.Cont != nil {
		if first {
			return ch.Cont.StartFrom(ch)
		}
		return ch.Cont.Status()
	}
	if ch.done == 2 {
		if ch.Alt != nil {
			if first {
				return ch.Alt.StartFrom(ch)
			}
			return ch.Alt.Status()
		}
		if ch.AltFail > 0 {
			return -2
		}
		return 2
	}
	if ch.done == -2 && ch.Fail != nil {
		if first {
			return ch.Fail.StartFrom(ch)
		}
		return ch.Fail.Status()
	}

	// run payload if still active
	if ch.done == 0 {
		if ch.d != nil {
			ch.done = ch.d.Status()
		} else if ch.p != nil {
			ch.done = ch.p.Status()
		}

		// if payload fails, unwind to most recent FIND while fresh
		if ch.done == -2 && ch.backstop != nil && ch.core != nil {
			if time.Since(ch.mt0).Seconds() <= ch.core.Dither() {
				if d0 := ch.backstop.GetDir(); d0 != nil {
					logging.Action("unwind and retry %s[%s]", d0.KindTag(), d0.KeyTag())
				}
				return ch.backstop.StartFrom(nil)
			}
		}
	}

	// a verdict with a matching outgoing edge keeps the chain alive;
	// the edge is taken on the next cycle
	if (ch.done == 1 && ch.Cont != nil) || (ch.done == 2 && ch.Alt != nil) ||
		(ch.done == -2 && ch.Fail != nil) {
		return 0
	}
	if ch.done == 2 && ch.Alt == nil {
		if ch.AltFail > 0 {
			return -2
		}
		return 2
	}
	return ch.done
}

// Terminal tells whether a Start/Status result ends the whole chain (no
// outgoing edge remains for the verdict to follow).
func (ch *Chain) Terminal(res int) bool {
	if res == 0 {
		return false
	}
	if res == 1 && ch.Cont != nil {
		return false
	}
	if res == 2 && ch.Alt != nil {
		return false
	}
	if res == -2 && ch.Fail != nil {
		return false
	}
	return true
}

// Stop halts whatever part of the chain is currently active.
func (ch *Chain) Stop() int {
	if ch.done == 1 && ch.Cont != nil {
		return ch.Cont.Stop()
	}
	if ch.done == 2 && ch.Alt != nil {
		return ch.Alt.Stop()
	}
	if ch.done == -2 && ch.Fail != nil {
		return ch.Fail.Stop()
	}
	if ch.done == 0 {
		if ch.d != nil {
			ch.d.Stop()
		} else if ch.p != nil {
			ch.p.Stop()
		}
		ch.done = -1
	}
	return ch.done
}

// FindActive locates in-progress activities matching the description,
// optionally stopping them. Follows the executed branch only.
func (ch *Chain) FindActive(desc *semnet.Graphlet, halt bool) int {
	if ch.done == 0 {
		if ch.d != nil {
			return ch.d.FindActive(desc, halt)
		}
		if ch.p != nil {
			return ch.p.FindActive(desc, halt)
		}
	}
	if ch.done == 1 && ch.Cont != nil {
		return ch.Cont.FindActive(desc, halt)
	}
	if ch.done == 2 && ch.Alt != nil {
		return ch.Alt.FindActive(desc, halt)
	}
	if ch.done == -2 && ch.Fail != nil {
		return ch.Fail.FindActive(desc, halt)
	}
	return 0
}

// NumGoals counts directive steps reachable in the graph (loop safe).
func (ch *Chain) NumGoals() int {
	seen := map[*Chain]bool{}
	var walk func(s *Chain) int
	walk = func(s *Chain) int {
		if s == nil || seen[s] {
			return 0
		}
		seen[s] = true
		n := 0
		if s.d != nil {
			n = 1
		}
		if s.p != nil {
			n = s.p.NumGoals()
		}
		return n + walk(s.Cont) + walk(s.Alt) + walk(s.Fail)
	}
	return walk(ch)
}
