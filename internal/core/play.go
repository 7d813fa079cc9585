package core

import "noesis/internal/semnet"

// MaxActs caps the activities in one set of a play.
const MaxActs = 10

// Play is a group of coordinated parallel chains:
//
//	required - things to accomplish before continuing (all must succeed)
//	guard    - background activities kept running while working; if any
//	           guard terminates (success or fail) the whole play fails
//
// Guards are conceptually higher priority than any required activity.
type Play struct {
	main  []*Chain
	guard []*Chain

	status  []int
	gstat   []int
	verdict int
}

// NewPlay creates an empty play.
func NewPlay() *Play { return &Play{} }

// AddReq appends a required activity.
func (p *Play) AddReq(act *Chain) int {
	if act == nil || len(p.main) >= MaxActs {
		return 0
	}
	p.main = append(p.main, act)
	p.status = append(p.status, 0)
	return len(p.main)
}

// AddSimul appends a guard activity.
func (p *Play) AddSimul(act *Chain) int {
	if act == nil || len(p.guard) >= MaxActs {
		return 0
	}
	p.guard = append(p.guard, act)
	p.gstat = append(p.gstat, 0)
	return len(p.guard)
}

// NumReq returns the required activity count.
func (p *Play) NumReq() int { return len(p.main) }

// NumSimul returns the guard activity count.
func (p *Play) NumSimul() int { return len(p.guard) }

// ReqN returns the n'th required chain.
func (p *Play) ReqN(n int) *Chain {
	if n < 0 || n >= len(p.main) {
		return nil
	}
	return p.main[n]
}

// SimulN returns the n'th guard chain.
func (p *Play) SimulN(n int) *Chain {
	if n < 0 || n >= len(p.guard) {
		return nil
	}
	return p.guard[n]
}

// ReqStatus returns the verdict of a required activity (-1 bad index).
func (p *Play) ReqStatus(i int) int {
	if i < 0 || i >= len(p.status) {
		return -1
	}
	return p.status[i]
}

// SimulStatus returns the verdict of a guard activity (-1 bad index).
func (p *Play) SimulStatus(i int) int {
	if i < 0 || i >= len(p.gstat) {
		return -1
	}
	return p.gstat[i]
}

// Overall returns the play verdict.
func (p *Play) Overall() int { return p.verdict }

// Involves checks all member chains for a node.
func (p *Play) Involves(item *semnet.Node) bool {
	for _, ch := range p.main {
		if ch.Involves(item) {
			return true
		}
	}
	for _, ch := range p.guard {
		if ch.Involves(item) {
			return true
		}
	}
	return false
}

// MarkSeeds protects all member chains during garbage collection.
func (p *Play) MarkSeeds() {
	for _, ch := range p.main {
		ch.MarkSeeds(true)
	}
	for _, ch := range p.guard {
		ch.MarkSeeds(true)
	}
}

// NumGoals counts directive steps across all member chains.
func (p *Play) NumGoals() int {
	n := 0
	for _, ch := range p.main {
		n += ch.NumGoals()
	}
	for _, ch := range p.guard {
		n += ch.NumGoals()
	}
	return n
}

// instantiate deep-copies the play for method expansion.
func (p *Play) instantiate(seen map[*Chain]*Chain, mem *semnet.WorkingMemory, b *semnet.Bindings) *Play {
	cp := NewPlay()
	for _, ch := range p.main {
		cp.AddReq(ch.dupSelf(seen, mem, b))
	}
	for _, ch := range p.guard {
		cp.AddSimul(ch.dupSelf(seen, mem, b))
	}
	return cp
}

///////////////////////////////////////////////////////////////////////////
//                            Main functions                             //
///////////////////////////////////////////////////////////////////////////

// Start launches all guard then all required activities. The owner step
// supplies the environment. Failure of any launch fails the whole play.
func (p *Play) Start(all *Kernel, owner *Chain, lvl int) int {
	for i, g := range p.guard {
		g.core = all
		g.level = lvl
		if p.gstat[i] = g.Start(all, lvl); p.gstat[i] < 0 {
			return p.failAll()
		}
	}
	for i, m := range p.main {
		if p.status[i] <= 0 {
			if p.status[i] = m.Start(all, lvl); p.status[i] < 0 {
				return p.failAll()
			}
		}
	}
	p.verdict = 0
	return p.verdict
}

// Status runs one cycle of every live activity. Any guard termination
// (success or failure) fails the play, as does any required failure; the
// play succeeds when every required activity has succeeded.
func (p *Play) Status() int {
	for i, g := range p.guard {
		if p.gstat[i] = g.Status(); p.gstat[i] != 0 {
			return p.failAll()
		}
	}
	for i, m := range p.main {
		if p.status[i] == 0 {
			if p.status[i] = m.Status(); p.status[i] < 0 {
				return p.failAll()
			}
		}
	}
	for _, st := range p.status {
		if st == 0 {
			return 0
		}
	}
	p.Stop()
	p.verdict = 1
	return p.verdict
}

// Stop halts every live activity.
func (p *Play) Stop() int {
	for i, g := range p.guard {
		if p.gstat[i] == 0 {
			g.Stop()
		}
	}
	for i, m := range p.main {
		if p.status[i] == 0 {
			m.Stop()
		}
	}
	return p.verdict
}

func (p *Play) failAll() int {
	p.Stop()
	p.verdict = -2
	return p.verdict
}

// FindActive scans all live member chains for a matching activity.
func (p *Play) FindActive(desc *semnet.Graphlet, halt bool) int {
	for _, g := range p.guard {
		if g.FindActive(desc, halt) > 0 {
			return 1
		}
	}
	for _, m := range p.main {
		if m.FindActive(desc, halt) > 0 {
			return 1
		}
	}
	return 0
}
