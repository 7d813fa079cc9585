package core

import (
	"noesis/internal/logging"
	"noesis/internal/semnet"
)

// ProcMem is the procedural memory: the full collection of operators, with
// reactions to events as well as expansions for directives.
type ProcMem struct {
	ops *Operator
	np  int

	// Band is the deepest halo band operator triggers may consume.
	Band int

	// Detail selects one operator id for verbose match tracing.
	Detail int
}

// NewProcMem creates an empty procedural memory.
func NewProcMem() *ProcMem { return &ProcMem{Band: 3} }

// NumOperators returns the operator count.
func (pm *ProcMem) NumOperators() int { return pm.np }

// ClearOps drops every operator.
func (pm *ProcMem) ClearOps() {
	pm.ops = nil
	pm.np = 0
}

// OpList returns the head of the operator list.
func (pm *ProcMem) OpList() *Operator { return pm.ops }

// NextOp walks the list (nil starts at the head).
func (pm *ProcMem) NextOp(op *Operator) *Operator {
	if op == nil {
		return pm.ops
	}
	return op.next
}

// AddOperator appends an operator and assigns its id. An operator without
// a method chain is rejected (nothing to offer). Returns 1 if kept.
func (pm *ProcMem) AddOperator(op *Operator) int {
	if op == nil {
		return 0
	}
	if op.Meth == nil {
		logging.KB("operator rejected: no method chain")
		return -1
	}
	if pm.ops == nil {
		pm.ops = op
	} else {
		p0 := pm.ops
		for p0.next != nil {
			p0 = p0.next
		}
		p0.next = op
	}
	op.next = nil
	pm.np++
	op.id = pm.np
	return 1
}

// Remove splices an operator out of the list.
func (pm *ProcMem) Remove(rem *Operator) {
	if rem == nil {
		return
	}
	var prev *Operator
	for op := pm.ops; op != nil; op = op.next {
		if op == rem {
			if prev != nil {
				prev.next = op.next
			} else {
				pm.ops = op.next
			}
			pm.np--
			return
		}
		prev = op
	}
}

// FindOps matches every operator of the directive's kind (above the
// preference threshold) against the directive, recording the operator
// responsible for each group of bindings. Triggers may consume two-step
// halo facts. Returns the number of matches found.
func (pm *ProcMem) FindOps(dir *Directive, wmem *semnet.WorkingMemory, pth, mth float64) int {
	if dir == nil {
		return -2
	}
	return pm.FindOpsKind(dir, dir.Kind, wmem, pth, mth)
}

// FindOpsKind matches operators of an explicit kind against the directive,
// regardless of the directive's own kind. A DO directive uses this to run
// its implicit ANTE preparation phase before its own expansion.
func (pm *ProcMem) FindOpsKind(dir *Directive, k DirKind, wmem *semnet.WorkingMemory, pth, mth float64) int {
	if dir == nil {
		return -2
	}
	if k < 0 || k >= DirMax {
		return -1
	}
	if k == DirBind || k == DirEach || k == DirAny {
		k = DirFind
	}
	if k == DirNone {
		k = DirAnte // NONE blocks expand like preparation advice
	}

	mmax := MaxOps
	dir.MC = mmax
	wmem.MaxBand(pm.Band)

	for p := pm.ops; p != nil; p = p.next {
		if p.Kind != k || p.pref < pth {
			continue
		}
		mc0 := dir.MC
		if p.FindMatches(dir, wmem, mth) < 0 {
			break
		}
		for i := mc0 - 1; i >= dir.MC; i-- {
			dir.Op[i] = p
		}
	}
	n := mmax - dir.MC
	if n > 0 {
		logging.ActionDebug("%s[%s]: %d operator matches", dir.KindTag(), dir.KeyTag(), n)
	}
	return n
}
