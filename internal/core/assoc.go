package core

import (
	"noesis/internal/logging"
	"noesis/internal/semnet"
)

// AssocMem holds the declarative rules and applies them to working memory
// each cycle to build the halo of expectations.
type AssocMem struct {
	rules *Rule
	nr    int

	// Detail selects one rule id for verbose match tracing.
	Detail int
}

// NewAssocMem creates an empty associative memory.
func NewAssocMem() *AssocMem { return &AssocMem{} }

// NumRules returns the rule count.
func (am *AssocMem) NumRules() int { return am.nr }

// ClearRules drops every rule.
func (am *AssocMem) ClearRules() {
	am.rules = nil
	am.nr = 0
}

// RuleList returns the head of the rule list.
func (am *AssocMem) RuleList() *Rule { return am.rules }

// NextRule walks the list (nil starts at the head).
func (am *AssocMem) NextRule(r *Rule) *Rule {
	if r == nil {
		return am.rules
	}
	return r.next
}

// AddRule appends a rule, rejecting empty results, tautologies, bipartite
// implications, and duplicates. A duplicate arriving from the user (usr > 0)
// becomes a confidence update on the existing rule. Returns 1 if kept,
// negative codes for the various rejections.
func (am *AssocMem) AddRule(r *Rule, usr int) int {
	if r == nil {
		return 0
	}
	if r.Result.Empty() {
		logging.KB("rule rejected: empty result")
		return -1
	}
	if r.Tautology() {
		logging.KB("rule rejected: tautology")
		return -2
	}
	if r.Bipartite() {
		logging.KB("rule rejected: result disconnected from condition")
		return -3
	}
	for prev := am.NextRule(nil); prev != nil; prev = prev.next {
		if r.Identical(prev) {
			if usr > 0 {
				logging.KB("rule %d confidence revised to %4.2f", prev.id, r.conf)
				prev.conf = r.conf
				return 1
			}
			logging.KB("rule rejected: duplicate of rule %d", prev.id)
			return -4
		}
	}

	// add to end of list and assign id
	if am.rules == nil {
		am.rules = r
	} else {
		r0 := am.rules
		for r0.next != nil {
			r0 = r0.next
		}
		r0.next = r
	}
	r.next = nil
	am.nr++
	r.id = am.nr
	return 1
}

// Remove splices a rule out of the list.
func (am *AssocMem) Remove(rem *Rule) {
	if rem == nil {
		return
	}
	var prev *Rule
	for r := am.rules; r != nil; r = r.next {
		if r == rem {
			if prev != nil {
				prev.next = r.next
			} else {
				am.rules = r.next
			}
			am.nr-- // ids of survivors stay stable
			return
		}
		prev = r
	}
}

///////////////////////////////////////////////////////////////////////////
//                            Main functions                             //
///////////////////////////////////////////////////////////////////////////

// RefreshHalo runs every rule over a halo already cleared for this cycle
// (and holding any LTM ghosts); it does not clear the halo itself. Rules
// run in two passes: pass 1
// sees only main memory and LTM ghosts (band 1) and marks the nimbus
// boundary; pass 2 additionally consumes the one-step results so two-step
// chains land in band 3. Returns the total invocation count.
func (am *AssocMem) RefreshHalo(wmem *semnet.WorkingMemory) int {
	tm := logging.StartTimer(logging.CategoryHalo, "RefreshHalo")
	defer tm.Stop()

	mth := wmem.MinBlf()
	cnt, cnt2 := 0, 0

	// PASS 1 - one-step inference on working memory and LTM ghosts
	wmem.MaxBand(1)
	for r := am.NextRule(nil); r != nil; r = r.next {
		cnt += r.AssertMatches(wmem, mth, 0)
	}
	wmem.Horizon() // single vs double rule boundary

	// PASS 2 - two-step inference using the first set of halo assertions
	wmem.MaxBand(2)
	for r := am.NextRule(nil); r != nil; r = r.next {
		cnt2 += r.AssertMatches(wmem, mth, 1)
	}

	logging.Halo("%d + %d rule invocations", cnt, cnt2)
	return cnt + cnt2
}

// Consolidate combines a two-rule inference path into one new rule: the
// union of the step-1 preconditions plus the step-2 non-halo preconditions
// imply the step-2 result, at the weakest confidence along the path.
// Needs raw bindings with halo provenance (before promotion). Returns the
// number of new rules created.
func (am *AssocMem) Consolidate(b *semnet.Bindings) int {
	list := semnet.NewBindings(b)
	nb := b.NumPairs()
	cnt := 0

	var r2, r1 *Rule
	var b2, b1 *semnet.Bindings
	i := -1
	for {
		i = am.nextHalo(&r2, &b2, list, i+1)
		if i >= nb {
			break
		}
		// look for halo facts that triggered this step-2 rule
		list2 := semnet.NewBindings(b2)
		nc := r2.NumPat()
		var mix *Rule
		m2c := semnet.NewBindings(nil)
		j := -1
		for {
			j = am.nextHalo(&r1, &b1, list2, j+1)
			if j >= nc {
				break
			}
			if mix == nil {
				mix = NewRule()
				logging.Learn("consolidate: rule %d <== rule %d", r2.id, r1.id)
			}
			mix.AddCombo(m2c, r1, b1)
		}
		if mix != nil {
			mix.LinkCombo(m2c, r2, b2)
			mix.Prov = "combo"
			if am.AddRule(mix, 0) <= 0 {
				// duplicate or degenerate, quietly dropped
			} else {
				cnt++
			}
		}
	}
	return cnt
}

// nextHalo scans a binding list for the next halo-derived substitution,
// returning (via pointers) the rule and bindings that inferred it and
// blanking later entries with the same provenance.
func (am *AssocMem) nextHalo(r **Rule, b **semnet.Bindings, list *semnet.Bindings, start int) int {
	nb := list.NumPairs()
	for i := start; i < nb; i++ {
		item := list.GetSub(i)
		if item == nil || !item.Halo() || item.HRule == nil {
			continue
		}
		rule, ok := item.HRule.(*Rule)
		if !ok {
			continue
		}
		*r = rule
		*b = item.HBind

		// edit tail to keep only halo items with different provenance
		for j := i + 1; j < nb; j++ {
			if it := list.GetSub(j); it != nil {
				if !it.Halo() || (it.HRule == item.HRule && it.HBind == item.HBind) {
					list.SetSub(j, nil)
				}
			}
		}
		return i
	}
	return nb
}
