package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"noesis/internal/semnet"
)

// Introspection exports the semantic network as Datalog facts so ad-hoc
// structural queries can run over it:
//
//	node(Nick, Kind, Lex, Neg, Blf).   belief in percent
//	arg(Nick, Slot, Target).
//	halo(Nick, Rule).                  provenance of inferences
//
// A query is one or more Datalog rules; the derived facts of every rule
// head are returned. Used by the CLI "logic" verb and by failure
// explanation tooling.

// ExportFacts renders the current working memory (optionally including the
// halo) as a Datalog program fragment.
func (k *Kernel) ExportFacts(halo bool) string {
	var sb strings.Builder
	sb.WriteString("Decl node(Nick, Kind, Lex, Neg, Blf).\n")
	sb.WriteString("Decl arg(Nick, Slot, Target).\n")
	sb.WriteString("Decl halo(Nick, Rule).\n")

	w := k.Atree.WorkingMemory
	if halo {
		w.MaxBand(3)
	} else {
		w.MaxBand(0)
	}
	for n := w.NextNode(nil, -1); n != nil; n = w.NextNode(n, -1) {
		exportNode(&sb, n)
	}
	return sb.String()
}

func exportNode(sb *strings.Builder, n *semnet.Node) {
	fmt.Fprintf(sb, "node(%q, %q, %q, %d, %d).\n",
		n.Nick(), n.Kind(), n.Lex(), n.Neg(), int(n.Belief()*100))
	for i := 0; i < n.NumArgs(); i++ {
		fmt.Fprintf(sb, "arg(%q, %q, %q).\n", n.Nick(), n.Slot(i), n.Arg(i).Nick())
	}
	if n.Halo() && n.HRule != nil {
		fmt.Fprintf(sb, "halo(%q, %d).\n", n.Nick(), n.HRule.RuleNum())
	}
}

// LogicQuery runs user-supplied Datalog rules against the exported memory
// and returns the derived facts of every rule head, one per line.
func (k *Kernel) LogicQuery(rules string, halo bool) ([]string, error) {
	src := k.ExportFacts(halo) + "\n" + rules + "\n"
	unit, err := parse.Unit(bytes.NewReader([]byte(src)))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze query: %w", err)
	}
	store := factstore.NewSimpleInMemoryStore()
	if _, err := mengine.EvalProgramWithStats(info, store); err != nil {
		return nil, fmt.Errorf("evaluate query: %w", err)
	}

	// derived predicates = heads of the user's rules
	qunit, err := parse.Unit(bytes.NewReader([]byte(rules)))
	if err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	seen := map[string]bool{}
	var out []string
	for _, cl := range qunit.Clauses {
		sym := cl.Head.Predicate
		if seen[sym.Symbol] {
			continue
		}
		seen[sym.Symbol] = true
		err := store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
			out = append(out, a.String())
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
