package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFacts(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory
	o := newObj(w)
	post(w, o, "hq", "red", 0, 0.9)

	out := k.ExportFacts(false)
	assert.Contains(t, out, "Decl node(")
	assert.Contains(t, out, `"red"`)
	assert.Contains(t, out, o.Nick())
	// the hq arc shows up as an arg fact
	assert.Contains(t, out, `"hq", "`+o.Nick()+`"`)
}

func TestExportIncludesHaloProvenance(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory
	o := newObj(w)
	post(w, o, "ako", "dog", 0, 1.0)
	k.Amem.AddRule(implRule("dog", "animal", 0.9), 0)
	w.ClearHalo()
	k.Amem.RefreshHalo(w)

	out := k.ExportFacts(true)
	assert.Contains(t, out, `"animal"`)
	assert.Contains(t, out, "halo(")
}

func TestLogicQuery(t *testing.T) {
	k := testKernel(t)
	w := k.Atree.WorkingMemory
	o := newObj(w)
	post(w, o, "hq", "red", 0, 0.9)

	facts, err := k.LogicQuery(
		`reds(X) :- node(P, "hq", "red", 0, B), arg(P, "hq", X).`, false)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.True(t, strings.Contains(facts[0], o.Nick()), "got %v", facts)
}

func TestLogicQueryBadSyntax(t *testing.T) {
	k := testKernel(t)
	_, err := k.LogicQuery("this is not datalog", false)
	assert.Error(t, err)
}
