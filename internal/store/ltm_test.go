package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *LTMStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ltm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFactRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	oid, err := s.AddFact(ctx, FactRec{Kind: "obj"})
	require.NoError(t, err)
	fid, err := s.AddFact(ctx, FactRec{Kind: "ako", Lex: "dog", Belief: 0.9})
	require.NoError(t, err)
	require.NoError(t, s.AddLink(ctx, LinkRec{Fact: fid, Slot: "ako", Target: oid}))

	facts, err := s.Facts(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "dog", facts[1].Lex)
	assert.Equal(t, 0.9, facts[1].Belief)

	links, err := s.Links(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, fid, links[0].Fact)
	assert.Equal(t, oid, links[0].Target)
	assert.Equal(t, "ako", links[0].Slot)
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ltm.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.AddFact(ctx, FactRec{Kind: "obj", Lex: "ball", Belief: 1.0})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	n, err := s2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemove(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	a, _ := s.AddFact(ctx, FactRec{Kind: "obj"})
	b, _ := s.AddFact(ctx, FactRec{Kind: "hq", Lex: "red"})
	require.NoError(t, s.AddLink(ctx, LinkRec{Fact: b, Slot: "hq", Target: a}))

	require.NoError(t, s.Remove(ctx, b))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	links, _ := s.Links(ctx)
	assert.Empty(t, links)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
