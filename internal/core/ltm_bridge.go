package core

import (
	"context"

	"noesis/internal/logging"
	"noesis/internal/semnet"
	"noesis/internal/store"
)

// Long-term memory bridge. Stored facts appear each cycle as "ghost" nodes
// in halo band 1, visible to rule matching and FIND (with the ghost flag).
// Promotion of a ghost into working memory makes a plain main memory node;
// the new node is not moored to the ghost or to the stored fact.

// AttachLTM connects a long-term store and caches its contents for the
// per-cycle ghost refresh. Returns the number of facts cached.
func (k *Kernel) AttachLTM(ctx context.Context, s *store.LTMStore) (int, error) {
	facts, err := s.Facts(ctx)
	if err != nil {
		return 0, err
	}
	links, err := s.Links(ctx)
	if err != nil {
		return 0, err
	}
	k.ltm = s
	k.ghostFacts = facts
	k.ghostLinks = links
	logging.Store("cached %d long-term facts (%d links)", len(facts), len(links))
	return len(facts), nil
}

// refreshGhosts re-instantiates the cached long-term facts into the freshly
// cleared halo (band 1) and records the rim boundary. Ghost node ids are
// assigned before any rule runs, so all inferences land past the rim.
func (k *Kernel) refreshGhosts() int {
	w := k.Atree.WorkingMemory
	if len(k.ghostFacts) == 0 {
		w.Border()
		return 0
	}
	h := w.Halo()
	byID := make(map[int64]*semnet.Node, len(k.ghostFacts))
	for _, f := range k.ghostFacts {
		n := h.MakeNode(f.Kind, f.Lex, f.Neg, -f.Belief, f.Done)
		n.LTM = 1
		byID[f.ID] = n
	}
	for _, l := range k.ghostLinks {
		src, dst := byID[l.Fact], byID[l.Target]
		if src != nil && dst != nil {
			src.AddArg(l.Slot, dst)
		}
	}
	w.Border()
	return len(byID)
}

// Memorize persists a working memory node (with its argument closure) to
// the long-term store and refreshes the ghost cache. Returns the stored id.
func (k *Kernel) Memorize(ctx context.Context, n *semnet.Node) (int64, error) {
	if k.ltm == nil {
		return 0, errNoLTM
	}
	saved := map[*semnet.Node]int64{}
	id, err := k.memorize(ctx, n, saved)
	if err != nil {
		return 0, err
	}
	facts, err := k.ltm.Facts(ctx)
	if err != nil {
		return id, err
	}
	links, err := k.ltm.Links(ctx)
	if err != nil {
		return id, err
	}
	k.ghostFacts = facts
	k.ghostLinks = links
	return id, nil
}

func (k *Kernel) memorize(ctx context.Context, n *semnet.Node, saved map[*semnet.Node]int64) (int64, error) {
	if id, ok := saved[n]; ok {
		return id, nil
	}
	id, err := k.ltm.AddFact(ctx, store.FactRec{
		Kind:   n.Kind(),
		Lex:    n.Lex(),
		Neg:    n.Neg(),
		Done:   n.Done(),
		Belief: n.Belief(),
	})
	if err != nil {
		return 0, err
	}
	saved[n] = id
	for i := 0; i < n.NumArgs(); i++ {
		tid, err := k.memorize(ctx, n.Arg(i), saved)
		if err != nil {
			return id, err
		}
		if err := k.ltm.AddLink(ctx, store.LinkRec{Fact: id, Slot: n.Slot(i), Target: tid}); err != nil {
			return id, err
		}
	}
	return id, nil
}
