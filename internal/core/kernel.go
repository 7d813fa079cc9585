package core

import (
	"fmt"

	"github.com/google/uuid"

	"noesis/internal/config"
	"noesis/internal/logging"
	"noesis/internal/store"
)

// GroundFn is a grounding kernel entry: it advances one FCN directive and
// returns 0 while working, 1 on success, -2 on failure. Adapters read
// arguments off the directive key and post results through the tree.
type GroundFn func(d *Directive) int

// Kernel is the cognition engine: working memory under an attention tree,
// associative and procedural memories, grounding adapters, and the cycle
// that ties them together. All mutation happens on the cycle goroutine.
type Kernel struct {
	Atree *ActionTree
	Amem  *AssocMem
	Pmem  *ProcMem
	Mood  MoodSink

	cfg     *config.Config
	session string
	cycle   int

	ground map[string]GroundFn
	polls  []func(*ActionTree)

	// long-term memory ghosts
	ltm        *store.LTMStore
	ghostFacts []store.FactRec
	ghostLinks []store.LinkRec
}

// errNoLTM flags Memorize without an attached store.
var errNoLTM = fmt.Errorf("no long-term store attached")

// NewKernel assembles an engine from configuration.
func NewKernel(cfg *config.Config) *Kernel {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	k := &Kernel{
		Atree:   NewActionTree(cfg.Memory.RobotName, cfg.Learning),
		Amem:    NewAssocMem(),
		Pmem:    NewProcMem(),
		Mood:    NullMood{},
		cfg:     cfg,
		session: uuid.NewString(),
		ground:  make(map[string]GroundFn),
	}
	k.Atree.core = k
	k.Atree.SetMinBlf(cfg.Memory.MinBelief)
	k.Pmem.Band = cfg.Memory.HaloBands
	logging.Boot("kernel session %s", k.session)
	return k
}

// Session returns the unique id of this engine instance.
func (k *Kernel) Session() string { return k.session }

// Config exposes the active configuration.
func (k *Kernel) Config() *config.Config { return k.cfg }

// Cycle returns the number of completed cognition cycles.
func (k *Kernel) Cycle() int { return k.cycle }

// Dither returns the FIND retry window in seconds.
func (k *Kernel) Dither() float64 { return k.cfg.Learning.DitherSecs }

// MinPref returns the operator preference gate.
func (k *Kernel) MinPref() float64 { return k.Atree.MinPref() }

// Wild returns the operator choice randomness.
func (k *Kernel) Wild() float64 { return k.Atree.Wildness() }

// BindGround registers a grounding kernel under a function name.
func (k *Kernel) BindGround(name string, fn GroundFn) {
	k.ground[name] = fn
}

// Ground looks up a grounding kernel (nil when unbound).
func (k *Kernel) Ground(name string) GroundFn { return k.ground[name] }

// AddPoll registers a sensor adapter polled at the top of every cycle.
// Polls post NOTEs through the grounding API.
func (k *Kernel) AddPoll(poll func(*ActionTree)) {
	k.polls = append(k.polls, poll)
}

// RunCycle performs one full cognition cycle:
//
//	1. poll sensor adapters so fresh facts become NOTE foci
//	2. update the attention tree (prune, optionally GC)
//	3. rebuild the halo of rule inferences
//	4. advance each eligible focus by one step, newest first
//
// Actuator arbitration happens inside the grounding adapters via bids.
// Returns the number of foci serviced.
func (k *Kernel) RunCycle() int {
	tm := logging.StartTimer(logging.CategoryKernel, "cycle")
	defer tm.Stop()
	k.cycle++

	for _, poll := range k.polls {
		poll(k.Atree)
	}

	gc := k.cfg.Memory.GCEvery > 0 && k.cycle%k.cfg.Memory.GCEvery == 0
	k.Atree.Update(gc)

	k.Atree.ClearHalo()
	k.refreshGhosts()
	k.Amem.RefreshHalo(k.Atree.WorkingMemory)

	n := k.Atree.ServiceCycle()
	logging.KernelDebug("cycle %d serviced %d foci", k.cycle, n)
	return n
}

// ClrFoci drops all attention (state transition).
func (k *Kernel) ClrFoci() { k.Atree.ClrFoci() }

// ClrTrans clears any pending file-load translations.
func (k *Kernel) ClrTrans() { k.Atree.ClrTrans() }

// LoadKB reads all rule and operator files under the configured directory.
func (k *Kernel) LoadKB() error {
	dir := k.cfg.KB.Dir
	nr, err := k.Amem.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	no, err := k.Pmem.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("load operators: %w", err)
	}
	logging.KB("loaded %d rules, %d operators from %s", nr, no, dir)
	return nil
}

// SaveKB writes accumulated knowledge to the configured base file stem.
func (k *Kernel) SaveKB() error {
	base := k.cfg.KB.Base
	if _, err := k.Amem.SaveFile(base+".rules", 0); err != nil {
		return err
	}
	if _, err := k.Pmem.SaveFile(base+".ops", 0); err != nil {
		return err
	}
	if _, err := k.Amem.Alterations(base + ".conf"); err != nil {
		return err
	}
	if _, err := k.Pmem.Alterations(base + ".pref"); err != nil {
		return err
	}
	return nil
}
