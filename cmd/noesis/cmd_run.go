package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"noesis/internal/core"
	"noesis/internal/store"
)

var (
	cycleRate time.Duration
	maxCycles int
	watchKB   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the knowledge base and run cognition cycles",
	RunE:  runEngine,
}

func init() {
	runCmd.Flags().DurationVar(&cycleRate, "rate", 100*time.Millisecond, "cognition cycle period")
	runCmd.Flags().IntVar(&maxCycles, "cycles", 0, "stop after N cycles (0 = run until interrupted)")
	runCmd.Flags().BoolVar(&watchKB, "watch", false, "hot-reload knowledge files on change")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	k := core.NewKernel(cfg)
	if err := k.LoadKB(); err != nil {
		console.Warnf("knowledge load: %v", err)
	}
	console.Infof("engine %s: %d rules, %d operators",
		k.Session()[:8], k.Amem.NumRules(), k.Pmem.NumOperators())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Store.DatabasePath != "" {
		s, err := store.Open(cfg.Store.DatabasePath)
		if err != nil {
			return err
		}
		defer s.Close()
		if cfg.Store.LoadGhosts {
			n, err := k.AttachLTM(ctx, s)
			if err != nil {
				return err
			}
			console.Infof("long-term memory: %d facts", n)
		}
	}

	if watchKB || cfg.KB.Watch {
		kw, err := core.NewKBWatcher(k)
		if err != nil {
			return err
		}
		if err := kw.Start(ctx); err != nil {
			return err
		}
		defer kw.Stop()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	tick := time.NewTicker(cycleRate)
	defer tick.Stop()

	cycles := 0
	for {
		select {
		case <-sig:
			console.Infof("interrupted after %d cycles", cycles)
			return k.SaveKB()
		case <-ctx.Done():
			return k.SaveKB()
		case <-tick.C:
			k.RunCycle()
			cycles++
			if maxCycles > 0 && cycles >= maxCycles {
				console.Infof("finished %d cycles", cycles)
				return k.SaveKB()
			}
		}
	}
}
