package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"noesis/internal/core"
)

var logicHalo bool

var logicCmd = &cobra.Command{
	Use:   "logic <datalog-rule>...",
	Short: "Run a Datalog query over working memory",
	Long: `Exports working memory as node/arg/halo facts and evaluates the given
Datalog rules over them, printing every derived fact.

Example:
  noesis logic 'red(X) :- node(P, "hq", "red", 0, B), arg(P, "hq", X).'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		k := core.NewKernel(cfg)
		if err := k.LoadKB(); err != nil {
			console.Warnf("knowledge load: %v", err)
		}
		k.RunCycle() // populate halo so inferences are queryable

		facts, err := k.LogicQuery(strings.Join(args, "\n"), logicHalo)
		if err != nil {
			return err
		}
		if len(facts) == 0 {
			fmt.Println(dimmed.Render("no derived facts"))
			return nil
		}
		for _, f := range facts {
			fmt.Println(f)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine configuration and memory sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		k := core.NewKernel(cfg)
		if err := k.LoadKB(); err != nil {
			console.Warnf("knowledge load: %v", err)
		}
		k.RunCycle()

		w := k.Atree.WorkingMemory
		fmt.Println(headline.Render("noesis " + cfg.Version))
		fmt.Printf("  session    %s\n", k.Session())
		fmt.Printf("  skepticism %4.2f\n", w.MinBlf())
		fmt.Printf("  rules      %d\n", k.Amem.NumRules())
		fmt.Printf("  operators  %d\n", k.Pmem.NumOperators())
		fmt.Printf("  wmem nodes %d\n", w.WmemSize(1))
		fmt.Printf("  halo nodes %d\n", w.HaloSize(1))
		fmt.Printf("  foci       %d (%d active)\n", k.Atree.NumFoci(), k.Atree.Active())
		return nil
	},
}

func init() {
	logicCmd.Flags().BoolVar(&logicHalo, "halo", true, "include halo inferences in the export")
}
