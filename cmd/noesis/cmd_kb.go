package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"noesis/internal/core"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect knowledge files",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded rules and operators",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		k := core.NewKernel(cfg)
		if err := k.LoadKB(); err != nil {
			return err
		}
		fmt.Println(headline.Render(fmt.Sprintf("rules (%d)", k.Amem.NumRules())))
		for r := k.Amem.NextRule(nil); r != nil; r = k.Amem.NextRule(r) {
			line := fmt.Sprintf("  RULE %-3d conf %4.2f", r.RuleNum(), r.Conf())
			if r.Gist() != "" {
				line += "  " + dimmed.Render(r.Gist())
			}
			fmt.Println(line)
		}
		fmt.Println(headline.Render(fmt.Sprintf("operators (%d)", k.Pmem.NumOperators())))
		for op := k.Pmem.NextOp(nil); op != nil; op = k.Pmem.NextOp(op) {
			line := fmt.Sprintf("  OP %-3d %-5s pref %4.2f", op.OpNum(), op.Kind.Tag(), op.Pref())
			if op.Gist() != "" {
				line += "  " + dimmed.Render(op.Gist())
			}
			fmt.Println(line)
		}
		return nil
	},
}

var kbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse knowledge files and report problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		am := core.NewAssocMem()
		nr, err := am.LoadDir(cfg.KB.Dir)
		if err != nil {
			return err
		}
		pm := core.NewProcMem()
		no, err := pm.LoadDir(cfg.KB.Dir)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d rules, %d operators\n", okMark.Render("ok"), nr, no)
		return nil
	},
}

var kbDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the loaded knowledge back out (canonical form)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		k := core.NewKernel(cfg)
		if err := k.LoadKB(); err != nil {
			return err
		}
		for r := k.Amem.NextRule(nil); r != nil; r = k.Amem.NextRule(r) {
			r.Save(os.Stdout, 2)
			fmt.Println()
		}
		for op := k.Pmem.NextOp(nil); op != nil; op = k.Pmem.NextOp(op) {
			op.Save(os.Stdout, 2)
			fmt.Println()
		}
		return nil
	},
}

func init() {
	kbCmd.AddCommand(kbListCmd)
	kbCmd.AddCommand(kbCheckCmd)
	kbCmd.AddCommand(kbDumpCmd)
}
