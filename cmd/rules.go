package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridmill/gridmill/config"
	"github.com/gridmill/gridmill/core/model"
	"github.com/gridmill/gridmill/core/rules"
	"github.com/gridmill/gridmill/infra/logger"
	"github.com/gridmill/gridmill/pipeline"
)

var rulesDay string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List registered rule templates, built-ins and overlays alike",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

func init() {
	rulesCmd.Flags().StringVar(&rulesDay, "day", "", "print settlement context for a trading day (YYYY-MM-DD)")
	rootCmd.AddCommand(rulesCmd)
}

// runRules loads the same registry a build would see but never touches the
// data root, so it is safe to run from anywhere.
func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg := rules.NewRegistry()
	policy := pipeline.Policy{ConstraintHorizonYear: cfg.Pipeline.ConstraintHorizonYear}
	if err := pipeline.Default(reg, policy); err != nil {
		return err
	}
	vars := map[string]string{
		"data_root":   cfg.Engine.DataRoot,
		"scripts_dir": cfg.Engine.ScriptsDir,
	}
	if _, err := pipeline.LoadDir(reg, cfg.Pipeline.RulesDir, vars, logger.New("manifest")); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rulesDay != "" {
		day, err := model.ParseDay(rulesDay)
		if err != nil {
			return err
		}
		year, week := day.ISOWeek()
		fmt.Fprintf(out, "%s: %d settlement periods, ISO week %04d-W%02d\n\n",
			day, day.SettlementPeriods(), year, week)
	}

	for _, tpl := range reg.Templates() {
		fmt.Fprintf(out, "%s  (%d MB, %s)\n", tpl.Name, tpl.MemoryMB, tpl.Script)
		for _, o := range tpl.Outputs {
			fmt.Fprintf(out, "  out %-12s %s\n", o.Name, o.Pattern)
		}
		for _, in := range tpl.Inputs {
			if in.Pattern != nil {
				fmt.Fprintf(out, "  in  %-12s %s\n", in.Name, in.Pattern)
			} else {
				fmt.Fprintf(out, "  in  %-12s derived via %s\n", in.Name, in.Derive)
			}
		}
	}
	return nil
}
