package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridmill/gridmill/app"
	"github.com/gridmill/gridmill/config"
	"github.com/gridmill/gridmill/core/engine"
	"github.com/gridmill/gridmill/infra/logger"
	"github.com/gridmill/gridmill/pkg/export"
)

var (
	buildDryRun   bool
	buildJobs     int
	buildMemoryMB int
	buildTimeout  time.Duration
	buildRulesDir string
	buildExport   string
)

var buildCmd = &cobra.Command{
	Use:   "build TARGET...",
	Short: "Build concrete output paths and everything they depend on",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "plan the run without executing collaborators")
	buildCmd.Flags().IntVar(&buildJobs, "jobs", 0, "concurrent collaborator limit, overrides config")
	buildCmd.Flags().IntVar(&buildMemoryMB, "memory-mb", 0, "memory budget in MB, overrides config")
	buildCmd.Flags().DurationVar(&buildTimeout, "timeout", 0, "per-task wall clock, overrides config")
	buildCmd.Flags().StringVar(&buildRulesDir, "rules", "", "rule manifest directory, overrides config")
	buildCmd.Flags().StringVar(&buildExport, "export", "", "write the run report to a file (.csv for per-task rows, JSON otherwise)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if buildJobs > 0 {
		cfg.Engine.Workers = buildJobs
	}
	if buildMemoryMB > 0 {
		cfg.Engine.MemoryMB = buildMemoryMB
	}
	if buildTimeout > 0 {
		cfg.Engine.TaskTimeoutS = int(buildTimeout / time.Second)
	}
	if buildRulesDir != "" {
		cfg.Pipeline.RulesDir = buildRulesDir
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.New("main").Errorf("service close: %v", cerr)
		}
	}()

	rep, err := svc.Run(ctx, args, buildDryRun)
	if rep != nil {
		printReport(cmd, rep)
		if buildExport != "" {
			if xerr := exportReport(buildExport, rep); xerr != nil {
				logger.New("main").Errorf("export report: %v", xerr)
				if err == nil {
					err = xerr
				}
			}
		}
	}
	return err
}

func exportReport(path string, rep *engine.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if strings.HasSuffix(path, ".csv") {
		return export.WriteCSV(f, rep)
	}
	return export.WriteJSON(f, rep)
}

func printReport(cmd *cobra.Command, rep *engine.Report) {
	out := cmd.OutOrStdout()
	if rep.DryRun {
		fmt.Fprintf(out, "plan: %d task(s)\n", len(rep.Planned))
		for _, key := range rep.Planned {
			fmt.Fprintf(out, "  %s\n", key)
		}
	} else {
		fmt.Fprintf(out, "run %s: %d executed, %d cached, %d failed, %d blocked in %s\n",
			rep.RunID, rep.Succeeded, len(rep.Cached), rep.Failed, rep.Blocked,
			rep.Duration.Round(time.Millisecond))
		if rep.Stats.Count > 1 {
			fmt.Fprintf(out, "task seconds: mean %.2f stdev %.2f min %.2f max %.2f\n",
				rep.Stats.MeanSec, rep.Stats.StdevSec, rep.Stats.MinSec, rep.Stats.MaxSec)
		}
	}
	for _, n := range rep.Fallbacks {
		fmt.Fprintf(out, "fallback: rule %s used %s=%s instead of %s\n", n.Rule, n.Wildcard, n.Substituted, n.Requested)
	}
	for _, tr := range rep.Targets {
		switch tr.Status {
		case engine.TargetSucceeded:
			fmt.Fprintf(out, "ok      %s\n", tr.Path)
		case engine.TargetPlanned:
			fmt.Fprintf(out, "planned %s\n", tr.Path)
		case engine.TargetFailed:
			fmt.Fprintf(out, "failed  %s: %s\n", tr.Path, tr.Cause)
		case engine.TargetBlocked:
			fmt.Fprintf(out, "blocked %s by %s\n", tr.Path, tr.Cause)
		}
	}
}
