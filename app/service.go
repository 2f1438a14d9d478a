// Package app wires a configured gridmill instance: rule registry with
// overlays, durable storage view, collaborator runner, event bus, and metric
// sinks, exposed as a Service the CLI drives.
package app

import (
	"context"
	"fmt"

	"github.com/gridmill/gridmill/config"
	"github.com/gridmill/gridmill/core/engine"
	"github.com/gridmill/gridmill/core/factory"
	"github.com/gridmill/gridmill/core/graph"
	coremetrics "github.com/gridmill/gridmill/core/metrics"
	"github.com/gridmill/gridmill/core/rules"
	"github.com/gridmill/gridmill/infra/fsstore"
	"github.com/gridmill/gridmill/infra/logger"
	"github.com/gridmill/gridmill/infra/metrics"
	"github.com/gridmill/gridmill/infra/runner"
	"github.com/gridmill/gridmill/internal/eventbus"
	"github.com/gridmill/gridmill/pipeline"

	// sink factories register through package init
	_ "github.com/gridmill/gridmill/infra/mqtt"
)

// Service holds the wired components of one gridmill instance.
type Service struct {
	Registry *rules.Registry

	cfg        *config.Config
	store      *fsstore.Store
	runner     engine.Runner
	bus        *eventbus.Bus
	sink       coremetrics.BuildSink
	log        logger.Logger
	promListen string
}

// New builds a Service from the configuration. The caller owns Close.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.NewWithLevel("service", cfg.Logging.Level)

	store, err := fsstore.New(cfg.Engine.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("data root: %w", err)
	}

	reg := rules.NewRegistry()
	policy := pipeline.Policy{ConstraintHorizonYear: cfg.Pipeline.ConstraintHorizonYear}
	if err := pipeline.Default(reg, policy); err != nil {
		return nil, fmt.Errorf("built-in rules: %w", err)
	}
	vars := map[string]string{
		"data_root":   store.Root(),
		"scripts_dir": cfg.Engine.ScriptsDir,
	}
	if _, err := pipeline.LoadDir(reg, cfg.Pipeline.RulesDir, vars, logg); err != nil {
		return nil, fmt.Errorf("rule overlays: %w", err)
	}

	sink, err := coremetrics.NewBuildSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metric sinks: %w", err)
	}

	run, err := runner.New(store.Root(), cfg.Engine.ScriptsDir, cfg.Engine.Interpreter, logger.NewWithLevel("runner", cfg.Logging.Level))
	if err != nil {
		return nil, fmt.Errorf("collaborator runner: %w", err)
	}

	svc := &Service{
		Registry: reg,
		cfg:      cfg,
		store:    store,
		runner:   run,
		bus:      eventbus.New(),
		sink:     sink,
		log:      logg,
	}
	for _, mc := range cfg.Metrics.Sinks {
		if mc.Type != "prometheus" {
			continue
		}
		var pc struct {
			Listen string `json:"listen"`
		}
		if err := factory.Decode(mc.Conf, &pc); err != nil {
			return nil, fmt.Errorf("prometheus sink config: %w", err)
		}
		svc.promListen = pc.Listen
	}

	// The bridge lives until Close; closing the bus drains what is buffered.
	metrics.StartEventCollector(context.Background(), svc.bus, sink)
	return svc, nil
}

// Run expands the targets into a dependency graph and executes it. A non-nil
// report is returned alongside partial-failure errors.
func (s *Service) Run(ctx context.Context, targets []string, dryRun bool) (*engine.Report, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets requested")
	}
	if s.promListen != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promListen, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	b := graph.NewBuilder(s.Registry, s.store, logger.NewWithLevel("graph", s.cfg.Logging.Level))
	g, err := b.Build(targets...)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(s.store, s.runner, s.bus, logger.NewWithLevel("engine", s.cfg.Logging.Level), engine.Options{
		Workers:     s.cfg.Engine.Workers,
		MemoryMB:    s.cfg.Engine.MemoryMB,
		TaskTimeout: s.cfg.Engine.TaskTimeout(),
		DryRun:      dryRun,
	})
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx, g)
}

// Close stops the event bridge.
func (s *Service) Close() error {
	s.bus.Close()
	return nil
}
