// Command worker runs the Temporal worker for contract comparisons.
// --queues selects which task queues this process polls (default: all).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"go.temporal.io/sdk/worker"

	"github.com/claw-gang/amendment-diff/internal/app"
	"github.com/claw-gang/amendment-diff/internal/config"
	"github.com/claw-gang/amendment-diff/internal/observability"
	"github.com/claw-gang/amendment-diff/internal/temporal/queues"
	"github.com/claw-gang/amendment-diff/internal/temporal/versioning"
	"github.com/claw-gang/amendment-diff/internal/temporal/workflows"
)

func main() {
	queueFlag := flag.String("queues", os.Getenv("WORKER_QUEUES"), "comma-separated task queues to poll: compare, pages")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(cfg.LogLevel)

	names, err := queues.ParseQueues(*queueFlag)
	if err != nil {
		logger.Error("invalid queues", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a := app.NewBase(cfg, logger)
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	deps, err := a.NewDeps(ctx, "worker")
	if err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	}
	acts := app.NewActivities(cfg, deps)

	c, err := app.DialTemporal(cfg, logger)
	if err != nil {
		logger.Error("unable to create Temporal client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	configs := queues.DefaultConfigs()
	var workers []worker.Worker
	for _, name := range names {
		w := worker.New(c, name, configs[name].Options)
		if name == versioning.QueueComparison {
			w.RegisterWorkflow(workflows.ContractComparisonWorkflow)
		}
		w.RegisterActivity(acts)
		if err := w.Start(); err != nil {
			logger.Error("worker start failed", "queue", name, "error", err)
			os.Exit(1)
		}
		workers = append(workers, w)
		logger.Info("worker started", "queue", name)
	}

	<-worker.InterruptCh()
	for _, w := range workers {
		w.Stop()
	}
	logger.Info("workers stopped")
}
