// shadow-compare checks that comparison runs are repeatable. Given two saved
// run outputs it diffs their summaries; given folders it reruns the
// comparison --runs times and diffs every run against the first.
// Exit code 0 = all runs match. Exit code 1 = divergence detected. Exit code 2 = error.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/claw-gang/amendment-diff/internal/app"
	"github.com/claw-gang/amendment-diff/internal/config"
	"github.com/claw-gang/amendment-diff/internal/observability"
	"github.com/claw-gang/amendment-diff/internal/shadow"
)

func main() {
	original := flag.String("original", "", "original contract folder (rerun mode)")
	amendment := flag.String("amendment", "", "amendment folder (rerun mode)")
	contractID := flag.String("contract-id", "shadow-run", "contract id for rerun mode")
	runs := flag.Int("runs", 2, "number of runs in rerun mode")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: shadow-compare A.json B.json")
		fmt.Fprintln(os.Stderr, "       shadow-compare --original DIR --amendment DIR [--runs N]")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var results []*shadow.ComparisonResult
	switch {
	case flag.NArg() == 2:
		a, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			logger.Error("read run a", "error", err)
			os.Exit(2)
		}
		b, err := os.ReadFile(flag.Arg(1))
		if err != nil {
			logger.Error("read run b", "error", err)
			os.Exit(2)
		}
		result, err := shadow.Compare(a, b)
		if err != nil {
			logger.Error("comparison failed", "error", err)
			os.Exit(2)
		}
		results = append(results, result)

	case *original != "" && *amendment != "":
		cfg, err := config.Load()
		if err != nil {
			logger.Error("config error", "error", err)
			os.Exit(2)
		}
		logger = observability.InitLoggerTo(os.Stderr, cfg.LogLevel)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			logger.Error("setup failed", "error", err)
			os.Exit(2)
		}
		defer a.Close(context.Background())

		logger.Info("rerunning comparison", "runs", *runs, "contract_id", *contractID)
		results, err = shadow.Rerun(ctx, a.Runner, *original, *amendment, *contractID, *runs)
		if err != nil {
			logger.Error("rerun failed", "error", err)
			os.Exit(2)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		logger.Error("marshal result failed", "error", err)
		os.Exit(2)
	}
	fmt.Println(string(out))

	for _, r := range results {
		if !r.AllMatch {
			logger.Warn("divergence detected", "summary", r.Summary)
			os.Exit(1)
		}
	}
	logger.Info("all runs match")
}
