// Command compare runs a contract amendment comparison from the command line.
//
// Usage:
//
//	compare run      --original DIR --amendment DIR --contract-id ID [--format json|markdown|html] [--out FILE]
//	compare validate --file SUMMARY.json
//
// Exit code 0 = success. Exit code 1 = comparison or validation failed. Exit code 2 = usage error.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/claw-gang/amendment-diff/internal/app"
	"github.com/claw-gang/amendment-diff/internal/config"
	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/observability"
	"github.com/claw-gang/amendment-diff/internal/report"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "validate":
		os.Exit(cmdValidate(os.Args[2:]))
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: compare <run|validate> [flags]")
	os.Exit(2)
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	original := fs.String("original", "", "folder with the original contract page images (required)")
	amendment := fs.String("amendment", "", "folder with the amendment page images (required)")
	contractID := fs.String("contract-id", "", "contract id used as the trace session (required)")
	formatFlag := fs.String("format", "json", "output format: json, markdown or html")
	outPath := fs.String("out", "", "write the report to this file instead of stdout")
	_ = fs.Parse(args)

	if *original == "" || *amendment == "" || *contractID == "" {
		fs.Usage()
		return 2
	}
	format, err := report.ParseFormat(*formatFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	logger := observability.InitLoggerTo(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	rep, err := a.Comparer.CompareReport(ctx, *original, *amendment, *contractID)
	if err != nil {
		stage, _ := domain.FailedStage(err)
		logger.Error("comparison failed", "contract_id", *contractID, "stage", stage, "error", err)
		return 1
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Error("create output", "error", err)
			return 1
		}
		defer f.Close()
		out = f
	}
	if err := write(out, format, rep); err != nil {
		logger.Error("write report", "error", err)
		return 1
	}
	return 0
}

func write(w io.Writer, format report.Format, rep report.Report) error {
	switch format {
	case report.FormatMarkdown:
		_, err := io.WriteString(w, report.Markdown(rep))
		return err
	case report.FormatHTML:
		body, err := report.HTML(rep)
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
}

func cmdValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := fs.String("file", "", "summary JSON file, - for stdin (required)")
	_ = fs.Parse(args)

	if *file == "" {
		fs.Usage()
		return 2
	}
	var (
		data []byte
		err  error
	)
	if *file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if _, err := domain.DecodeContractChangeSummary(data); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(os.Stderr, "invalid: %v\n", verr)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	fmt.Println("valid")
	return 0
}
