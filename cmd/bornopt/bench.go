package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	blog "github.com/born-ml/bornopt/internal/log"
	"github.com/born-ml/bornopt/internal/metrics"
	"github.com/born-ml/bornopt/internal/train"
)

func runBench(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML run configuration")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	e, err := setupEnv(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "bench: %v\n", err)
		return exitError
	}
	logger := blog.WithComponent(e.logger, "bench")
	m := metrics.New(prometheus.NewRegistry())

	jobs := make([]train.Job, 0, len(e.cfg.Bench.Optimizers))
	for _, name := range e.cfg.Bench.Optimizers {
		name = strings.ToLower(name)
		hp := e.cfg.Bench.Hyperparams[name]
		jobs = append(jobs, train.SetupJob(e.setup(name, hp, logger, m), e.data))
	}

	logger.Info().Int("jobs", len(jobs)).Int("concurrency", e.cfg.Bench.Concurrency).Msg("bench started")
	results, err := train.RunAll(ctx, jobs, e.cfg.Bench.Concurrency)
	if err != nil {
		fmt.Fprintf(stderr, "bench: %v\n", err)
		return exitError
	}

	slices.SortStableFunc(results, func(a, b train.Result) int {
		switch {
		case a.FinalLoss < b.FinalLoss:
			return -1
		case a.FinalLoss > b.FinalLoss:
			return 1
		}
		return 0
	})

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tOPTIMIZER\tINITIAL LOSS\tFINAL LOSS\tSTEPS\tSKIPPED\tTIME")
	for i, res := range results {
		fmt.Fprintf(tw, "%d\t%s\t%.6f\t%.6f\t%d\t%d\t%s\n",
			i+1, res.Name, res.InitialLoss, res.FinalLoss, res.Step, res.Skipped, res.Duration.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(stderr, "bench: %v\n", err)
		return exitError
	}
	return exitOK
}
