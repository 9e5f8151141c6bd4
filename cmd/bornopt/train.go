package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/born-ml/bornopt/internal/config"
	blog "github.com/born-ml/bornopt/internal/log"
	"github.com/born-ml/bornopt/internal/metrics"
	"github.com/born-ml/bornopt/internal/optim"
	"github.com/born-ml/bornopt/internal/serialization"
	"github.com/born-ml/bornopt/internal/train"
)

// env holds what every training command builds from the configuration.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	data   *train.Dataset
}

func setupEnv(path string, stderr io.Writer) (*env, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(zerolog.Nop(), os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := blog.New(blog.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: stderr})
	if err != nil {
		return nil, err
	}

	data, err := train.SyntheticRegression(cfg.Data.Samples, cfg.Data.Features, cfg.Data.Noise, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, data: data}, nil
}

func (e *env) setup(optimizer string, hp optim.Hyperparams, logger zerolog.Logger, m *metrics.Training) train.Setup {
	return train.Setup{
		Name:         optimizer,
		Optimizer:    optimizer,
		Hyperparams:  hp,
		Scheduler:    e.cfg.Scheduler,
		Hidden:       e.cfg.Model.Hidden,
		Seed:         e.cfg.Seed,
		Epochs:       e.cfg.Train.Epochs,
		BatchSize:    e.cfg.Train.BatchSize,
		ClipGradNorm: e.cfg.Train.ClipGradNorm,
		Logger:       logger,
		Metrics:      m,
	}
}

func runTrain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML run configuration")
	checkpoint := fs.String("checkpoint", "", "write a .bopt checkpoint after training")
	resume := fs.String("resume", "", "resume from a .bopt checkpoint")
	metricsOut := fs.String("metrics-out", "", "write Prometheus metrics in text format after training")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	e, err := setupEnv(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "train: %v\n", err)
		return exitError
	}
	logger := blog.WithComponent(e.logger, "train")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	run, err := train.NewRun(e.setup(e.cfg.Optimizer.Name, e.cfg.Optimizer.Hyperparams, logger, m), e.data.Features())
	if err != nil {
		fmt.Fprintf(stderr, "train: %v\n", err)
		return exitError
	}

	if *resume != "" {
		ck, err := serialization.ReadFile(*resume)
		if err != nil {
			fmt.Fprintf(stderr, "train: %v\n", err)
			return exitError
		}
		if err := run.Restore(ck); err != nil {
			fmt.Fprintf(stderr, "train: %v\n", err)
			return exitError
		}
		logger.Info().Str("path", *resume).Int("epoch", ck.Header.Epoch).Int64("step", ck.Header.Step).Msg("resumed")
	}

	res, err := run.Fit(ctx, e.data)
	if err != nil {
		fmt.Fprintf(stderr, "train: %v\n", err)
		return exitError
	}
	fmt.Fprintf(stdout, "optimizer=%s epochs=%d steps=%d skipped=%d loss=%.6f->%.6f time=%s\n",
		res.Optimizer, res.Epoch, res.Step, res.Skipped, res.InitialLoss, res.FinalLoss, res.Duration.Round(time.Millisecond))

	if *checkpoint != "" {
		ck, err := run.Checkpoint(res)
		if err != nil {
			fmt.Fprintf(stderr, "train: %v\n", err)
			return exitError
		}
		if err := serialization.WriteFile(*checkpoint, ck); err != nil {
			fmt.Fprintf(stderr, "train: %v\n", err)
			return exitError
		}
		logger.Info().Str("path", *checkpoint).Str("run_id", run.ID()).Msg("checkpoint written")
	}

	if *metricsOut != "" {
		if err := prometheus.WriteToTextfile(*metricsOut, reg); err != nil {
			fmt.Fprintf(stderr, "train: write metrics: %v\n", err)
			return exitError
		}
	}
	return exitOK
}
