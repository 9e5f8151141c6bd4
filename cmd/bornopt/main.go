// bornopt trains small models with the bornopt optimizers and lints
// release notes.
//
// Usage:
//
//	bornopt version
//	bornopt list
//	bornopt train [-config run.yaml] [-checkpoint out.bopt] [-resume in.bopt] [-metrics-out run.prom]
//	bornopt bench [-config run.yaml]
//	bornopt changelog lint DIR
//	bornopt changelog render FILE
//
// Exit codes:
//   - 0: success
//   - 1: runtime error or lint issues
//   - 2: usage error
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/born-ml/bornopt/internal/lrscheduler"
	"github.com/born-ml/bornopt/internal/optim"
	"github.com/born-ml/bornopt/internal/train"
)

var version = "v0.2.0"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	train.Generator = "bornopt " + version
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "bornopt %s\n", version)
		return exitOK
	case "list":
		return runList(stdout)
	case "train":
		return runTrain(ctx, args[1:], stdout, stderr)
	case "bench":
		return runBench(ctx, args[1:], stdout, stderr)
	case "changelog":
		return runChangelog(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: bornopt <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version            Show version")
	fmt.Fprintln(w, "  list               List optimizers and schedulers")
	fmt.Fprintln(w, "  train              Train a model on synthetic regression data")
	fmt.Fprintln(w, "  bench              Compare optimizers concurrently")
	fmt.Fprintln(w, "  changelog lint     Lint a directory of release notes")
	fmt.Fprintln(w, "  changelog render   Print a release note in canonical form")
}

func runList(stdout io.Writer) int {
	fmt.Fprintln(stdout, "Optimizers:")
	for _, name := range optim.Names() {
		if optim.IsFused(name) {
			fmt.Fprintf(stdout, "  %s (fused)\n", name)
			continue
		}
		fmt.Fprintf(stdout, "  %s\n", name)
	}
	fmt.Fprintln(stdout, "Schedulers:")
	fmt.Fprintf(stdout, "  %s\n", strings.Join(lrscheduler.Names(), "\n  "))
	return exitOK
}
