package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/born-ml/bornopt/internal/changelog"
)

func runChangelog(args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "usage: bornopt changelog lint DIR | render FILE")
		return exitUsage
	}

	switch args[0] {
	case "lint":
		found, err := changelog.LintDir(args[1])
		if err != nil {
			fmt.Fprintf(stderr, "changelog: %v\n", err)
			return exitError
		}
		if len(found) == 0 {
			fmt.Fprintf(stdout, "%s: ok\n", args[1])
			return exitOK
		}
		names := make([]string, 0, len(found))
		for name := range found {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			for _, issue := range found[name] {
				fmt.Fprintln(stdout, issue)
			}
		}
		return exitError

	case "render":
		// #nosec G304 -- the file is named by the operator on the command line
		f, err := os.Open(args[1])
		if err != nil {
			fmt.Fprintf(stderr, "changelog: %v\n", err)
			return exitError
		}
		defer f.Close()
		rel, err := changelog.Parse(f)
		if err != nil {
			fmt.Fprintf(stderr, "changelog: %s: %v\n", args[1], err)
			return exitError
		}
		if err := changelog.Render(stdout, rel); err != nil {
			fmt.Fprintf(stderr, "changelog: %v\n", err)
			return exitError
		}
		return exitOK

	default:
		fmt.Fprintf(stderr, "unknown changelog command %q\n", args[0])
		return exitUsage
	}
}
