// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package changelog parses, renders and lints Markdown release notes.
package changelog

import (
	"io"

	"github.com/born-ml/bornopt/internal/changelog"
)

// Release note structure.
type (
	Release    = changelog.Release
	Section    = changelog.Section
	Item       = changelog.Item
	Link       = changelog.Link
	Diff       = changelog.Diff
	Issue      = changelog.Issue
	ParseError = changelog.ParseError
)

// ErrNoDiff is returned by Release.Range when there is no Diff section.
var ErrNoDiff = changelog.ErrNoDiff

// Parse reads a release note.
func Parse(r io.Reader) (*Release, error) {
	return changelog.Parse(r)
}

// Render writes rel in canonical form.
func Render(w io.Writer, rel *Release) error {
	return changelog.Render(w, rel)
}

// Lint checks rel; name is its file name.
func Lint(name string, rel *Release) []Issue {
	return changelog.Lint(name, rel)
}

// LintDir lints every v*.md file in dir and checks that they chain.
func LintDir(dir string) (map[string][]Issue, error) {
	return changelog.LintDir(dir)
}
