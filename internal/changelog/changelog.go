// Package changelog parses, renders and lints release notes.
//
// A release note is a Markdown file of the form
//
//	## Change Log
//
//	### Feature
//
//	* Implement `PAdam` optimizer
//	    * [Closing the Generalization Gap ...](https://arxiv.org/abs/1806.06763)
//
//	### Diff
//
//	[v0.1.0...v0.2.0](https://github.com/born-ml/bornopt/compare/v0.1.0...v0.2.0)
package changelog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// DiffCategory is the heading of the section holding the version range.
const DiffCategory = "Diff"

// ErrNoDiff is returned by Release.Range when the release has no Diff section.
var ErrNoDiff = errors.New("changelog: no diff section")

// Release is one parsed release note.
type Release struct {
	Title    string
	Sections []Section
	Diff     *Diff
}

// Section is a "### Category" block of items.
type Section struct {
	Category string
	Items    []Item
}

// Item is a bullet. Links holds the Markdown links found in Text.
type Item struct {
	Text     string
	Links    []Link
	Children []Item
}

// Link is a Markdown link.
type Link struct {
	Text string
	URL  string
}

// Diff is the compared version range of a release.
type Diff struct {
	From string
	To   string
	URL  string
}

// ParseError reports malformed input.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("changelog: line %d: %s", e.Line, e.Msg)
}

var (
	linkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	diffPattern = regexp.MustCompile(`^\[([^\]]+?)\.\.\.([^\]]+)\]\(([^)\s]+)\)$`)
)

// Range returns the version range of the release.
func (r *Release) Range() (from, to string, err error) {
	if r.Diff == nil {
		return "", "", ErrNoDiff
	}
	return r.Diff.From, r.Diff.To, nil
}

// Section returns the section with the given category, or nil.
func (r *Release) Section(category string) *Section {
	for i := range r.Sections {
		if r.Sections[i].Category == category {
			return &r.Sections[i]
		}
	}
	return nil
}

// Parse reads a release note.
func Parse(r io.Reader) (*Release, error) {
	rel := &Release{}
	var (
		current *Section
		inDiff  bool
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "### "):
			category := strings.TrimSpace(line[4:])
			if category == DiffCategory {
				if inDiff || rel.Diff != nil {
					return nil, &ParseError{Line: lineNo, Msg: "duplicate Diff section"}
				}
				inDiff, current = true, nil
				continue
			}
			inDiff = false
			rel.Sections = append(rel.Sections, Section{Category: category})
			current = &rel.Sections[len(rel.Sections)-1]

		case strings.HasPrefix(line, "## "):
			if rel.Title != "" {
				return nil, &ParseError{Line: lineNo, Msg: "duplicate title"}
			}
			if len(rel.Sections) > 0 || inDiff {
				return nil, &ParseError{Line: lineNo, Msg: "title must come first"}
			}
			rel.Title = strings.TrimSpace(line[3:])

		case inDiff:
			if rel.Diff != nil {
				return nil, &ParseError{Line: lineNo, Msg: "unexpected line after diff link"}
			}
			m := diffPattern.FindStringSubmatch(trimmed)
			if m == nil {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("diff must be [FROM...TO](URL), got %q", trimmed)}
			}
			rel.Diff = &Diff{From: m[1], To: m[2], URL: m[3]}

		case isBullet(trimmed):
			if current == nil {
				return nil, &ParseError{Line: lineNo, Msg: "item outside of a section"}
			}
			item := newItem(trimmed[1:])
			if line[0] != ' ' && line[0] != '\t' {
				current.Items = append(current.Items, item)
				continue
			}
			if len(current.Items) == 0 {
				return nil, &ParseError{Line: lineNo, Msg: "nested item without a parent"}
			}
			parent := &current.Items[len(current.Items)-1]
			parent.Children = append(parent.Children, item)

		default:
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("unexpected line %q", trimmed)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("changelog: read: %w", err)
	}
	if inDiff && rel.Diff == nil {
		return nil, &ParseError{Line: lineNo, Msg: "empty Diff section"}
	}
	return rel, nil
}

func isBullet(s string) bool {
	return s == "*" || s == "-" || strings.HasPrefix(s, "* ") || strings.HasPrefix(s, "- ")
}

func newItem(text string) Item {
	text = strings.TrimSpace(text)
	item := Item{Text: text}
	for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
		item.Links = append(item.Links, Link{Text: m[1], URL: m[2]})
	}
	return item
}

// Render writes rel in canonical form. Parse(Render(rel)) yields rel.
// A release without a title is rendered without the title line.
func Render(w io.Writer, rel *Release) error {
	bw := bufio.NewWriter(w)
	sep := ""
	if rel.Title != "" {
		fmt.Fprintf(bw, "## %s\n", rel.Title)
		sep = "\n"
	}
	for _, section := range rel.Sections {
		fmt.Fprintf(bw, "%s### %s\n\n", sep, section.Category)
		sep = "\n"
		for _, item := range section.Items {
			fmt.Fprintf(bw, "* %s\n", item.Text)
			for _, child := range item.Children {
				fmt.Fprintf(bw, "    * %s\n", child.Text)
			}
		}
	}
	if rel.Diff != nil {
		fmt.Fprintf(bw, "%s### %s\n\n[%s...%s](%s)\n", sep, DiffCategory, rel.Diff.From, rel.Diff.To, rel.Diff.URL)
	}
	return bw.Flush()
}
