package changelog

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// Title is the required release note title.
const Title = "Change Log"

// Categories are the accepted section headings, besides Diff.
var Categories = []string{"Feature", "Fix", "Refactor", "Docs", "Update", "Deprecate", "Test", "Bug", "Build"}

// Lint rule names.
const (
	RuleParse            = "parse"
	RuleTitle            = "title"
	RuleCategory         = "category"
	RuleRequiredCategory = "required-category"
	RuleEmptySection     = "empty-section"
	RuleEmptyItem        = "empty-item"
	RuleLink             = "link"
	RuleDiffMissing      = "diff-missing"
	RuleDiffRange        = "diff-range"
	RuleVersionMismatch  = "version-mismatch"
	RuleChain            = "chain"
)

// Issue is a single lint finding.
type Issue struct {
	File    string
	Rule    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.File, i.Rule, i.Message)
}

// Lint checks rel against the release note conventions. name is the file
// name; when it has the form vX.Y.Z.md it must match the diff target.
func Lint(name string, rel *Release) []Issue {
	var issues []Issue
	report := func(rule, format string, args ...any) {
		issues = append(issues, Issue{File: name, Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	if rel.Title != Title {
		report(RuleTitle, "title must be %q, got %q", Title, rel.Title)
	}

	required := false
	for _, section := range rel.Sections {
		if !slices.Contains(Categories, section.Category) {
			report(RuleCategory, "unknown category %q (known: %s)", section.Category, strings.Join(Categories, ", "))
		}
		if section.Category == "Feature" || section.Category == "Fix" {
			required = true
		}
		if len(section.Items) == 0 {
			report(RuleEmptySection, "section %q has no items", section.Category)
		}
		for i, item := range section.Items {
			lintItem(report, fmt.Sprintf("%s item %d", section.Category, i+1), item)
			for j, child := range item.Children {
				lintItem(report, fmt.Sprintf("%s item %d.%d", section.Category, i+1, j+1), child)
			}
		}
	}
	if !required {
		report(RuleRequiredCategory, "release needs a Feature or Fix section")
	}

	if rel.Diff == nil {
		report(RuleDiffMissing, "missing %s section", DiffCategory)
		return issues
	}
	from, to := canonical(rel.Diff.From), canonical(rel.Diff.To)
	switch {
	case !isFullVersion(from) || !isFullVersion(to):
		report(RuleDiffRange, "range %s...%s is not a pair of semantic versions", rel.Diff.From, rel.Diff.To)
	case semver.Compare(from, to) >= 0:
		report(RuleDiffRange, "range %s...%s does not move forward", rel.Diff.From, rel.Diff.To)
	case !strings.HasSuffix(rel.Diff.URL, "compare/"+from+"..."+to):
		report(RuleDiffRange, "URL %s does not end in compare/%s...%s", rel.Diff.URL, from, to)
	}
	if err := checkURL(rel.Diff.URL); err != nil {
		report(RuleLink, "diff: %v", err)
	}

	if version, ok := fileVersion(name); ok && isFullVersion(to) && semver.Compare(version, to) != 0 {
		report(RuleVersionMismatch, "file is %s but diff ends at %s", version, rel.Diff.To)
	}
	return issues
}

func lintItem(report func(rule, format string, args ...any), where string, item Item) {
	if item.Text == "" {
		report(RuleEmptyItem, "%s is empty", where)
	}
	for _, link := range item.Links {
		if err := checkURL(link.URL); err != nil {
			report(RuleLink, "%s: %v", where, err)
		}
	}
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q", raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("URL %q must be absolute http(s)", raw)
	}
	return nil
}

// canonical adds the "v" prefix semver requires.
func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// fileVersion extracts vX.Y.Z from a file name of the form vX.Y.Z.md.
func fileVersion(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, "v") || !strings.HasSuffix(base, ".md") {
		return "", false
	}
	v := strings.TrimSuffix(base, ".md")
	return v, isFullVersion(v)
}

// isFullVersion accepts vMAJOR.MINOR.PATCH (with optional pre-release) and
// rejects the v1 and v1.2 shorthands semver.IsValid allows.
func isFullVersion(v string) bool {
	return semver.IsValid(v) && semver.Canonical(v) == v
}

// LintDir lints every v*.md file in dir and checks that consecutive
// releases chain: each diff starts where the previous one ended.
// The result maps file names to their issues; clean files are omitted.
func LintDir(dir string) (map[string][]Issue, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "v*.md"))
	if err != nil {
		return nil, fmt.Errorf("changelog: %w", err)
	}

	type entry struct {
		name    string
		version string
		rel     *Release
	}
	var entries []entry
	issues := make(map[string][]Issue)
	for _, path := range paths {
		name := filepath.Base(path)
		rel, err := parseFile(path)
		if err != nil {
			var perr *ParseError
			if !errors.As(err, &perr) {
				return nil, err
			}
			issues[name] = append(issues[name], Issue{File: name, Rule: RuleParse, Message: err.Error()})
			continue
		}
		if found := Lint(name, rel); len(found) > 0 {
			issues[name] = append(issues[name], found...)
		}
		if version, ok := fileVersion(name); ok {
			entries = append(entries, entry{name: name, version: version, rel: rel})
		}
	}

	slices.SortFunc(entries, func(a, b entry) int { return semver.Compare(a.version, b.version) })
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		_, prevTo, err1 := prev.rel.Range()
		curFrom, _, err2 := cur.rel.Range()
		if err1 != nil || err2 != nil {
			continue
		}
		if canonical(curFrom) != canonical(prevTo) {
			issues[cur.name] = append(issues[cur.name], Issue{
				File:    cur.name,
				Rule:    RuleChain,
				Message: fmt.Sprintf("diff starts at %s but %s ends at %s", curFrom, prev.name, prevTo),
			})
		}
	}
	return issues, nil
}

func parseFile(path string) (*Release, error) {
	// #nosec G304 -- paths come from a directory listing chosen by the operator
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("changelog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
