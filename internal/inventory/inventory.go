// Package inventory lists the synthesis artifacts found under a directory
// tree: per-module summary files, structural netlists and earlier Markdown
// reports. Files are classified by name only; nothing is parsed here.
package inventory

import (
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

// StatsSuffix is the file-name suffix of a per-module synthesis summary.
const StatsSuffix = "_stats.txt"

// SummaryFile is one <module>_stats.txt artifact.
type SummaryFile struct {
	Module string // module name taken from the file name
	Path   string // path including root
}

// Index is the artifact inventory of one synthesis directory.
type Index struct {
	Summaries []SummaryFile
	Netlists  []string
	Reports   []string
}

// UniqueSummaries returns one summary per module, sorted by module name.
// When a module name appears more than once the shallowest path wins, ties
// going to the lexically smaller path; the losers are returned as shadowed.
func (idx Index) UniqueSummaries() (kept, shadowed []SummaryFile) {
	best := make(map[string]SummaryFile, len(idx.Summaries))
	for _, s := range idx.Summaries {
		cur, ok := best[s.Module]
		if !ok {
			best[s.Module] = s
			continue
		}
		if shallower(s.Path, cur.Path) {
			best[s.Module] = s
			shadowed = append(shadowed, cur)
		} else {
			shadowed = append(shadowed, s)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(best)) {
		kept = append(kept, best[name])
	}
	return kept, shadowed
}

func shallower(a, b string) bool {
	da := strings.Count(filepath.ToSlash(a), "/")
	db := strings.Count(filepath.ToSlash(b), "/")
	if da != db {
		return da < db
	}
	return a < b
}

// defaultIgnore is the default set of directory names to skip. Matching is
// against directory base names only.
var defaultIgnore = map[string]bool{
	".git":           true,
	"work":           true,
	"db":             true,
	"incremental_db": true,
}

// netlistExts are the structural netlist extensions.
var netlistExts = map[string]bool{
	".v":  true,
	".vg": true,
	".sv": true,
}

// ModuleName returns the module a summary file describes and whether name is
// a summary file at all.
func ModuleName(name string) (string, bool) {
	base := filepath.Base(name)
	mod, ok := strings.CutSuffix(base, StatsSuffix)
	if !ok || mod == "" {
		return "", false
	}
	return mod, true
}

// IsNetlist reports whether name has a structural netlist extension.
func IsNetlist(name string) bool {
	return netlistExts[strings.ToLower(filepath.Ext(name))]
}

// skipDir reports whether the directory named name is excluded from walks.
func skipDir(name string, extra map[string]bool) bool {
	return defaultIgnore[name] || extra[name]
}

// Ignored reports whether a directory named name is left out of walks,
// either by default or because it is listed in ignorePatterns.
func Ignored(name string, ignorePatterns []string) bool {
	return skipDir(name, ignoreSet(ignorePatterns))
}

func ignoreSet(patterns []string) map[string]bool {
	out := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		out[p] = true
	}
	return out
}

// Build walks root and classifies every artifact. Directories whose base name
// is in the default ignore set or in ignorePatterns are skipped. A missing
// root returns an error wrapping fs.ErrNotExist so callers can treat it as
// absent data.
func Build(root string, ignorePatterns []string) (Index, error) {
	extra := ignoreSet(ignorePatterns)

	var idx Index
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name(), extra) {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		switch {
		case strings.HasSuffix(name, StatsSuffix):
			if mod, ok := ModuleName(name); ok {
				idx.Summaries = append(idx.Summaries, SummaryFile{Module: mod, Path: path})
			}
		case IsNetlist(name):
			idx.Netlists = append(idx.Netlists, path)
		case strings.EqualFold(filepath.Ext(name), ".md"):
			idx.Reports = append(idx.Reports, path)
		}
		return nil
	})
	if err != nil {
		return Index{}, fmt.Errorf("inventory: walk %s: %w", root, err)
	}
	return idx, nil
}

// Dirs returns root and every directory below it that Build would descend
// into, in walk order.
func Dirs(root string, ignorePatterns []string) ([]string, error) {
	extra := ignoreSet(ignorePatterns)
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name(), extra) {
			return fs.SkipDir
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: walk %s: %w", root, err)
	}
	return out, nil
}
