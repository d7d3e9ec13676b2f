// Package checker runs the Mangle analyzer over files on disk: path
// expansion, a bounded parallel runner, text and JSON reports, a sqlite run
// history and a debounced file watcher.
package checker

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandPaths resolves command-line patterns to a sorted, deduplicated list
// of files. A plain file is taken as-is. A directory is walked and its files
// kept when their slash-separated path relative to the directory matches an
// include pattern and no exclude pattern. Anything containing glob
// characters is expanded with doublestar; the pattern itself acts as the
// include filter, so only exclusions apply.
func ExpandPaths(patterns, include, exclude []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		if containsGlob(pattern) {
			matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", pattern, err)
			}
			base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
			for _, m := range matches {
				rel, err := filepath.Rel(filepath.FromSlash(base), m)
				if err != nil {
					rel = m
				}
				if !matchAny(exclude, filepath.ToSlash(rel)) {
					add(m)
				}
			}
			continue
		}

		info, err := os.Stat(pattern)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(pattern)
			continue
		}

		files, err := walkDir(pattern, include, exclude)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			add(f)
		}
	}

	sort.Strings(out)
	return out, nil
}

func walkDir(root string, include, exclude []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			// match a child path so "dir/**" prunes the whole directory
			if matchAny(exclude, path.Join(rel, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if matchAny(include, rel) && !matchAny(exclude, rel) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, nil
}

// matchAny reports whether name matches one of patterns. Patterns that do
// not start with "**/" also match at any depth, so "*.mg" behaves like
// "**/*.mg" for files found in subdirectories.
func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
		if !strings.HasPrefix(p, "**/") && !strings.HasPrefix(p, "/") {
			if ok, _ := doublestar.Match("**/"+p, name); ok {
				return true
			}
		}
	}
	return false
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
