package normalize

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sourceplane/apexflow/internal/model"
)

// Glob expands every pattern, makes the matches absolute and returns them
// concatenated, sorted and without duplicates. Patterns matching nothing
// contribute nothing.
func Glob(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	matches := make([]string, 0)

	for _, pattern := range patterns {
		found, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate glob pattern %s: %w", pattern, err)
		}
		for _, m := range found {
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", m, err)
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			matches = append(matches, abs)
		}
	}

	sort.Strings(matches)
	return matches, nil
}

// WorkDirs expands work-directory patterns. Only directories are kept; an
// empty result is a ConfigurationError.
func WorkDirs(patterns []string) ([]string, error) {
	matches, err := Glob(patterns)
	if err != nil {
		return nil, model.Configf("%v", err)
	}

	dirs := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		dirs = append(dirs, m)
	}

	if len(dirs) == 0 {
		return nil, model.Configf("work directory patterns %v matched no directories", patterns)
	}
	return dirs, nil
}

// Structures expands structure patterns relative to workDir and returns the
// matching directories as sorted paths relative to workDir.
func Structures(workDir string, patterns []string) ([]string, error) {
	abs := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if filepath.IsAbs(p) {
			return nil, fmt.Errorf("structure pattern %s must be relative to the work directory", p)
		}
		abs = append(abs, filepath.Join(workDir, p))
	}

	matches, err := Glob(abs)
	if err != nil {
		return nil, err
	}

	rel := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		r, err := filepath.Rel(workDir, m)
		if err != nil {
			return nil, err
		}
		rel = append(rel, r)
	}
	return rel, nil
}
