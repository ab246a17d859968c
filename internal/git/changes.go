// Package git narrows submissions to working directories that changed.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ChangeDetector detects files that have changed in git
type ChangeDetector struct {
	baseBranch string // branch to compare against (e.g., "main", "develop")
	dir        string // where git runs; empty means the current directory
}

// NewChangeDetector creates a change detector running git in dir
func NewChangeDetector(baseBranch, dir string) *ChangeDetector {
	if baseBranch == "" {
		baseBranch = "main"
	}
	return &ChangeDetector{baseBranch: baseBranch, dir: dir}
}

func (cd *ChangeDetector) git(ctx context.Context, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = cd.dir
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// ChangedFiles returns absolute paths of files that are modified, staged,
// untracked, or committed but not in the base branch.
func (cd *ChangeDetector) ChangedFiles(ctx context.Context) ([]string, error) {
	top, err := cd.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil || len(top) == 0 {
		return nil, fmt.Errorf("change detection needs a git repository: %v", err)
	}
	root := top[0]

	filesMap := make(map[string]bool)
	add := func(files []string) {
		for _, f := range files {
			filesMap[filepath.Join(root, f)] = true
		}
	}

	for _, args := range [][]string{
		{"diff", "--name-only"},
		{"diff", "--cached", "--name-only"},
		{"ls-files", "--others", "--exclude-standard", "--full-name", root},
	} {
		if files, err := cd.git(ctx, args...); err == nil {
			add(files)
		}
	}

	// The base branch may only exist on the remote, as in CI checkouts
	files, err := cd.git(ctx, "diff", "--name-only", cd.baseBranch)
	if err != nil {
		files, err = cd.git(ctx, "diff", "--name-only", "origin/"+cd.baseBranch)
	}
	if err != nil {
		if base, mergeErr := cd.git(ctx, "merge-base", "HEAD", "origin/"+cd.baseBranch); mergeErr == nil && len(base) > 0 {
			files, err = cd.git(ctx, "diff", "--name-only", base[0])
		}
	}
	if err == nil {
		add(files)
	}

	result := make([]string, 0, len(filesMap))
	for f := range filesMap {
		result = append(result, f)
	}
	sort.Strings(result)
	return result, nil
}

// ChangedDirs keeps the dirs holding at least one changed file. When any of
// the watched files changed, every dir is kept since all of their workflows
// are affected.
func (cd *ChangeDetector) ChangedDirs(ctx context.Context, dirs []string, watched ...string) ([]string, error) {
	files, err := cd.ChangedFiles(ctx)
	if err != nil {
		return nil, err
	}

	for _, w := range watched {
		w = canonical(w)
		for _, f := range files {
			if f == w {
				return dirs, nil
			}
		}
	}

	var result []string
	for _, dir := range dirs {
		prefix := canonical(dir) + string(filepath.Separator)
		for _, f := range files {
			if strings.HasPrefix(f, prefix) {
				result = append(result, dir)
				break
			}
		}
	}
	return result, nil
}

// canonical resolves symlinks so paths compare equal to what git reports
func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}
