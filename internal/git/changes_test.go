package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q")
	for _, d := range []string{"a", "b", "c"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, d, "POSCAR"), []byte(d), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "relax.json"), []byte("{}"), 0o644))
	run("add", ".")
	run("-c", "user.email=ci@example.com", "-c", "user.name=ci", "commit", "-q", "-m", "init")
	return root
}

func TestChangedDirs(t *testing.T) {
	root := repo(t)
	dirs := []string{filepath.Join(root, "a"), filepath.Join(root, "b"), filepath.Join(root, "c")}
	cd := NewChangeDetector("HEAD", root)
	ctx := context.Background()

	got, err := cd.ChangedDirs(ctx, dirs)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "POSCAR"), []byte("a2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c", "INCAR"), []byte("new"), 0o644))
	got, err = cd.ChangedDirs(ctx, dirs)
	require.NoError(t, err)
	assert.Equal(t, []string{dirs[0], dirs[2]}, got)

	require.NoError(t, os.WriteFile(filepath.Join(root, "relax.json"), []byte(`{"a":1}`), 0o644))
	got, err = cd.ChangedDirs(ctx, dirs, filepath.Join(root, "relax.json"))
	require.NoError(t, err)
	assert.Equal(t, dirs, got)
}

func TestChangedFiles_OutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	_, err := NewChangeDetector("", t.TempDir()).ChangedFiles(context.Background())
	assert.Error(t, err)
}
