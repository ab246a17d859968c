package ops

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/model"
)

// LogFile receives the output of the simulation command in each task
const LogFile = "run.log"

// runCalculation copies one task directory and runs the calculator command
// in the copy. The command is opaque; a non-zero exit fails the replica.
func runCalculation(ctx context.Context, t *Task) (model.Values, error) {
	out := model.NewValues()
	src, err := t.single("input_task")
	if err != nil {
		return out, err
	}
	command, err := t.stringParam("run_command")
	if err != nil {
		return out, err
	}
	if strings.TrimSpace(command) == "" {
		return out, model.Configf("%s: no run command configured", t.Key)
	}

	dir := filepath.Join(t.Dir, filepath.Base(src))
	if err := copyTree(src, dir); err != nil {
		return out, err
	}

	log, err := os.Create(filepath.Join(dir, LogFile))
	if err != nil {
		return out, err
	}
	defer log.Close()

	ctxlog.FromContext(ctx).Debug("running calculation", "step", t.Key, "dir", dir, "command", command)
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = log
	cmd.Stderr = log
	if err := cmd.Run(); err != nil {
		return out, fmt.Errorf("%s: command %q failed: %w", t.Key, command, err)
	}

	out.Artifacts["backward_dir"] = []string{dir}
	return out, nil
}
