package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ChildCommand is the hidden CLI command a child process runs
const ChildCommand = "submit-child"

// Launcher runs one submission in isolation from the caller
type Launcher interface {
	Launch(ctx context.Context, req Request) error
}

// ProcessLauncher runs each submission in a fresh OS process of Executable.
// The request travels on stdin, so the child never reads configuration the
// parent did not put in the snapshot.
type ProcessLauncher struct {
	Executable string
	Args       []string
	// Env is appended to the parent's environment
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewProcessLauncher re-executes the running binary with ChildCommand
func NewProcessLauncher() (*ProcessLauncher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return &ProcessLauncher{
		Executable: exe,
		Args:       []string{ChildCommand},
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}, nil
}

func (l *ProcessLauncher) Launch(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode submission request: %w", err)
	}

	cmd := exec.CommandContext(ctx, l.Executable, l.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("child submission for %s failed: %w", req.Job.WorkDir, err)
	}
	return nil
}

// ReadRequest decodes the request a child receives on stdin
func ReadRequest(r io.Reader) (Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Request{}, fmt.Errorf("failed to decode submission request: %w", err)
	}
	if req.Job.WorkDir == "" {
		return Request{}, fmt.Errorf("submission request has no working directory")
	}
	return req, nil
}
