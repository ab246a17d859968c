package submit

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/flow"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/normalize"
)

// Orchestrator submits one workflow per matching working directory
type Orchestrator struct {
	Snapshot config.Snapshot
	Factory  flow.Factory
	// Launcher isolates submissions when more than one directory matches
	Launcher Launcher
	// Local submits in-process; defaults to Run
	Local func(ctx context.Context, req Request) error
	// Select narrows the matched directories, e.g. to changed ones
	Select func(ctx context.Context, dirs []string) ([]string, error)
	// Out receives one status line per directory
	Out io.Writer
	// Logging is handed to every request so children log like the parent
	Logging Logging
}

// SubmitAll expands patterns and submits every directory. A single match is
// submitted in-process; several are launched concurrently, one process
// each, and all of them are waited for. Every failing directory is named in
// the returned *model.SubmissionError.
func (o *Orchestrator) SubmitAll(ctx context.Context, flowType model.FlowType, patterns []string, relaxParam, propsParam string, labels map[string]string) error {
	dirs, err := normalize.WorkDirs(patterns)
	if err != nil {
		return err
	}
	if o.Select != nil {
		if dirs, err = o.Select(ctx, dirs); err != nil {
			return err
		}
		if len(dirs) == 0 {
			if o.Out != nil {
				fmt.Fprintln(o.Out, "✓ No working directories have changed")
			}
			return nil
		}
	}

	requests := make([]Request, 0, len(dirs))
	for _, dir := range dirs {
		requests = append(requests, Request{
			Snapshot: o.Snapshot,
			Factory:  o.Factory,
			Job: Job{
				WorkDir:    dir,
				FlowType:   flowType,
				RelaxParam: relaxParam,
				PropsParam: propsParam,
				Labels:     labels,
			},
			Logging: o.Logging,
		})
	}

	logger := ctxlog.FromContext(ctx)
	if len(requests) == 1 {
		local := o.Local
		if local == nil {
			local = Run
		}
		logger.Info("submitting in-process", "workdir", dirs[0])
		if err := local(ctx, requests[0]); err != nil {
			o.status(false, dirs[0], err)
			return fmt.Errorf("submission for %s failed: %w", dirs[0], err)
		}
		o.status(true, dirs[0], nil)
		return nil
	}

	if o.Launcher == nil {
		return fmt.Errorf("%d directories matched but no launcher is configured", len(dirs))
	}
	logger.Info("launching submissions", "count", len(requests))

	errs := make([]error, len(requests))
	var group errgroup.Group
	for i := range requests {
		i := i
		group.Go(func() error {
			errs[i] = o.Launcher.Launch(ctx, requests[i])
			return nil
		})
	}
	_ = group.Wait()

	var failures []model.DirFailure
	for i, dir := range dirs {
		o.status(errs[i] == nil, dir, errs[i])
		if errs[i] != nil {
			failures = append(failures, model.DirFailure{Dir: dir, Err: errs[i]})
		}
	}
	if len(failures) > 0 {
		return &model.SubmissionError{Total: len(dirs), Failures: failures}
	}
	return nil
}

func (o *Orchestrator) status(ok bool, dir string, err error) {
	if o.Out == nil {
		return
	}
	if ok {
		fmt.Fprintf(o.Out, "✓ %s\n", dir)
		return
	}
	fmt.Fprintf(o.Out, "✗ %s: %v\n", dir, err)
}
