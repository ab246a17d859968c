package submit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/executor"
	"github.com/sourceplane/apexflow/internal/flow"
	"github.com/sourceplane/apexflow/internal/git"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/paramfile"
)

// Options are the inputs of one submit invocation
type Options struct {
	ConfigFile string
	Parameters []string
	// WorkDirs are glob patterns; empty means the configured work_dir
	WorkDirs []string
	// FlowType narrows the selection made from Parameters when set
	FlowType model.FlowType
	Debug    bool
	Labels   map[string]string
	// ChangedSince, when set, submits only directories with git changes
	// against this base branch
	ChangedSince string

	// Launcher overrides the default re-exec launcher
	Launcher Launcher
	Out      io.Writer
	Logging  Logging
}

type prepared struct {
	settings  config.Settings
	selection paramfile.Selection
	factory   flow.Factory
	labels    map[string]string
}

func prepare(ctx context.Context, opts Options) (*prepared, error) {
	settings, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	exec, err := executor.Resolve(settings)
	if err != nil {
		return nil, err
	}
	sel, err := paramfile.Judge(opts.Parameters, opts.FlowType)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("flow selected", "flow", sel.FlowType, "calculator", sel.Calculator)

	return &prepared{
		settings:  settings,
		selection: sel,
		factory:   flow.NewFactory(settings, sel.Calculator, exec),
		labels:    mergeLabels(settings.Labels, opts.Labels),
	}, nil
}

func (p *prepared) job(workDir string) Job {
	return Job{
		WorkDir:    workDir,
		FlowType:   p.selection.FlowType,
		RelaxParam: p.selection.RelaxParam,
		PropsParam: p.selection.PropsParam,
		Labels:     p.labels,
	}
}

// Compose builds the workflow of one working directory without submitting
// it. An empty workDir means the configured work_dir.
func Compose(ctx context.Context, opts Options, workDir string) (*Plan, error) {
	p, err := prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	if workDir == "" {
		workDir = p.settings.WorkDir
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", workDir, err)
	}
	return Request{Factory: p.factory, Job: p.job(abs)}.Plan()
}

// Workflow loads configuration, classifies the parameter files and submits
// one workflow per matching working directory.
func Workflow(ctx context.Context, opts Options) error {
	logger := ctxlog.FromContext(ctx)

	p, err := prepare(ctx, opts)
	if err != nil {
		return err
	}

	scratch := ""
	if opts.Debug && p.settings.DebugWorkDir == "" {
		scratch, err = os.MkdirTemp("", "apexflow-debug-")
		if err != nil {
			return fmt.Errorf("failed to create debug work directory: %w", err)
		}
	}
	snap := p.settings.Snapshot(opts.Debug, scratch)
	if opts.Debug {
		logger.Info("debug mode: running locally", "dir", snap.DebugWorkDir)
	}

	launcher := opts.Launcher
	if launcher == nil {
		pl, err := NewProcessLauncher()
		if err != nil {
			return err
		}
		launcher = pl
	}

	patterns := opts.WorkDirs
	if len(patterns) == 0 {
		patterns = []string{p.settings.WorkDir}
	}

	orch := &Orchestrator{
		Snapshot: snap,
		Factory:  p.factory,
		Launcher: launcher,
		Out:      opts.Out,
		Logging:  opts.Logging,
	}
	if opts.ChangedSince != "" {
		cd := git.NewChangeDetector(opts.ChangedSince, "")
		watched := append([]string{opts.ConfigFile}, opts.Parameters...)
		orch.Select = func(ctx context.Context, dirs []string) ([]string, error) {
			return cd.ChangedDirs(ctx, dirs, watched...)
		}
	}
	sel := p.selection
	err = orch.SubmitAll(ctx, sel.FlowType, patterns, sel.RelaxParam, sel.PropsParam, p.labels)
	if scratch != "" {
		// left in place so local results can be inspected
		logger.Info("debug work directory kept", "dir", scratch)
	}
	return err
}

func mergeLabels(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
