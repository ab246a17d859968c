// Package submit dispatches one workflow per working directory.
package submit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/flow"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/ops"
	"github.com/sourceplane/apexflow/internal/planner"
	"github.com/sourceplane/apexflow/internal/render"
	"github.com/sourceplane/apexflow/internal/runner"
)

// Job is one flow bound to one working directory
type Job struct {
	WorkDir    string            `json:"workDir"`
	FlowType   model.FlowType    `json:"flowType"`
	RelaxParam string            `json:"relaxParam,omitempty"`
	PropsParam string            `json:"propsParam,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// Descriptor returns the flow descriptor of the job
func (j Job) Descriptor() model.FlowDescriptor {
	return model.FlowDescriptor{
		Type:       j.FlowType,
		RelaxParam: j.RelaxParam,
		PropsParam: j.PropsParam,
		WorkDir:    j.WorkDir,
	}
}

// Logging carries the parent's log settings to child processes
type Logging struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// Logger builds a logger writing to w. Empty fields mean info and text.
func (l Logging) Logger(w io.Writer) *slog.Logger {
	return ctxlog.New(l.Level, l.Format, w)
}

// Request is everything a submission unit needs. It is the only input of a
// child process.
type Request struct {
	Snapshot config.Snapshot `json:"snapshot"`
	Factory  flow.Factory    `json:"factory"`
	Job      Job             `json:"job"`
	Logging  Logging         `json:"logging"`
}

// Engine accepts a composed graph for execution
type Engine interface {
	Submit(ctx context.Context, g *planner.Graph, meta model.Metadata) (string, error)
}

// NewEngine picks the local runner in debug mode and the dispatch outbox otherwise
func NewEngine(snap config.Snapshot, spec model.ManifestSpec) Engine {
	if snap.Debug {
		return runner.NewRunner(snap.DebugWorkDir, ops.Builtin(), snap.Settings.PoolSize)
	}
	if snap.StorageEnabled() {
		spec.Storage = map[string]string{
			"endpoint": snap.Storage.Endpoint,
			"console":  snap.Storage.Console,
			"bucket":   snap.Storage.Bucket,
		}
	}
	return &render.Outbox{Dir: snap.Settings.OutboxDir, Spec: spec}
}

// Plan is a composed workflow that has not been submitted yet
type Plan struct {
	Graph    *planner.Graph
	Metadata model.Metadata
	Spec     model.ManifestSpec
}

// Plan composes and validates the request's job
func (r Request) Plan() (*Plan, error) {
	desc := r.Job.Descriptor()
	g, err := r.Factory.Compose(desc)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Plan{
		Graph: g,
		Metadata: model.Metadata{
			Name:        WorkflowName(desc),
			Description: fmt.Sprintf("%s flow for %s", desc.Type, desc.WorkDir),
			Labels:      r.Job.Labels,
		},
		Spec: model.ManifestSpec{
			FlowType:       desc.Type,
			WorkDir:        desc.WorkDir,
			UploadPackages: r.Factory.UploadPackages,
		},
	}, nil
}

// Run composes and submits one job using only the request's snapshot
func Run(ctx context.Context, req Request) error {
	logger := ctxlog.FromContext(ctx).With("workdir", req.Job.WorkDir, "flow", req.Job.FlowType)

	p, err := req.Plan()
	if err != nil {
		return err
	}
	id, err := NewEngine(req.Snapshot, p.Spec).Submit(ctxlog.WithLogger(ctx, logger), p.Graph, p.Metadata)
	if err != nil {
		return err
	}
	logger.Info("submission accepted", "workflow", id, "debug", req.Snapshot.Debug)
	return nil
}

// WorkflowName is a DNS-label friendly name for the workflow of desc
func WorkflowName(desc model.FlowDescriptor) string {
	base := strings.ToLower(filepath.Base(desc.WorkDir))
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	name := strings.Trim(sb.String(), "-")
	if name == "" {
		return fmt.Sprintf("apex-%s", desc.Type)
	}
	return fmt.Sprintf("apex-%s-%s", desc.Type, name)
}
