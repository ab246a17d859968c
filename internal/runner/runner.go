package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/expand"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/ops"
	"github.com/sourceplane/apexflow/internal/planner"
)

// Runner executes a pipeline graph in-process. It is the engine used in
// debug mode: every step runs locally under ScratchDir and executors are
// ignored.
type Runner struct {
	ScratchDir string
	Registry   *ops.Registry
	// PoolSize bounds concurrently running replicas of one fan-out; 0 means unbounded
	PoolSize int

	expander *expand.Expander
}

func NewRunner(scratchDir string, registry *ops.Registry, poolSize int) *Runner {
	return &Runner{
		ScratchDir: scratchDir,
		Registry:   registry,
		PoolSize:   poolSize,
		expander:   expand.NewExpander(),
	}
}

// Submit runs g to completion and returns the workflow id. The local engine
// has nothing to hand off to, so acceptance and completion coincide.
func (r *Runner) Submit(ctx context.Context, g *planner.Graph, meta model.Metadata) (string, error) {
	id := uuid.NewString()
	name := meta.Name
	if name == "" {
		name = g.Name
	}
	dir := filepath.Join(r.ScratchDir, fmt.Sprintf("%s-%s", name, id[:8]))

	logger := ctxlog.FromContext(ctx).With("workflow", id)
	logger.Info("running workflow locally", "graph", g.Name, "dir", dir)
	if _, err := r.Execute(ctxlog.WithLogger(ctx, logger), g, dir); err != nil {
		return id, fmt.Errorf("workflow %s: %w", id, err)
	}
	logger.Info("workflow succeeded")
	return id, nil
}

// Execute runs every step of g in topological order under dir and returns
// the outputs each step exposes, by step name.
func (r *Runner) Execute(ctx context.Context, g *planner.Graph, dir string) (map[string]model.Values, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	results := make(map[string]model.Values, len(order))
	for _, n := range order {
		in, err := resolveInputs(n, results)
		if err != nil {
			return nil, err
		}

		var out model.Values
		if n.Fanout != nil {
			var raw any
			raw, err = resolveParameter(n.Fanout.Count, results)
			if err != nil {
				return nil, fmt.Errorf("step %s fanout count: %w", n.Name, err)
			}
			out, err = r.fanout(ctx, n, raw, in, filepath.Join(dir, n.Name))
		} else {
			out, err = r.execute(ctx, n, n.Key, in, filepath.Join(dir, n.Key))
		}
		if err != nil {
			if skipped := planner.NewDependencyResolver(g).TransitiveDependents(n.Name); len(skipped) > 0 {
				ctxlog.FromContext(ctx).Warn("downstream steps not run", "step", n.Name, "skipped", skipped)
			}
			return nil, err
		}
		results[n.Name] = out
	}
	return results, nil
}

// fanout resolves the replica count, runs every replica and gathers their
// outputs in index order. All replicas settle before a failure is reported.
func (r *Runner) fanout(ctx context.Context, n *planner.StepNode, raw any, in model.Values, dir string) (model.Values, error) {
	count, err := expand.ResolveCount(raw)
	if err != nil {
		return model.Values{}, fmt.Errorf("step %s: %w", n.Name, err)
	}
	replicas, err := r.expander.Instantiate(n.Fanout, n.Key, count, in)
	if err != nil {
		return model.Values{}, fmt.Errorf("step %s: %w", n.Name, err)
	}
	ctxlog.FromContext(ctx).Info("fanning out", "step", n.Name, "replicas", count)

	var (
		mu       sync.Mutex
		failures []model.IndexFailure
		outs     = make([]model.Values, count)
		group    errgroup.Group
	)
	if r.PoolSize > 0 {
		group.SetLimit(r.PoolSize)
	}
	for _, rep := range replicas {
		rep := rep
		group.Go(func() error {
			out, err := r.execute(ctx, n, rep.Key, rep.Inputs, filepath.Join(dir, rep.Key))
			if err != nil {
				mu.Lock()
				failures = append(failures, model.IndexFailure{Index: rep.Index, Key: rep.Key, Err: err})
				mu.Unlock()
				return nil
			}
			outs[rep.Index] = out
			return nil
		})
	}
	_ = group.Wait()

	if len(failures) > 0 {
		return model.Values{}, &model.ReplicaError{Step: n.Name, Total: count, Failures: failures}
	}
	return expand.Gather(n.Fanout, outs)
}

// execute runs one instance of a step: an operation handler, or the
// expanded subgraph of a template
func (r *Runner) execute(ctx context.Context, n *planner.StepNode, key string, in model.Values, dir string) (model.Values, error) {
	logger := ctxlog.FromContext(ctx).With("step", key)
	if n.Executor != nil {
		logger.Debug("executor ignored by the local engine", "context", n.Executor.ContextType)
	}

	if n.IsTemplate() {
		return r.executeTemplate(ctxlog.WithLogger(ctx, logger), n, in, dir)
	}

	handler, err := r.Registry.Lookup(n.Operation)
	if err != nil {
		return model.Values{}, fmt.Errorf("step %s: %w", key, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.Values{}, fmt.Errorf("step %s: %w", key, err)
	}

	task := &ops.Task{
		Name:       n.Name,
		Key:        key,
		Dir:        dir,
		Image:      n.Image,
		Command:    n.Command,
		Artifacts:  in.Artifacts,
		Parameters: in.Parameters,
	}
	logger.Debug("running step", "operation", n.Operation)
	out, err := handler.Run(ctxlog.WithLogger(ctx, logger), task)
	if err != nil {
		return model.Values{}, fmt.Errorf("step %s: %w", key, err)
	}
	if missing := out.Missing(n.Signature.Outputs); len(missing) > 0 {
		return model.Values{}, fmt.Errorf("step %s: operation %s did not produce %v", key, n.Operation, missing)
	}
	logger.Info("step finished")
	return out, nil
}

func (r *Runner) executeTemplate(ctx context.Context, n *planner.StepNode, in model.Values, dir string) (model.Values, error) {
	bindings := make(map[string]model.Binding, len(in.Artifacts)+len(in.Parameters))
	for name, paths := range in.Artifacts {
		bindings[name] = model.Upload(paths...)
	}
	for name, v := range in.Parameters {
		bindings[name] = model.Literal(v)
	}

	sub, err := n.Template.Expand(bindings)
	if err != nil {
		return model.Values{}, fmt.Errorf("step %s: %w", n.Name, err)
	}
	results, err := r.Execute(ctx, sub, dir)
	if err != nil {
		return model.Values{}, fmt.Errorf("template %s: %w", n.Template.Name(), err)
	}

	out := model.NewValues()
	ports := n.Template.DeclareOutputs()
	for _, name := range ports.Artifacts {
		paths, err := resolveArtifact(sub.Outputs[name], results)
		if err != nil {
			return model.Values{}, fmt.Errorf("template %s output %s: %w", n.Template.Name(), name, err)
		}
		out.Artifacts[name] = paths
	}
	for _, name := range ports.Parameters {
		v, err := resolveParameter(sub.Outputs[name], results)
		if err != nil {
			return model.Values{}, fmt.Errorf("template %s output %s: %w", n.Template.Name(), name, err)
		}
		out.Parameters[name] = v
	}
	return out, nil
}

// resolveInputs reads the concrete value of every binding of n
func resolveInputs(n *planner.StepNode, results map[string]model.Values) (model.Values, error) {
	in := model.NewValues()
	for name, b := range n.Artifacts {
		paths, err := resolveArtifact(b, results)
		if err != nil {
			return in, fmt.Errorf("step %s input %s: %w", n.Name, name, err)
		}
		in.Artifacts[name] = paths
	}
	for name, b := range n.Parameters {
		v, err := resolveParameter(b, results)
		if err != nil {
			return in, fmt.Errorf("step %s input %s: %w", n.Name, name, err)
		}
		in.Parameters[name] = v
	}
	return in, nil
}

func resolveArtifact(b model.Binding, results map[string]model.Values) ([]string, error) {
	switch b.Kind {
	case model.BindUpload:
		return append([]string(nil), b.Paths...), nil
	case model.BindOutput:
		out, ok := results[b.Step]
		if !ok {
			return nil, fmt.Errorf("step %s has not run", b.Step)
		}
		paths, ok := out.Artifacts[b.Name]
		if !ok {
			return nil, fmt.Errorf("step %s produced no artifact %q", b.Step, b.Name)
		}
		return append([]string(nil), paths...), nil
	}
	return nil, fmt.Errorf("cannot resolve %s binding as artifact", b.Kind)
}

func resolveParameter(b model.Binding, results map[string]model.Values) (any, error) {
	switch b.Kind {
	case model.BindLiteral:
		return b.Value, nil
	case model.BindOutput:
		out, ok := results[b.Step]
		if !ok {
			return nil, fmt.Errorf("step %s has not run", b.Step)
		}
		v, ok := out.Parameters[b.Name]
		if !ok {
			return nil, fmt.Errorf("step %s produced no parameter %q", b.Step, b.Name)
		}
		return v, nil
	}
	return nil, fmt.Errorf("cannot resolve %s binding as parameter", b.Kind)
}
