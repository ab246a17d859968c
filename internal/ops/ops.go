// Package ops is the catalog of operations a pipeline step can run: their
// declared signatures and the local handlers used by the debug engine.
package ops

import (
	"context"
	"fmt"
	"sort"

	"github.com/sourceplane/apexflow/internal/model"
)

const (
	RelaxMake       = "relax-make"
	RelaxPost       = "relax-post"
	PropsDistribute = "props-distribute"
	PropsMake       = "props-make"
	PropsPost       = "props-post"
	PropsCollect    = "props-collect"
)

// Task is one invocation of an operation: its resolved inputs and a private
// scratch directory for its outputs. Input artifacts are read-only.
type Task struct {
	Name       string
	Key        string
	Dir        string
	Image      string
	Command    []string
	Artifacts  map[string][]string
	Parameters map[string]any
}

// Handler executes an operation locally
type Handler interface {
	Run(ctx context.Context, task *Task) (model.Values, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, task *Task) (model.Values, error)

func (f HandlerFunc) Run(ctx context.Context, task *Task) (model.Values, error) {
	return f(ctx, task)
}

type entry struct {
	sig     model.Signature
	handler Handler
}

// Registry maps operation identifiers to signatures and handlers
type Registry struct {
	ops map[string]entry
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]entry)}
}

// Register adds or replaces an operation
func (r *Registry) Register(name string, sig model.Signature, h Handler) {
	r.ops[name] = entry{sig: sig, handler: h}
}

// Lookup returns the handler for name
func (r *Registry) Lookup(name string) (Handler, error) {
	e, ok := r.ops[name]
	if !ok || e.handler == nil {
		return nil, fmt.Errorf("no handler registered for operation %q", name)
	}
	return e.handler, nil
}

// Signature returns the declared signature of name
func (r *Registry) Signature(name string) (model.Signature, bool) {
	e, ok := r.ops[name]
	return e.sig, ok
}

// Names returns the registered operations, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a registry holding every catalog operation with its local handler
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(RelaxMake, RelaxMakeSignature, HandlerFunc(relaxMake))
	r.Register(RelaxPost, RelaxPostSignature, HandlerFunc(relaxPost))
	r.Register(PropsDistribute, PropsDistributeSignature, HandlerFunc(propsDistribute))
	r.Register(PropsMake, PropsMakeSignature, HandlerFunc(propsMake))
	r.Register(PropsPost, PropsPostSignature, HandlerFunc(propsPost))
	r.Register(PropsCollect, PropsCollectSignature, HandlerFunc(propsCollect))
	for _, calc := range []model.Calculator{model.CalculatorLAMMPS, model.CalculatorVASP, model.CalculatorABACUS} {
		r.Register(calc.RunOperation(), RunSignature, HandlerFunc(runCalculation))
	}
	return r
}

var (
	RelaxMakeSignature = model.Signature{
		Inputs: model.Ports{Artifacts: []string{"input", "param"}},
		Outputs: model.Ports{
			Artifacts:  []string{"task_paths", "output"},
			Parameters: []string{"njobs", "task_names"},
		},
	}
	RunSignature = model.Signature{
		Inputs: model.Ports{
			Artifacts:  []string{"input_task"},
			Parameters: []string{"run_command"},
		},
		Outputs: model.Ports{Artifacts: []string{"backward_dir"}},
	}
	RelaxPostSignature = model.Signature{
		Inputs: model.Ports{
			Artifacts:  []string{"input_post", "input_all", "param"},
			Parameters: []string{"path"},
		},
		Outputs: model.Ports{Artifacts: []string{"output_all"}},
	}
	PropsDistributeSignature = model.Signature{
		Inputs: model.Ports{Artifacts: []string{"input_work_path", "param"}},
		Outputs: model.Ports{
			Artifacts:  []string{"orig_work_path"},
			Parameters: []string{"nflows", "flow_id", "path_to_prop", "prop_param", "inter_param", "do_refine"},
		},
	}
	PropsMakeSignature = model.Signature{
		Inputs: model.Ports{
			Artifacts:  []string{"input_work_path"},
			Parameters: []string{"flow_id", "path_to_prop", "prop_param", "inter_param", "do_refine"},
		},
		Outputs: model.Ports{
			Artifacts:  []string{"task_paths"},
			Parameters: []string{"njobs", "task_names"},
		},
	}
	PropsPostSignature = model.Signature{
		Inputs: model.Ports{
			Artifacts:  []string{"input_post", "input_all"},
			Parameters: []string{"flow_id", "path_to_prop", "prop_param", "task_names"},
		},
		Outputs: model.Ports{Artifacts: []string{"output_post"}},
	}
	PropsCollectSignature = model.Signature{
		Inputs:  model.Ports{Artifacts: []string{"input_all", "input_post", "param"}},
		Outputs: model.Ports{Artifacts: []string{"output_all"}},
	}
)

// single returns the only path of an artifact
func (t *Task) single(name string) (string, error) {
	paths := t.Artifacts[name]
	if len(paths) != 1 {
		return "", fmt.Errorf("%s: artifact %q must hold exactly one path, got %d", t.Name, name, len(paths))
	}
	return paths[0], nil
}

func (t *Task) stringParam(name string) (string, error) {
	v, ok := t.Parameters[name].(string)
	if !ok {
		return "", fmt.Errorf("%s: parameter %q must be a string, got %T", t.Name, name, t.Parameters[name])
	}
	return v, nil
}
