package planner

import (
	"sort"

	"github.com/sourceplane/apexflow/internal/model"
)

// StepNode is one computational phase in a pipeline graph. Nodes are built
// by a Builder and are not modified afterwards.
type StepNode struct {
	Name       string
	Key        string
	Phase      model.Phase
	Operation  string
	Template   Template
	Image      string
	Command    []string
	Signature  model.Signature
	Artifacts  map[string]model.Binding
	Parameters map[string]model.Binding
	Fanout     *model.FanoutSpec
	Executor   *model.ExecutorDescriptor
}

// Exposed returns the outputs downstream steps may bind to. A fan-out step
// only exposes what it gathers across replicas.
func (n *StepNode) Exposed() model.Ports {
	if n.Fanout != nil {
		return n.Fanout.Gathered()
	}
	return n.Signature.Outputs
}

// Artifact binds to one of this step's output artifacts
func (n *StepNode) Artifact(name string) model.Binding {
	return model.Output(n.Name, name)
}

// Parameter binds to one of this step's output parameters
func (n *StepNode) Parameter(name string) model.Binding {
	return model.Output(n.Name, name)
}

// DependsOn returns the producer steps this node reads from, sorted
func (n *StepNode) DependsOn() []string {
	set := make(map[string]bool)
	for _, b := range n.Artifacts {
		if b.Kind == model.BindOutput {
			set[b.Step] = true
		}
	}
	for _, b := range n.Parameters {
		if b.Kind == model.BindOutput {
			set[b.Step] = true
		}
	}
	if n.Fanout != nil && n.Fanout.Count.Kind == model.BindOutput {
		set[n.Fanout.Count.Step] = true
	}
	deps := make([]string, 0, len(set))
	for step := range set {
		deps = append(deps, step)
	}
	sort.Strings(deps)
	return deps
}

// IsTemplate reports whether the node embeds a sub-pipeline
func (n *StepNode) IsTemplate() bool { return n.Template != nil }

func (n *StepNode) clone() *StepNode {
	out := *n
	out.Command = append([]string(nil), n.Command...)
	out.Artifacts = copyBindings(n.Artifacts)
	out.Parameters = copyBindings(n.Parameters)
	if n.Fanout != nil {
		fanout := *n.Fanout
		out.Fanout = &fanout
	}
	return &out
}

func copyBindings(in map[string]model.Binding) map[string]model.Binding {
	out := make(map[string]model.Binding, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
