package planner

import (
	"github.com/sourceplane/apexflow/internal/model"
)

// StepSpec describes a step to add to a Builder. Exactly one of Operation
// and Template is set.
type StepSpec struct {
	Name       string
	Key        string
	Phase      model.Phase
	Operation  string
	Signature  model.Signature
	Template   Template
	Image      string
	Command    []string
	Artifacts  map[string]model.Binding
	Parameters map[string]model.Binding
	Fanout     *model.FanoutSpec
	Executor   *model.ExecutorDescriptor
}

// Builder wires steps into a Graph, checking every binding as it is added.
// A producer must be added before any step that reads from it.
type Builder struct {
	scope
	name        string
	outputs     map[string]model.Binding
	outputPorts model.Ports
}

// NewBuilder starts a top-level pipeline graph
func NewBuilder(name string) *Builder {
	return NewTemplateBuilder(name, model.Ports{})
}

// NewTemplateBuilder starts a graph whose steps may bind to the declared
// template inputs with model.Input
func NewTemplateBuilder(name string, inputs model.Ports) *Builder {
	return &Builder{
		scope: scope{
			inputs: inputs,
			index:  make(map[string]*StepNode),
		},
		name:    name,
		outputs: make(map[string]model.Binding),
	}
}

// Add builds a StepNode from spec and appends it to the graph. Binding an
// input to an output the producer does not declare is a BindingError.
func (b *Builder) Add(spec StepSpec) (*StepNode, error) {
	if spec.Name == "" {
		return nil, model.Bindingf("step name is required")
	}
	if _, exists := b.index[spec.Name]; exists {
		return nil, model.Bindingf("duplicate step %q", spec.Name)
	}
	if (spec.Operation == "") == (spec.Template == nil) {
		return nil, model.Bindingf("step %s: exactly one of operation and template must be set", spec.Name)
	}

	sig := spec.Signature
	if spec.Template != nil {
		sig = model.Signature{
			Inputs:  spec.Template.DeclareInputs(),
			Outputs: spec.Template.DeclareOutputs(),
		}
	}

	node := &StepNode{
		Name:       spec.Name,
		Key:        spec.Key,
		Phase:      spec.Phase,
		Operation:  spec.Operation,
		Template:   spec.Template,
		Image:      spec.Image,
		Command:    spec.Command,
		Signature:  sig,
		Artifacts:  spec.Artifacts,
		Parameters: spec.Parameters,
		Fanout:     spec.Fanout,
		Executor:   spec.Executor,
	}
	if node.Key == "" {
		node.Key = node.Name
	}
	node = node.clone()

	if err := b.check(node); err != nil {
		return nil, err
	}

	b.steps = append(b.steps, node)
	b.index[node.Name] = node
	return node, nil
}

// OutputArtifact exposes an artifact from inside the graph as a template output
func (b *Builder) OutputArtifact(name string, from model.Binding) error {
	if err := b.checkBinding("outputs", name, from, true); err != nil {
		return err
	}
	b.outputs[name] = from
	b.outputPorts.Artifacts = append(b.outputPorts.Artifacts, name)
	return nil
}

// OutputParameter exposes a parameter from inside the graph as a template output
func (b *Builder) OutputParameter(name string, from model.Binding) error {
	if err := b.checkBinding("outputs", name, from, false); err != nil {
		return err
	}
	b.outputs[name] = from
	b.outputPorts.Parameters = append(b.outputPorts.Parameters, name)
	return nil
}

// Build returns the finished graph
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		Name:        b.name,
		Inputs:      b.inputs,
		Outputs:     copyBindings(b.outputs),
		OutputPorts: b.outputPorts,
		steps:       append([]*StepNode(nil), b.steps...),
		index:       make(map[string]*StepNode, len(b.steps)),
	}
	for _, n := range g.steps {
		g.index[n.Name] = n
	}
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	if _, err := g.TopologicalOrder(); err != nil {
		return nil, err
	}
	return g, nil
}

// scope is the set of producers visible to the next step being checked
type scope struct {
	inputs model.Ports
	steps  []*StepNode
	index  map[string]*StepNode
}

func (s *scope) check(n *StepNode) error {
	for name, bind := range n.Artifacts {
		if !n.Signature.Inputs.HasArtifact(name) {
			return model.Bindingf("step %s: undeclared input artifact %q", n.Name, name)
		}
		if err := s.checkBinding(n.Name, name, bind, true); err != nil {
			return err
		}
	}
	for name, bind := range n.Parameters {
		if !n.Signature.Inputs.HasParameter(name) {
			return model.Bindingf("step %s: undeclared input parameter %q", n.Name, name)
		}
		if err := s.checkBinding(n.Name, name, bind, false); err != nil {
			return err
		}
	}
	for _, name := range n.Signature.Inputs.Artifacts {
		if _, ok := n.Artifacts[name]; !ok {
			return model.Bindingf("step %s: input artifact %q is not bound", n.Name, name)
		}
	}
	for _, name := range n.Signature.Inputs.Parameters {
		if _, ok := n.Parameters[name]; !ok {
			return model.Bindingf("step %s: input parameter %q is not bound", n.Name, name)
		}
	}
	if n.Fanout != nil {
		return s.checkFanout(n)
	}
	return nil
}

func (s *scope) checkFanout(n *StepNode) error {
	f := n.Fanout
	if n.Phase != model.PhaseRun {
		return model.Bindingf("step %s: only the run phase fans out, got %s", n.Name, n.Phase)
	}
	if err := s.checkBinding(n.Name, "fanout count", f.Count, false); err != nil {
		return err
	}
	for _, name := range f.SliceArtifacts {
		if _, ok := n.Artifacts[name]; !ok {
			return model.Bindingf("step %s: sliced artifact %q is not an input", n.Name, name)
		}
	}
	for _, name := range f.SliceParameters {
		if _, ok := n.Parameters[name]; !ok {
			return model.Bindingf("step %s: sliced parameter %q is not an input", n.Name, name)
		}
	}
	for _, name := range f.GatherArtifacts {
		if !n.Signature.Outputs.HasArtifact(name) {
			return model.Bindingf("step %s: gathered artifact %q is not a declared output", n.Name, name)
		}
	}
	for _, name := range f.GatherParameters {
		if !n.Signature.Outputs.HasParameter(name) {
			return model.Bindingf("step %s: gathered parameter %q is not a declared output", n.Name, name)
		}
	}
	return nil
}

// checkBinding verifies that bind refers to something visible in scope
func (s *scope) checkBinding(consumer, input string, bind model.Binding, artifact bool) error {
	kind := "parameter"
	if artifact {
		kind = "artifact"
	}
	switch bind.Kind {
	case model.BindOutput:
		producer, ok := s.index[bind.Step]
		if !ok {
			return model.Bindingf("step %s input %s: unknown producer step %q", consumer, input, bind.Step)
		}
		exposed := producer.Exposed()
		declared := exposed.HasParameter(bind.Name)
		if artifact {
			declared = exposed.HasArtifact(bind.Name)
		}
		if !declared {
			return model.Bindingf("step %s input %s: step %s declares no %s output %q", consumer, input, producer.Name, kind, bind.Name)
		}
	case model.BindInput:
		declared := s.inputs.HasParameter(bind.Name)
		if artifact {
			declared = s.inputs.HasArtifact(bind.Name)
		}
		if !declared {
			return model.Bindingf("step %s input %s: no template %s input %q", consumer, input, kind, bind.Name)
		}
	case model.BindLiteral:
		if artifact {
			return model.Bindingf("step %s input %s: artifacts cannot be literal values", consumer, input)
		}
	case model.BindUpload:
		if !artifact {
			return model.Bindingf("step %s input %s: parameters cannot be uploads", consumer, input)
		}
		if len(bind.Paths) == 0 {
			return model.Bindingf("step %s input %s: upload has no paths", consumer, input)
		}
	default:
		return model.Bindingf("step %s input %s: unknown binding kind %q", consumer, input, bind.Kind)
	}
	return nil
}
