package planner

import (
	"github.com/sourceplane/apexflow/internal/model"
)

// Template is a pipeline parameterized by declared inputs and outputs. A step
// that embeds a Template is expanded into its subgraph at run time, once per
// replica when the step fans out.
type Template interface {
	Name() string
	DeclareInputs() model.Ports
	DeclareOutputs() model.Ports
	Expand(bindings map[string]model.Binding) (*Graph, error)
}

// TemplateBody returns the unexpanded graph behind t, if it exposes one
func TemplateBody(t Template) (*Graph, bool) {
	b, ok := t.(interface{ Body() *Graph })
	if !ok {
		return nil, false
	}
	return b.Body(), true
}

// GraphTemplate is a Template backed by a graph built with NewTemplateBuilder
type GraphTemplate struct {
	body *Graph
}

// NewGraphTemplate wraps body. Its outputs become the template outputs.
func NewGraphTemplate(body *Graph) *GraphTemplate {
	return &GraphTemplate{body: body}
}

func (t *GraphTemplate) Name() string { return t.body.Name }

func (t *GraphTemplate) DeclareInputs() model.Ports { return t.body.Inputs }

func (t *GraphTemplate) DeclareOutputs() model.Ports { return t.body.OutputPorts }

// Body returns the unexpanded template graph
func (t *GraphTemplate) Body() *Graph { return t.body }

// Expand returns a copy of the body with every template input replaced by
// the matching binding. bindings must cover exactly the declared inputs and
// may not themselves refer to template inputs.
func (t *GraphTemplate) Expand(bindings map[string]model.Binding) (*Graph, error) {
	declared := t.DeclareInputs()
	for _, name := range append(append([]string(nil), declared.Artifacts...), declared.Parameters...) {
		if _, ok := bindings[name]; !ok {
			return nil, model.Bindingf("template %s: input %q is not bound", t.Name(), name)
		}
	}
	for name, b := range bindings {
		if !declared.HasArtifact(name) && !declared.HasParameter(name) {
			return nil, model.Bindingf("template %s: unknown input %q", t.Name(), name)
		}
		switch b.Kind {
		case model.BindLiteral, model.BindUpload:
		default:
			return nil, model.Bindingf("template %s: input %q must be a concrete value, got %s binding", t.Name(), name, b.Kind)
		}
	}

	subst := func(in map[string]model.Binding) map[string]model.Binding {
		out := make(map[string]model.Binding, len(in))
		for k, b := range in {
			if b.Kind == model.BindInput {
				b = bindings[b.Name]
			}
			out[k] = b
		}
		return out
	}

	g := &Graph{
		Name:        t.body.Name,
		Outputs:     subst(t.body.Outputs),
		OutputPorts: t.body.OutputPorts,
		index:       make(map[string]*StepNode, len(t.body.steps)),
	}
	for _, n := range t.body.steps {
		c := n.clone()
		c.Artifacts = subst(n.Artifacts)
		c.Parameters = subst(n.Parameters)
		if c.Fanout != nil && c.Fanout.Count.Kind == model.BindInput {
			c.Fanout.Count = bindings[c.Fanout.Count.Name]
		}
		g.steps = append(g.steps, c)
		g.index[c.Name] = c
	}
	return g, nil
}
