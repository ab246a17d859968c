package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/planner"
	"gopkg.in/yaml.v3"
)

const (
	APIVersion   = "apexflow.sourceplane.io/v1"
	ManifestKind = "Workflow"
)

// Renderer turns a composed graph into a Manifest
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderManifest lists the steps of g in execution order. Embedded templates
// are rendered with their own steps; executor secrets are masked.
func (r *Renderer) RenderManifest(g *planner.Graph, metadata model.Metadata, spec model.ManifestSpec) (*model.Manifest, error) {
	steps, err := r.convertSteps(g)
	if err != nil {
		return nil, err
	}
	return &model.Manifest{
		APIVersion: APIVersion,
		Kind:       ManifestKind,
		Metadata:   metadata,
		Spec:       spec,
		Steps:      steps,
	}, nil
}

func (r *Renderer) convertSteps(g *planner.Graph) ([]model.PlanStep, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	steps := make([]model.PlanStep, 0, len(order))
	for _, n := range order {
		step := model.PlanStep{
			Name:       n.Name,
			Key:        n.Key,
			Phase:      n.Phase,
			Operation:  n.Operation,
			Image:      n.Image,
			Command:    n.Command,
			Artifacts:  n.Artifacts,
			Parameters: n.Parameters,
			Outputs:    n.Exposed(),
			DependsOn:  n.DependsOn(),
			Fanout:     n.Fanout,
			Executor:   n.Executor.Redacted(),
		}
		if n.IsTemplate() {
			tpl, err := r.convertTemplate(n.Template)
			if err != nil {
				return nil, fmt.Errorf("step %s: %w", n.Name, err)
			}
			step.Template = tpl
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (r *Renderer) convertTemplate(t planner.Template) (*model.PlanTemplate, error) {
	body, ok := planner.TemplateBody(t)
	if !ok {
		return nil, fmt.Errorf("template %s cannot be rendered", t.Name())
	}
	steps, err := r.convertSteps(body)
	if err != nil {
		return nil, err
	}
	return &model.PlanTemplate{
		Name:    t.Name(),
		Inputs:  t.DeclareInputs(),
		Outputs: body.Outputs,
		Steps:   steps,
	}, nil
}

// RenderJSON renders manifest as JSON
func (r *Renderer) RenderJSON(m *model.Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// RenderYAML renders manifest as YAML
func (r *Renderer) RenderYAML(m *model.Manifest) ([]byte, error) {
	return yaml.Marshal(m)
}

// WriteManifest writes manifest to file (JSON or YAML based on extension)
func (r *Renderer) WriteManifest(m *model.Manifest, path string) error {
	var data []byte
	var err error

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = r.RenderYAML(m)
	default:
		data, err = r.RenderJSON(m)
	}
	if err != nil {
		return fmt.Errorf("failed to render manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest to %s: %w", path, err)
	}
	return nil
}

// DebugDump outputs debug information about the manifest
func (r *Renderer) DebugDump(m *model.Manifest) string {
	output := fmt.Sprintf("Workflow: %s (%s)\n", m.Metadata.Name, m.Spec.FlowType)
	output += fmt.Sprintf("Work dir: %s\n", m.Spec.WorkDir)
	output += fmt.Sprintf("Steps: %d\n\n", len(m.Steps))

	for _, step := range m.Steps {
		output += dumpStep(step, "")
	}
	return output
}

func dumpStep(step model.PlanStep, indent string) string {
	output := fmt.Sprintf("%sStep: %s (key %s)\n", indent, step.Name, step.Key)
	output += fmt.Sprintf("%s  Phase: %s\n", indent, step.Phase)
	if step.Operation != "" {
		output += fmt.Sprintf("%s  Operation: %s\n", indent, step.Operation)
	}
	if step.Image != "" {
		output += fmt.Sprintf("%s  Image: %s\n", indent, step.Image)
	}
	output += fmt.Sprintf("%s  DependsOn: %v\n", indent, step.DependsOn)
	if step.Fanout != nil {
		output += fmt.Sprintf("%s  Fanout: count=%s.%s\n", indent, step.Fanout.Count.Step, step.Fanout.Count.Name)
	}
	if step.Executor != nil {
		output += fmt.Sprintf("%s  Executor: %s\n", indent, step.Executor.ContextType)
	}
	if step.Template != nil {
		output += fmt.Sprintf("%s  Template: %s\n", indent, step.Template.Name)
		for _, inner := range step.Template.Steps {
			output += dumpStep(inner, indent+"    ")
		}
	}
	return output + "\n"
}
