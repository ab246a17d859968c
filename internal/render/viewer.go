package render

import (
	"fmt"
	"strings"

	"github.com/sourceplane/apexflow/internal/model"
)

// PlanViewer provides human-readable visualization of a manifest DAG
type PlanViewer struct {
	manifest *model.Manifest
}

// NewPlanViewer creates a new plan viewer
func NewPlanViewer(m *model.Manifest) *PlanViewer {
	return &PlanViewer{manifest: m}
}

// ViewDAG returns a tree view of the steps in execution order
func (pv *PlanViewer) ViewDAG() string {
	if len(pv.manifest.Steps) == 0 {
		return "No steps in workflow"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s [%s] %s\n", pv.manifest.Metadata.Name, pv.manifest.Spec.FlowType, pv.manifest.Spec.WorkDir))
	total := writeSteps(&sb, pv.manifest.Steps, "")

	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("Summary: %d steps, %d including templates\n", len(pv.manifest.Steps), total))
	return sb.String()
}

func writeSteps(sb *strings.Builder, steps []model.PlanStep, indent string) int {
	count := 0
	for i, step := range steps {
		count++
		isLast := i == len(steps)-1

		prefix := indent + "├─ "
		connector := indent + "│  "
		if isLast {
			prefix = indent + "└─ "
			connector = indent + "   "
		}

		line := fmt.Sprintf("%s%s [%s]", prefix, step.Key, step.Phase)
		if step.Operation != "" {
			line += " " + step.Operation
		}
		if step.Fanout != nil {
			line += fmt.Sprintf(" (fan-out over %s)", describeBinding(step.Fanout.Count))
		}
		if step.Executor != nil {
			line += fmt.Sprintf(" @%s", step.Executor.ContextType)
		}
		sb.WriteString(line + "\n")

		for _, dep := range step.DependsOn {
			sb.WriteString(fmt.Sprintf("%s  (depends on) %s\n", connector, dep))
		}
		if step.Template != nil {
			sb.WriteString(fmt.Sprintf("%s  template %s\n", connector, step.Template.Name))
			count += writeSteps(sb, step.Template.Steps, connector+"  ")
		}
	}
	return count
}

func describeBinding(b model.Binding) string {
	switch b.Kind {
	case model.BindOutput:
		return b.Step + "." + b.Name
	case model.BindInput:
		return "input." + b.Name
	case model.BindLiteral:
		return fmt.Sprintf("%v", b.Value)
	}
	return string(b.Kind)
}
