package flow

import (
	"fmt"

	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/ops"
	"github.com/sourceplane/apexflow/internal/planner"
)

// PropertyInputs are the inputs of one property group
var PropertyInputs = model.Ports{
	Artifacts:  []string{"input_work_path"},
	Parameters: []string{"flow_id", "path_to_prop", "prop_param", "inter_param", "do_refine"},
}

// PropertyPipeline is Make -> Fanout(Run) -> Post over the tasks of one
// property group. Embedded in a fanned-out step it runs once per group.
type PropertyPipeline struct {
	*planner.GraphTemplate
}

// NewPropertyPipeline builds the template. Every inner run replica gets the
// factory's executor unchanged.
func (f Factory) NewPropertyPipeline() (*PropertyPipeline, error) {
	b := planner.NewTemplateBuilder("simple-property-flow", PropertyInputs)

	mk, err := b.Add(planner.StepSpec{
		Name:      StepPropsMake,
		Key:       "propsmake",
		Phase:     model.PhaseMake,
		Operation: ops.PropsMake,
		Signature: ops.PropsMakeSignature,
		Image:     f.MakeImage,
		Command:   f.pythonCommand(),
		Artifacts: map[string]model.Binding{"input_work_path": model.Input("input_work_path")},
		Parameters: map[string]model.Binding{
			"flow_id":      model.Input("flow_id"),
			"path_to_prop": model.Input("path_to_prop"),
			"prop_param":   model.Input("prop_param"),
			"inter_param":  model.Input("inter_param"),
			"do_refine":    model.Input("do_refine"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("property pipeline: %w", err)
	}

	run, err := b.Add(f.runStep(StepPropsRun, "propscal-run-{{.Item}}", mk))
	if err != nil {
		return nil, fmt.Errorf("property pipeline: %w", err)
	}

	post, err := b.Add(planner.StepSpec{
		Name:      StepPropsPost,
		Key:       "propspost",
		Phase:     model.PhasePost,
		Operation: ops.PropsPost,
		Signature: ops.PropsPostSignature,
		Image:     f.PostImage,
		Command:   f.pythonCommand(),
		Artifacts: map[string]model.Binding{
			"input_post": run.Artifact("backward_dir"),
			"input_all":  model.Input("input_work_path"),
		},
		Parameters: map[string]model.Binding{
			"flow_id":      model.Input("flow_id"),
			"path_to_prop": model.Input("path_to_prop"),
			"prop_param":   model.Input("prop_param"),
			"task_names":   mk.Parameter("task_names"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("property pipeline: %w", err)
	}

	if err := b.OutputArtifact("output_post", post.Artifact("output_post")); err != nil {
		return nil, fmt.Errorf("property pipeline: %w", err)
	}

	body, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("property pipeline: %w", err)
	}
	return &PropertyPipeline{GraphTemplate: planner.NewGraphTemplate(body)}, nil
}

// runStep is the fanned-out Run phase over the tasks prepared by mk
func (f Factory) runStep(name, key string, mk *planner.StepNode) planner.StepSpec {
	return planner.StepSpec{
		Name:       name,
		Key:        key,
		Phase:      model.PhaseRun,
		Operation:  f.Calculator.RunOperation(),
		Signature:  ops.RunSignature,
		Image:      f.RunImage,
		Command:    f.pythonCommand(),
		Artifacts:  map[string]model.Binding{"input_task": mk.Artifact("task_paths")},
		Parameters: map[string]model.Binding{"run_command": model.Literal(f.RunCommand)},
		Fanout: &model.FanoutSpec{
			Count:           mk.Parameter("njobs"),
			SliceArtifacts:  []string{"input_task"},
			GatherArtifacts: []string{"backward_dir"},
			GroupSize:       f.GroupSize,
		},
		Executor: f.Executor,
	}
}
