package flow

import (
	"fmt"
	"strings"

	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/ops"
	"github.com/sourceplane/apexflow/internal/planner"
)

// Compose builds the pipeline for one working directory.
//
//	relax: Make -> Fanout(Run) -> Post
//	props: Distribute(work dir) -> Fanout(PropertyPipeline) -> Collect
//	joint: relax, whose Post output replaces the work dir as Distribute input
func (f Factory) Compose(desc model.FlowDescriptor) (*planner.Graph, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if f.Calculator == "" {
		return nil, model.Configf("no calculator selected for %s", desc)
	}
	if strings.TrimSpace(f.RunCommand) == "" {
		return nil, model.Configf("no run command for %s: set run_command or %s_run_command", f.Calculator, f.Calculator)
	}

	b := planner.NewBuilder(fmt.Sprintf("apex-%s", desc.Type))

	var relaxed model.Binding
	if desc.Type.NeedsRelax() {
		post, err := f.addRelax(b, desc)
		if err != nil {
			return nil, err
		}
		relaxed = post.Artifact("output_all")
	}

	if desc.Type.NeedsProps() {
		workPath := model.Upload(desc.WorkDir)
		if desc.Type == model.FlowJoint {
			workPath = relaxed
		}
		if err := f.addProps(b, desc, workPath); err != nil {
			return nil, err
		}
	}

	return b.Build()
}

func (f Factory) addRelax(b *planner.Builder, desc model.FlowDescriptor) (*planner.StepNode, error) {
	mk, err := b.Add(planner.StepSpec{
		Name:      StepRelaxMake,
		Key:       "relaxmake",
		Phase:     model.PhaseMake,
		Operation: ops.RelaxMake,
		Signature: ops.RelaxMakeSignature,
		Image:     f.MakeImage,
		Command:   f.pythonCommand(),
		Artifacts: map[string]model.Binding{
			"input": model.Upload(desc.WorkDir),
			"param": model.Upload(desc.RelaxParam),
		},
	})
	if err != nil {
		return nil, err
	}

	run, err := b.Add(f.runStep(StepRelaxRun, "relaxcal-{{.Item}}", mk))
	if err != nil {
		return nil, err
	}

	return b.Add(planner.StepSpec{
		Name:      StepRelaxPost,
		Key:       "relaxpost",
		Phase:     model.PhasePost,
		Operation: ops.RelaxPost,
		Signature: ops.RelaxPostSignature,
		Image:     f.PostImage,
		Command:   f.pythonCommand(),
		Artifacts: map[string]model.Binding{
			"input_post": run.Artifact("backward_dir"),
			"input_all":  mk.Artifact("output"),
			"param":      model.Upload(desc.RelaxParam),
		},
		Parameters: map[string]model.Binding{"path": model.Literal(desc.WorkDir)},
	})
}

func (f Factory) addProps(b *planner.Builder, desc model.FlowDescriptor, workPath model.Binding) error {
	dist, err := b.Add(planner.StepSpec{
		Name:      StepPropsDistribute,
		Key:       "distributor",
		Phase:     model.PhaseDistribute,
		Operation: ops.PropsDistribute,
		Signature: ops.PropsDistributeSignature,
		Image:     f.MakeImage,
		Command:   f.pythonCommand(),
		Artifacts: map[string]model.Binding{
			"input_work_path": workPath,
			"param":           model.Upload(desc.PropsParam),
		},
	})
	if err != nil {
		return err
	}

	pipeline, err := f.NewPropertyPipeline()
	if err != nil {
		return err
	}

	params := make(map[string]model.Binding, len(PropertyInputs.Parameters))
	for _, name := range PropertyInputs.Parameters {
		params[name] = dist.Parameter(name)
	}
	cal, err := b.Add(planner.StepSpec{
		Name:       StepPropsCal,
		Key:        "propscal-{{.Item}}",
		Phase:      model.PhaseRun,
		Template:   pipeline,
		Artifacts:  map[string]model.Binding{"input_work_path": dist.Artifact("orig_work_path")},
		Parameters: params,
		Fanout: &model.FanoutSpec{
			Count:           dist.Parameter("nflows"),
			SliceArtifacts:  []string{"input_work_path"},
			SliceParameters: PropertyInputs.Parameters,
			GatherArtifacts: []string{"output_post"},
		},
	})
	if err != nil {
		return err
	}

	_, err = b.Add(planner.StepSpec{
		Name:      StepPropsCollect,
		Key:       "collector",
		Phase:     model.PhaseCollect,
		Operation: ops.PropsCollect,
		Signature: ops.PropsCollectSignature,
		Image:     f.PostImage,
		Command:   f.pythonCommand(),
		Artifacts: map[string]model.Binding{
			"input_all":  workPath,
			"input_post": cal.Artifact("output_post"),
			"param":      model.Upload(desc.PropsParam),
		},
	})
	return err
}
