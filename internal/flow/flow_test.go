package flow

import (
	"testing"

	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFactory() Factory {
	s := config.Settings{
		ApexImageName: "apex:latest",
		RunImageName:  "run:latest",
		LammpsRunCmd:  "lmp -in in.lammps",
		GroupSize:     4,
	}
	exec := &model.ExecutorDescriptor{ContextType: "Bohrium", Machine: map[string]any{"batch_type": "Bohrium"}}
	return NewFactory(s, model.CalculatorLAMMPS, exec)
}

func descriptor(ft model.FlowType) model.FlowDescriptor {
	d := model.FlowDescriptor{Type: ft, WorkDir: "/work"}
	if ft.NeedsRelax() {
		d.RelaxParam = "/relax.json"
	}
	if ft.NeedsProps() {
		d.PropsParam = "/props.json"
	}
	return d
}

func stepNames(g *planner.Graph) []string {
	names := make([]string, 0)
	for _, n := range g.Steps() {
		names = append(names, n.Name)
	}
	return names
}

func TestCompose_EveryFlowTypeValidates(t *testing.T) {
	f := testFactory()
	want := map[model.FlowType][]string{
		model.FlowRelax: {StepRelaxMake, StepRelaxRun, StepRelaxPost},
		model.FlowProps: {StepPropsDistribute, StepPropsCal, StepPropsCollect},
		model.FlowJoint: {StepRelaxMake, StepRelaxRun, StepRelaxPost, StepPropsDistribute, StepPropsCal, StepPropsCollect},
	}
	for ft, steps := range want {
		t.Run(string(ft), func(t *testing.T) {
			g, err := f.Compose(descriptor(ft))
			require.NoError(t, err)
			assert.Equal(t, steps, stepNames(g))
			require.NoError(t, g.Validate())
		})
	}
}

func TestCompose_DistributeInput(t *testing.T) {
	f := testFactory()

	props, err := f.Compose(descriptor(model.FlowProps))
	require.NoError(t, err)
	dist, _ := props.Step(StepPropsDistribute)
	assert.Equal(t, model.Upload("/work"), dist.Artifacts["input_work_path"])
	collect, _ := props.Step(StepPropsCollect)
	assert.Equal(t, dist.Artifacts["input_work_path"], collect.Artifacts["input_all"])

	joint, err := f.Compose(descriptor(model.FlowJoint))
	require.NoError(t, err)
	dist, _ = joint.Step(StepPropsDistribute)
	assert.Equal(t, model.Output(StepRelaxPost, "output_all"), dist.Artifacts["input_work_path"])
	collect, _ = joint.Step(StepPropsCollect)
	assert.Equal(t, dist.Artifacts["input_work_path"], collect.Artifacts["input_all"])
	assert.Equal(t, []string{StepPropsCal, StepRelaxPost}, collect.DependsOn())
}

func TestCompose_RelaxShape(t *testing.T) {
	g, err := testFactory().Compose(descriptor(model.FlowRelax))
	require.NoError(t, err)

	run, _ := g.Step(StepRelaxRun)
	require.NotNil(t, run.Fanout)
	assert.Equal(t, model.Output(StepRelaxMake, "njobs"), run.Fanout.Count)
	assert.Equal(t, "relaxcal-{{.Item}}", run.Key)
	assert.Equal(t, "run-lammps", run.Operation)
	assert.Equal(t, "run:latest", run.Image)
	assert.Equal(t, model.Literal("lmp -in in.lammps"), run.Parameters["run_command"])
	assert.Equal(t, 4, run.Fanout.GroupSize)

	post, _ := g.Step(StepRelaxPost)
	assert.Equal(t, model.Literal("/work"), post.Parameters["path"])
	assert.Equal(t, model.Output(StepRelaxRun, "backward_dir"), post.Artifacts["input_post"])
	assert.Nil(t, post.Executor)
}

func TestCompose_TwoLevelFanoutSharesExecutor(t *testing.T) {
	f := testFactory()
	g, err := f.Compose(descriptor(model.FlowProps))
	require.NoError(t, err)

	cal, _ := g.Step(StepPropsCal)
	require.True(t, cal.IsTemplate())
	assert.Equal(t, model.Output(StepPropsDistribute, "nflows"), cal.Fanout.Count)
	assert.ElementsMatch(t, PropertyInputs.Parameters, cal.Fanout.SliceParameters)
	assert.Equal(t, []string{"output_post"}, cal.Exposed().Artifacts)

	// two outer replicas expand independently and see the same executor
	var inner []*planner.StepNode
	for i := 0; i < 2; i++ {
		bindings := map[string]model.Binding{"input_work_path": model.Upload("/work")}
		for _, p := range PropertyInputs.Parameters {
			bindings[p] = model.Literal(i)
		}
		sub, err := cal.Template.Expand(bindings)
		require.NoError(t, err)
		run, ok := sub.Step(StepPropsRun)
		require.True(t, ok)
		require.NotNil(t, run.Fanout)
		assert.Equal(t, model.Output(StepPropsMake, "njobs"), run.Fanout.Count)
		inner = append(inner, run)
	}
	assert.Same(t, f.Executor, inner[0].Executor)
	assert.Same(t, inner[0].Executor, inner[1].Executor)

	mk0, _ := mustExpand(t, cal, 0).Step(StepPropsMake)
	mk1, _ := mustExpand(t, cal, 1).Step(StepPropsMake)
	assert.NotEqual(t, mk0.Parameters["flow_id"], mk1.Parameters["flow_id"])
}

func mustExpand(t *testing.T, n *planner.StepNode, v int) *planner.Graph {
	t.Helper()
	bindings := map[string]model.Binding{"input_work_path": model.Upload("/work")}
	for _, p := range PropertyInputs.Parameters {
		bindings[p] = model.Literal(v)
	}
	g, err := n.Template.Expand(bindings)
	require.NoError(t, err)
	return g
}

func TestCompose_RejectsIncompleteDescriptor(t *testing.T) {
	f := testFactory()
	_, err := f.Compose(model.FlowDescriptor{Type: model.FlowJoint, WorkDir: "/w", RelaxParam: "/r"})
	assert.ErrorIs(t, err, model.ErrConfiguration)

	f.Calculator = ""
	_, err = f.Compose(descriptor(model.FlowRelax))
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestCompose_RequiresRunCommand(t *testing.T) {
	f := NewFactory(config.Settings{ApexImageName: "apex", VaspRunCmd: "mpirun vasp_std"}, model.CalculatorLAMMPS, nil)
	for _, ft := range []model.FlowType{model.FlowRelax, model.FlowProps, model.FlowJoint} {
		_, err := f.Compose(descriptor(ft))
		require.Error(t, err, ft)
		assert.ErrorIs(t, err, model.ErrConfiguration)
		assert.Contains(t, err.Error(), "lammps_run_command")
	}
}

func TestNewFactory_PicksCalculatorSettings(t *testing.T) {
	s := config.Settings{ApexImageName: "apex", RunImageName: "generic", VaspImageName: "vasp", RunCommand: "mpirun vasp_std"}
	f := NewFactory(s, model.CalculatorVASP, nil)
	assert.Equal(t, "vasp", f.RunImage)
	assert.Equal(t, "apex", f.MakeImage)
	assert.Equal(t, "apex", f.PostImage)
	assert.Equal(t, "mpirun vasp_std", f.RunCommand)
	assert.Nil(t, f.Executor)
}
