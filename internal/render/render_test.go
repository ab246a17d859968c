package render

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/flow"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func jointGraph(t *testing.T) *planner.Graph {
	t.Helper()
	exec := &model.ExecutorDescriptor{ContextType: "Bohrium", Password: "secret"}
	f := flow.NewFactory(config.Settings{ApexImageName: "apex", RunImageName: "run", RunCommand: "lmp"}, model.CalculatorLAMMPS, exec)
	g, err := f.Compose(model.FlowDescriptor{
		Type: model.FlowJoint, WorkDir: "/work", RelaxParam: "/relax.json", PropsParam: "/props.json",
	})
	require.NoError(t, err)
	return g
}

func TestRenderManifest(t *testing.T) {
	r := NewRenderer()
	m, err := r.RenderManifest(jointGraph(t), model.Metadata{Name: "apex-joint"}, model.ManifestSpec{FlowType: model.FlowJoint, WorkDir: "/work"})
	require.NoError(t, err)

	assert.Equal(t, APIVersion, m.APIVersion)
	require.Len(t, m.Steps, 6)
	assert.Equal(t, "relaxmake", m.Steps[0].Key)
	assert.Equal(t, "collector", m.Steps[5].Key)

	run := m.Steps[1]
	assert.Equal(t, "******", run.Executor.Password)
	assert.Equal(t, []string{flow.StepRelaxMake}, run.DependsOn)

	cal := m.Steps[4]
	require.NotNil(t, cal.Template)
	assert.Equal(t, "simple-property-flow", cal.Template.Name)
	require.Len(t, cal.Template.Steps, 3)
	assert.Equal(t, "propscal-run-{{.Item}}", cal.Template.Steps[1].Key)
	assert.Equal(t, "******", cal.Template.Steps[1].Executor.Password)
	assert.Equal(t, model.Output(flow.StepPropsPost, "output_post"), cal.Template.Outputs["output_post"])

	data, err := r.RenderJSON(m)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	var back model.Manifest
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.Steps[3].Key, back.Steps[3].Key)

	ydata, err := r.RenderYAML(m)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, yaml.Unmarshal(ydata, &generic))
	assert.Equal(t, "Workflow", generic["kind"])

	dump := r.DebugDump(m)
	assert.Contains(t, dump, "Template: simple-property-flow")
}

func TestRenderJSON_NeverLeaksCredentials(t *testing.T) {
	exec := &model.ExecutorDescriptor{
		ContextType: "Bohrium",
		Password:    "hostpw",
		Machine: map[string]any{
			"remote_profile": map[string]any{"email": "me@example.com", "password": "TOPSECRET"},
		},
	}
	f := flow.NewFactory(config.Settings{ApexImageName: "apex", RunCommand: "lmp"}, model.CalculatorLAMMPS, exec)
	g, err := f.Compose(model.FlowDescriptor{Type: model.FlowJoint, WorkDir: "/work", RelaxParam: "/r.json", PropsParam: "/p.json"})
	require.NoError(t, err)

	r := NewRenderer()
	m, err := r.RenderManifest(g, model.Metadata{Name: "wf"}, model.ManifestSpec{FlowType: model.FlowJoint})
	require.NoError(t, err)
	data, err := r.RenderJSON(m)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "TOPSECRET")
	assert.NotContains(t, string(data), "hostpw")
	assert.Contains(t, string(data), "me@example.com")
	assert.NotContains(t, r.DebugDump(m), "TOPSECRET")
}

func TestWriteManifest(t *testing.T) {
	r := NewRenderer()
	m, err := r.RenderManifest(jointGraph(t), model.Metadata{Name: "wf"}, model.ManifestSpec{})
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"out/plan.json", "out/plan.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, r.WriteManifest(m, path))
		assert.FileExists(t, path)
	}
}

func TestPlanViewer(t *testing.T) {
	m, err := NewRenderer().RenderManifest(jointGraph(t), model.Metadata{Name: "wf"}, model.ManifestSpec{FlowType: model.FlowJoint})
	require.NoError(t, err)

	view := NewPlanViewer(m).ViewDAG()
	assert.Contains(t, view, "relaxcal-{{.Item}} [run] run-lammps (fan-out over relax-make.njobs) @Bohrium")
	assert.Contains(t, view, "template simple-property-flow")
	assert.Contains(t, view, "Summary: 6 steps, 9 including templates")

	assert.Equal(t, "No steps in workflow", NewPlanViewer(&model.Manifest{}).ViewDAG())
}

func TestOutbox_Submit(t *testing.T) {
	dir := t.TempDir()
	o := &Outbox{Dir: dir, Spec: model.ManifestSpec{FlowType: model.FlowJoint, WorkDir: "/work"}}
	id, err := o.Submit(context.Background(), jointGraph(t), model.Metadata{Name: "apex-joint"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "apex-joint-"+id+".json"))
	require.NoError(t, err)
	var m model.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "/work", m.Spec.WorkDir)

	_, err = (&Outbox{}).Submit(context.Background(), jointGraph(t), model.Metadata{Name: "x"})
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
