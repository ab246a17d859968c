package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sourceplane/apexflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWork(t *testing.T) string {
	t.Helper()
	work := t.TempDir()
	for _, conf := range []string{"confs/std-fcc", "confs/std-bcc"} {
		require.NoError(t, os.MkdirAll(filepath.Join(work, conf), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(work, conf, "POSCAR"), []byte(conf), 0o644))
	}
	return work
}

func writeParam(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "param.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuiltin_RegistersCatalog(t *testing.T) {
	r := Builtin()
	assert.Equal(t, []string{
		"props-collect", "props-distribute", "props-make", "props-post",
		"relax-make", "relax-post", "run-abacus", "run-lammps", "run-vasp",
	}, r.Names())

	sig, ok := r.Signature("run-vasp")
	require.True(t, ok)
	assert.Equal(t, RunSignature, sig)

	_, err := r.Lookup("nope")
	assert.Error(t, err)
}

func TestRelaxOperations(t *testing.T) {
	ctx := context.Background()
	work := setupWork(t)
	param := writeParam(t, `{"structures":["confs/std-*"],"interaction":{"type":"eam"},"relaxation":{}}`)

	made, err := relaxMake(ctx, &Task{
		Name: "relax-make", Dir: t.TempDir(),
		Artifacts: map[string][]string{"input": {work}, "param": {param}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, made.Parameters["njobs"])
	assert.Equal(t, []string{"task.000000", "task.000001"}, made.Parameters["task_names"])
	require.Len(t, made.Artifacts["task_paths"], 2)
	assert.FileExists(t, filepath.Join(made.Artifacts["task_paths"][0], "POSCAR"))
	assert.Empty(t, made.Missing(RelaxMakeSignature.Outputs))

	var backward []string
	for _, p := range made.Artifacts["task_paths"] {
		ran, err := runCalculation(ctx, &Task{
			Name: "run", Key: "relaxcal", Dir: t.TempDir(),
			Artifacts:  map[string][]string{"input_task": {p}},
			Parameters: map[string]any{"run_command": "echo done > CONTCAR"},
		})
		require.NoError(t, err)
		backward = append(backward, ran.Artifacts["backward_dir"]...)
	}
	assert.FileExists(t, filepath.Join(backward[0], "CONTCAR"))

	post, err := relaxPost(ctx, &Task{
		Name: "relax-post", Dir: t.TempDir(),
		Artifacts: map[string][]string{
			"input_post": backward, "input_all": made.Artifacts["output"], "param": {param},
		},
		Parameters: map[string]any{"path": work},
	})
	require.NoError(t, err)
	all := post.Artifacts["output_all"][0]
	assert.FileExists(t, filepath.Join(all, "confs/std-bcc/relaxation/relax_task/CONTCAR"))
	assert.FileExists(t, filepath.Join(all, "confs/std-fcc/relaxation/relax_task/CONTCAR"))
	assert.FileExists(t, filepath.Join(all, "relaxation_summary.json"))

	// inputs are read-only
	assert.NoDirExists(t, filepath.Join(work, "confs/std-bcc/relaxation"))
}

func TestRunCalculation_FailingCommand(t *testing.T) {
	src := t.TempDir()
	_, err := runCalculation(context.Background(), &Task{
		Name: "run", Key: "relaxcal-3", Dir: t.TempDir(),
		Artifacts:  map[string][]string{"input_task": {src}},
		Parameters: map[string]any{"run_command": "exit 3"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relaxcal-3")
}

func TestRunCalculation_EmptyCommandIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	_, err := runCalculation(context.Background(), &Task{
		Name: "run", Key: "relaxcal-0", Dir: dir,
		Artifacts:  map[string][]string{"input_task": {t.TempDir()}},
		Parameters: map[string]any{"run_command": "  "},
	})
	assert.ErrorIs(t, err, model.ErrConfiguration)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is copied when there is nothing to run")
}

func TestPropertyOperations(t *testing.T) {
	ctx := context.Background()
	work := setupWork(t)
	param := writeParam(t, `{
  "structures": ["confs/std-*"],
  "interaction": {"type": "eam"},
  "properties": [
    {"type": "eos", "ntasks": 3},
    {"type": "elastic", "skip": true},
    {"type": "surface", "suffix": "01", "refine": true, "ntasks": 0}
  ]
}`)

	dist, err := propsDistribute(ctx, &Task{
		Name: "distributor", Dir: t.TempDir(),
		Artifacts: map[string][]string{"input_work_path": {work}, "param": {param}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, dist.Parameters["nflows"])
	assert.Equal(t, []any{
		"confs/std-bcc/eos_00", "confs/std-bcc/surface_01",
		"confs/std-fcc/eos_00", "confs/std-fcc/surface_01",
	}, dist.Parameters["path_to_prop"])
	assert.Equal(t, []any{false, true, false, true}, dist.Parameters["do_refine"])
	assert.Len(t, dist.Artifacts["orig_work_path"], 4)
	assert.Empty(t, dist.Missing(PropsDistributeSignature.Outputs))

	prop := dist.Parameters["prop_param"].([]any)[0].(map[string]any)
	made, err := propsMake(ctx, &Task{
		Name: "propsmake", Dir: t.TempDir(),
		Artifacts: map[string][]string{"input_work_path": {work}},
		Parameters: map[string]any{
			"flow_id": "confs/std-bcc/eos_00", "path_to_prop": "confs/std-bcc/eos_00",
			"prop_param": prop, "inter_param": map[string]any{"type": "eam"}, "do_refine": false,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, made.Parameters["njobs"])
	require.Len(t, made.Artifacts["task_paths"], 3)

	post, err := propsPost(ctx, &Task{
		Name: "propspost", Dir: t.TempDir(),
		Artifacts: map[string][]string{"input_post": made.Artifacts["task_paths"], "input_all": {work}},
		Parameters: map[string]any{
			"flow_id": "confs/std-bcc/eos_00", "path_to_prop": "confs/std-bcc/eos_00",
			"prop_param": prop, "task_names": made.Parameters["task_names"],
		},
	})
	require.NoError(t, err)

	collected, err := propsCollect(ctx, &Task{
		Name: "collector", Dir: t.TempDir(),
		Artifacts: map[string][]string{"input_all": {work}, "input_post": post.Artifacts["output_post"], "param": {param}},
	})
	require.NoError(t, err)
	all := collected.Artifacts["output_all"][0]
	assert.FileExists(t, filepath.Join(all, "confs/std-bcc/eos_00/result.json"))
	assert.FileExists(t, filepath.Join(all, "confs/std-bcc/eos_00/task.000002/POSCAR"))
	assert.FileExists(t, filepath.Join(all, "confs/std-fcc/POSCAR"))
}

func TestPropsCollect_ZeroGroups(t *testing.T) {
	work := setupWork(t)
	out, err := propsCollect(context.Background(), &Task{
		Name: "collector", Dir: t.TempDir(),
		Artifacts: map[string][]string{"input_all": {work}, "input_post": {}, "param": {}},
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out.Artifacts["output_all"][0], "confs/std-fcc/POSCAR"))
}

func TestPropsMake_ZeroTasks(t *testing.T) {
	work := setupWork(t)
	out, err := propsMake(context.Background(), &Task{
		Name: "propsmake", Dir: t.TempDir(),
		Artifacts: map[string][]string{"input_work_path": {work}},
		Parameters: map[string]any{
			"path_to_prop": "confs/std-fcc/surface_01",
			"prop_param":   map[string]any{"type": "surface", "ntasks": 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Parameters["njobs"])
	assert.Empty(t, out.Artifacts["task_paths"])
}
