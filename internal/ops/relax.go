package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/normalize"
	"github.com/sourceplane/apexflow/internal/paramfile"
)

// TaskFile is written into every prepared task directory
const TaskFile = "task.json"

// taskInfo records where a task came from so Post can put its results back
type taskInfo struct {
	Index       int            `json:"index"`
	Conf        string         `json:"conf"`
	FlowID      string         `json:"flow_id,omitempty"`
	PathToProp  string         `json:"path_to_prop,omitempty"`
	Property    map[string]any `json:"property,omitempty"`
	Interaction map[string]any `json:"interaction,omitempty"`
	Relaxation  map[string]any `json:"relaxation,omitempty"`
	Refine      bool           `json:"refine,omitempty"`
}

func taskName(i int) string { return fmt.Sprintf("task.%06d", i) }

// relaxMake prepares one relaxation task per structure directory
func relaxMake(ctx context.Context, t *Task) (model.Values, error) {
	out := model.NewValues()
	work, err := t.single("input")
	if err != nil {
		return out, err
	}
	paramPath, err := t.single("param")
	if err != nil {
		return out, err
	}
	doc, err := paramfile.Read(paramPath)
	if err != nil {
		return out, err
	}
	confs, err := normalize.Structures(work, paramfile.Structures(doc))
	if err != nil {
		return out, err
	}
	relaxation, _ := doc["relaxation"].(map[string]any)

	names := make([]string, 0, len(confs))
	paths := make([]string, 0, len(confs))
	for i, conf := range confs {
		name := taskName(i)
		dir := filepath.Join(t.Dir, "tasks", name)
		if err := copyTree(filepath.Join(work, conf), dir); err != nil {
			return out, err
		}
		info := taskInfo{
			Index:       i,
			Conf:        conf,
			Interaction: paramfile.Interaction(doc),
			Relaxation:  relaxation,
		}
		if err := writeJSON(filepath.Join(dir, TaskFile), info); err != nil {
			return out, err
		}
		names = append(names, name)
		paths = append(paths, dir)
	}

	output := filepath.Join(t.Dir, "output")
	if err := copyTree(work, output); err != nil {
		return out, err
	}

	ctxlog.FromContext(ctx).Debug("prepared relaxation tasks", "step", t.Key, "njobs", len(paths))
	out.Parameters["njobs"] = len(paths)
	out.Parameters["task_names"] = names
	out.Artifacts["task_paths"] = paths
	out.Artifacts["output"] = []string{output}
	return out, nil
}

// relaxPost puts every relaxed task back under its structure directory
func relaxPost(ctx context.Context, t *Task) (model.Values, error) {
	out := model.NewValues()
	all, err := t.single("input_all")
	if err != nil {
		return out, err
	}
	workPath, err := t.stringParam("path")
	if err != nil {
		return out, err
	}

	result := filepath.Join(t.Dir, "output_all")
	if err := copyTree(all, result); err != nil {
		return out, err
	}

	confs := make([]string, 0, len(t.Artifacts["input_post"]))
	for _, dir := range t.Artifacts["input_post"] {
		var info taskInfo
		if err := readJSON(filepath.Join(dir, TaskFile), &info); err != nil {
			return out, fmt.Errorf("%s: task %s: %w", t.Name, dir, err)
		}
		dst := filepath.Join(result, info.Conf, "relaxation", "relax_task")
		if err := os.RemoveAll(dst); err != nil {
			return out, err
		}
		if err := copyTree(dir, dst); err != nil {
			return out, err
		}
		confs = append(confs, info.Conf)
	}

	summary := map[string]any{"work_path": workPath, "structures": confs}
	if err := writeJSON(filepath.Join(result, "relaxation_summary.json"), summary); err != nil {
		return out, err
	}
	ctxlog.FromContext(ctx).Debug("collected relaxation results", "step", t.Key, "tasks", len(confs))
	out.Artifacts["output_all"] = []string{result}
	return out, nil
}
