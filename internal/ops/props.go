package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/normalize"
	"github.com/sourceplane/apexflow/internal/paramfile"
)

// propsDistribute splits the property tests into independent groups, one
// per structure and non-skipped property.
func propsDistribute(ctx context.Context, t *Task) (model.Values, error) {
	out := model.NewValues()
	work, err := t.single("input_work_path")
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
	inter := paramfile.Interaction(doc)

	var (
		flowIDs   = make([]any, 0)
		paths     = make([]any, 0)
		props     = make([]any, 0)
		inters    = make([]any, 0)
		refines   = make([]any, 0)
		workPaths = make([]string, 0)
	)
	for _, conf := range confs {
		for _, prop := range paramfile.Properties(doc) {
			if skip, _ := prop["skip"].(bool); skip {
				continue
			}
			typ, _ := prop["type"].(string)
			suffix, _ := prop["suffix"].(string)
			if suffix == "" {
				suffix = "00"
			}
			refine, _ := prop["refine"].(bool)

			pathToProp := filepath.Join(conf, typ+"_"+suffix)
			flowIDs = append(flowIDs, pathToProp)
			paths = append(paths, pathToProp)
			props = append(props, prop)
			inters = append(inters, inter)
			refines = append(refines, refine)
			workPaths = append(workPaths, work)
		}
	}

	ctxlog.FromContext(ctx).Debug("distributed property groups", "step", t.Key, "nflows", len(flowIDs))
	out.Parameters["nflows"] = len(flowIDs)
	out.Parameters["flow_id"] = flowIDs
	out.Parameters["path_to_prop"] = paths
	out.Parameters["prop_param"] = props
	out.Parameters["inter_param"] = inters
	out.Parameters["do_refine"] = refines
	out.Artifacts["orig_work_path"] = workPaths
	return out, nil
}

// propsMake prepares the tasks of one property group. The number of tasks
// comes from the property's ntasks option and defaults to one.
func propsMake(ctx context.Context, t *Task) (model.Values, error) {
	out := model.NewValues()
	work, err := t.single("input_work_path")
	if err != nil {
		return out, err
	}
	pathToProp, err := t.stringParam("path_to_prop")
	if err != nil {
		return out, err
	}
	flowID, _ := t.Parameters["flow_id"].(string)
	prop, _ := t.Parameters["prop_param"].(map[string]any)
	inter, _ := t.Parameters["inter_param"].(map[string]any)
	refine, _ := t.Parameters["do_refine"].(bool)

	ntasks, err := intOption(prop, "ntasks", 1)
	if err != nil {
		return out, fmt.Errorf("%s: %w", t.Name, err)
	}

	conf := filepath.Dir(pathToProp)
	src := filepath.Join(work, conf)
	if _, err := os.Stat(src); err != nil {
		return out, fmt.Errorf("%s: structure %s not found in %s", t.Name, conf, work)
	}

	names := make([]string, 0, ntasks)
	paths := make([]string, 0, ntasks)
	for i := 0; i < ntasks; i++ {
		name := taskName(i)
		dir := filepath.Join(t.Dir, pathToProp, name)
		if err := copyTree(src, dir); err != nil {
			return out, err
		}
		info := taskInfo{
			Index:       i,
			Conf:        conf,
			FlowID:      flowID,
			PathToProp:  pathToProp,
			Property:    prop,
			Interaction: inter,
			Refine:      refine,
		}
		if err := writeJSON(filepath.Join(dir, TaskFile), info); err != nil {
			return out, err
		}
		names = append(names, name)
		paths = append(paths, dir)
	}

	ctxlog.FromContext(ctx).Debug("prepared property tasks", "step", t.Key, "flow", flowID, "njobs", ntasks)
	out.Parameters["njobs"] = ntasks
	out.Parameters["task_names"] = names
	out.Artifacts["task_paths"] = paths
	return out, nil
}

// propsPost gathers the task results of one group under its property path
func propsPost(ctx context.Context, t *Task) (model.Values, error) {
	out := model.NewValues()
	work, err := t.single("input_all")
	if err != nil {
		return out, err
	}
	pathToProp, err := t.stringParam("path_to_prop")
	if err != nil {
		return out, err
	}
	flowID, _ := t.Parameters["flow_id"].(string)
	prop, _ := t.Parameters["prop_param"].(map[string]any)

	results := t.Artifacts["input_post"]
	result := filepath.Join(t.Dir, "output_post")
	dst := filepath.Join(result, pathToProp)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return out, err
	}
	for i, dir := range results {
		if err := copyTree(dir, filepath.Join(dst, taskName(i))); err != nil {
			return out, err
		}
	}

	summary := map[string]any{
		"flow_id":    flowID,
		"work_path":  work,
		"property":   prop,
		"task_names": t.Parameters["task_names"],
		"ntasks":     len(results),
	}
	if err := writeJSON(filepath.Join(dst, "result.json"), summary); err != nil {
		return out, err
	}
	ctxlog.FromContext(ctx).Debug("collected property results", "step", t.Key, "flow", flowID, "tasks", len(results))
	out.Artifacts["output_post"] = []string{result}
	return out, nil
}

// propsCollect overlays every group result onto a copy of the work path.
// With zero groups the result is a plain copy.
func propsCollect(ctx context.Context, t *Task) (model.Values, error) {
	out := model.NewValues()
	work, err := t.single("input_all")
	if err != nil {
		return out, err
	}
	result := filepath.Join(t.Dir, "output_all")
	if err := copyTree(work, result); err != nil {
		return out, err
	}
	for _, dir := range t.Artifacts["input_post"] {
		if err := copyTree(dir, result); err != nil {
			return out, err
		}
	}

	params := t.Artifacts["param"]
	summary := map[string]any{"groups": len(t.Artifacts["input_post"]), "param": params}
	if err := writeJSON(filepath.Join(result, "props_summary.json"), summary); err != nil {
		return out, err
	}
	ctxlog.FromContext(ctx).Debug("collected property groups", "step", t.Key, "groups", len(t.Artifacts["input_post"]))
	out.Artifacts["output_all"] = []string{result}
	return out, nil
}

func intOption(m map[string]any, key string, def int) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	var n int
	switch c := v.(type) {
	case int:
		n = c
	case float64:
		n = int(c)
	case json.Number:
		i, err := c.Int64()
		if err != nil {
			return 0, fmt.Errorf("option %s=%v is not an integer", key, v)
		}
		n = int(i)
	default:
		return 0, fmt.Errorf("option %s has unsupported type %T", key, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("option %s=%d is negative", key, n)
	}
	return n, nil
}
