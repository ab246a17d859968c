package expand

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/sourceplane/apexflow/internal/model"
)

// Replica is one instantiated element of a fanned-out step
type Replica struct {
	Index  int
	Key    string
	Inputs model.Values
}

// Expander instantiates fan-out replicas once their count is known.
// Compiled key templates are cached, so one Expander can serve a whole run.
type Expander struct {
	mu        sync.Mutex
	templates map[string]*template.Template
}

// NewExpander creates a new expander
func NewExpander() *Expander {
	return &Expander{templates: make(map[string]*template.Template)}
}

// Instantiate produces count replicas of a step. Sliced inputs must hold at
// least count elements; replica i receives element i. Inputs not listed in
// spec are passed whole to every replica.
func (e *Expander) Instantiate(spec *model.FanoutSpec, keyTemplate string, count int, in model.Values) ([]Replica, error) {
	if count < 0 {
		return nil, fmt.Errorf("negative replica count %d", count)
	}
	for _, name := range spec.SliceArtifacts {
		if n := len(in.Artifacts[name]); n < count {
			return nil, fmt.Errorf("sliced artifact %q has %d items, need %d", name, n, count)
		}
	}
	sliced := make(map[string]reflect.Value, len(spec.SliceParameters))
	for _, name := range spec.SliceParameters {
		v := reflect.ValueOf(in.Parameters[name])
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, fmt.Errorf("sliced parameter %q is not a list (got %T)", name, in.Parameters[name])
		}
		if v.Len() < count {
			return nil, fmt.Errorf("sliced parameter %q has %d items, need %d", name, v.Len(), count)
		}
		sliced[name] = v
	}

	replicas := make([]Replica, 0, count)
	for i := 0; i < count; i++ {
		key, err := e.renderKey(keyTemplate, i)
		if err != nil {
			return nil, err
		}

		vals := model.NewValues()
		for name, paths := range in.Artifacts {
			if contains(spec.SliceArtifacts, name) {
				vals.Artifacts[name] = []string{paths[i]}
			} else {
				vals.Artifacts[name] = append([]string(nil), paths...)
			}
		}
		for name, v := range in.Parameters {
			if sv, ok := sliced[name]; ok {
				vals.Parameters[name] = sv.Index(i).Interface()
			} else {
				vals.Parameters[name] = v
			}
		}

		replicas = append(replicas, Replica{Index: i, Key: key, Inputs: vals})
	}
	return replicas, nil
}

// Gather collects replica outputs in index order. outs[i] must be the
// outputs of replica i, and each replica must produce exactly one path per
// gathered artifact so that element i of the collection is replica i's.
// Zero replicas yield empty collections.
func Gather(spec *model.FanoutSpec, outs []model.Values) (model.Values, error) {
	gathered := model.NewValues()
	for _, name := range spec.GatherArtifacts {
		paths := make([]string, 0, len(outs))
		for i, out := range outs {
			p, ok := out.Artifacts[name]
			if !ok {
				return gathered, fmt.Errorf("replica %d did not produce artifact %q", i, name)
			}
			if len(p) != 1 {
				return gathered, fmt.Errorf("replica %d produced %d paths for artifact %q, want exactly 1", i, len(p), name)
			}
			paths = append(paths, p[0])
		}
		gathered.Artifacts[name] = paths
	}
	for _, name := range spec.GatherParameters {
		values := make([]any, 0, len(outs))
		for i, out := range outs {
			v, ok := out.Parameters[name]
			if !ok {
				return gathered, fmt.Errorf("replica %d did not produce parameter %q", i, name)
			}
			values = append(values, v)
		}
		gathered.Parameters[name] = values
	}
	return gathered, nil
}

// ResolveCount coerces a count parameter to a non-negative int. Counts arrive
// as ints from Go handlers, float64 or json.Number from decoded documents,
// and strings from files written by external tools.
func ResolveCount(v any) (int, error) {
	var n int
	switch c := v.(type) {
	case int:
		n = c
	case int64:
		n = int(c)
	case float64:
		if c != math.Trunc(c) {
			return 0, fmt.Errorf("replica count %v is not an integer", c)
		}
		n = int(c)
	case json.Number:
		i, err := c.Int64()
		if err != nil {
			return 0, fmt.Errorf("replica count %q is not an integer", c)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			return 0, fmt.Errorf("replica count %q is not an integer", c)
		}
		n = i
	default:
		return 0, fmt.Errorf("replica count has unsupported type %T", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("replica count %d is negative", n)
	}
	return n, nil
}

func (e *Expander) renderKey(keyTemplate string, index int) (string, error) {
	if !strings.Contains(keyTemplate, "{{") {
		return fmt.Sprintf("%s-%d", keyTemplate, index), nil
	}

	e.mu.Lock()
	tmpl, ok := e.templates[keyTemplate]
	if !ok {
		var err error
		tmpl, err = template.New("key").Option("missingkey=error").Parse(keyTemplate)
		if err != nil {
			e.mu.Unlock()
			return "", fmt.Errorf("failed to parse key template %q: %w", keyTemplate, err)
		}
		e.templates[keyTemplate] = tmpl
	}
	e.mu.Unlock()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Item int }{Item: index}); err != nil {
		return "", fmt.Errorf("failed to render key template %q: %w", keyTemplate, err)
	}
	return buf.String(), nil
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
