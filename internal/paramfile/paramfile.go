package paramfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourceplane/apexflow/internal/model"
	"gopkg.in/yaml.v3"
)

// ParamFile is a parameter file classified against the known schemas
type ParamFile struct {
	Path       string
	Doc        map[string]any
	Kinds      []Kind
	Calculator model.Calculator
	// Mismatch holds the validation error per kind the file did not match
	Mismatch map[Kind]error
}

// Is reports whether the file matched the schema of kind
func (p *ParamFile) Is(kind Kind) bool {
	for _, k := range p.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Read decodes a JSON or YAML parameter file into JSON-compatible values
func Read(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.Configf("failed to read parameter file: %v", err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, model.Configf("failed to parse parameter file %s: %v", path, err)
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// schema validator and the operations expect
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, model.Configf("parameter file %s is not JSON-compatible: %v", path, err)
	}
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, model.Configf("parameter file %s must be a mapping: %v", path, err)
	}
	return doc, nil
}

// Parse reads path and classifies it against every known schema. A file
// matching none of them is a ConfigurationError.
func Parse(path string) (*ParamFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, model.Configf("failed to resolve parameter file %s: %v", path, err)
	}
	doc, err := Read(abs)
	if err != nil {
		return nil, err
	}

	compiled, err := Schemas()
	if err != nil {
		return nil, err
	}

	pf := &ParamFile{Path: abs, Doc: doc, Mismatch: make(map[Kind]error)}
	for _, kind := range Kinds {
		if err := compiled[kind].Validate(any(doc)); err != nil {
			pf.Mismatch[kind] = err
			continue
		}
		pf.Kinds = append(pf.Kinds, kind)
	}
	if len(pf.Kinds) == 0 {
		reasons := make([]string, 0, len(Kinds))
		for _, kind := range Kinds {
			reasons = append(reasons, fmt.Sprintf("%s: %v", kind, pf.Mismatch[kind]))
		}
		return nil, model.Configf("parameter file %s matches no known schema (%s)", path, strings.Join(reasons, "; "))
	}
	pf.Calculator = CalculatorOf(doc)
	return pf, nil
}

// CalculatorOf selects the calculator from interaction.type. vasp and abacus
// select themselves; every other interaction runs with LAMMPS.
func CalculatorOf(doc map[string]any) model.Calculator {
	inter, _ := doc["interaction"].(map[string]any)
	typ, _ := inter["type"].(string)
	switch model.Calculator(strings.ToLower(typ)) {
	case model.CalculatorVASP:
		return model.CalculatorVASP
	case model.CalculatorABACUS:
		return model.CalculatorABACUS
	}
	return model.CalculatorLAMMPS
}

// Structures returns the structure globs of a parameter document
func Structures(doc map[string]any) []string {
	list, _ := doc["structures"].([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Interaction returns the interaction block of a parameter document
func Interaction(doc map[string]any) map[string]any {
	inter, _ := doc["interaction"].(map[string]any)
	return inter
}

// Properties returns the property tests of a parameter document
func Properties(doc map[string]any) []map[string]any {
	list, _ := doc["properties"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Selection is the outcome of judging the parameter files of a submission
type Selection struct {
	FlowType   model.FlowType
	Calculator model.Calculator
	RelaxParam string
	PropsParam string
}

// Judge decides the flow type from one or two parameter files. override,
// when set, narrows the detected flow; asking for a phase no file provides
// is a ConfigurationError.
func Judge(paths []string, override model.FlowType) (Selection, error) {
	var files []*ParamFile
	for _, p := range paths {
		pf, err := Parse(p)
		if err != nil {
			return Selection{}, err
		}
		files = append(files, pf)
	}

	var relax, props *ParamFile
	switch len(files) {
	case 1:
		if files[0].Is(KindRelax) {
			relax = files[0]
		}
		if files[0].Is(KindProps) {
			props = files[0]
		}
	case 2:
		a, b := files[0], files[1]
		switch {
		case a.Is(KindRelax) && b.Is(KindProps):
			relax, props = a, b
		case b.Is(KindRelax) && a.Is(KindProps):
			relax, props = b, a
		default:
			return Selection{}, model.Configf("with two parameter files one must be a relaxation file and the other a property file (%s, %s)", a.Path, b.Path)
		}
	default:
		return Selection{}, model.Configf("expected one or two parameter files, got %d", len(files))
	}

	detected := model.FlowJoint
	switch {
	case relax == nil:
		detected = model.FlowProps
	case props == nil:
		detected = model.FlowRelax
	}

	flowType := detected
	if override != "" {
		if override.NeedsRelax() && relax == nil {
			return Selection{}, model.Configf("flow type %s needs a relaxation parameter file", override)
		}
		if override.NeedsProps() && props == nil {
			return Selection{}, model.Configf("flow type %s needs a property parameter file", override)
		}
		flowType = override
	}

	sel := Selection{FlowType: flowType}
	if flowType.NeedsRelax() {
		sel.RelaxParam = relax.Path
		sel.Calculator = relax.Calculator
	}
	if flowType.NeedsProps() {
		sel.PropsParam = props.Path
		if sel.Calculator != "" && sel.Calculator != props.Calculator {
			return Selection{}, model.Configf("calculator mismatch: %s uses %s, %s uses %s",
				relax.Path, relax.Calculator, props.Path, props.Calculator)
		}
		sel.Calculator = props.Calculator
	}
	return sel, nil
}
