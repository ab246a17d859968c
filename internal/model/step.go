package model

import "sort"

// Phase is the role a step plays in a Make/Run/Post pipeline
type Phase string

const (
	PhaseMake       Phase = "make"
	PhaseRun        Phase = "run"
	PhasePost       Phase = "post"
	PhaseDistribute Phase = "distribute"
	PhaseCollect    Phase = "collect"
)

// BindingKind says where a step input gets its value from
type BindingKind string

const (
	// BindOutput reads an output of an upstream step in the same graph
	BindOutput BindingKind = "output"
	// BindInput reads a declared input of the enclosing template graph
	BindInput BindingKind = "input"
	// BindLiteral is a parameter value fixed at build time
	BindLiteral BindingKind = "literal"
	// BindUpload is an artifact made of local paths fixed at build time
	BindUpload BindingKind = "upload"
)

// Binding connects one step input to its source
type Binding struct {
	Kind  BindingKind `yaml:"kind" json:"kind"`
	Step  string      `yaml:"step,omitempty" json:"step,omitempty"`
	Name  string      `yaml:"name,omitempty" json:"name,omitempty"`
	Value any         `yaml:"value,omitempty" json:"value,omitempty"`
	Paths []string    `yaml:"paths,omitempty" json:"paths,omitempty"`
}

// Output binds to output name of step
func Output(step, name string) Binding {
	return Binding{Kind: BindOutput, Step: step, Name: name}
}

// Input binds to a declared input of the enclosing template
func Input(name string) Binding {
	return Binding{Kind: BindInput, Name: name}
}

// Literal binds a parameter to a fixed value
func Literal(v any) Binding {
	return Binding{Kind: BindLiteral, Value: v}
}

// Upload binds an artifact to local paths
func Upload(paths ...string) Binding {
	return Binding{Kind: BindUpload, Paths: paths}
}

// Ports declares named artifacts and parameters
type Ports struct {
	Artifacts  []string `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Parameters []string `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// HasArtifact reports whether name is a declared artifact
func (p Ports) HasArtifact(name string) bool { return contains(p.Artifacts, name) }

// HasParameter reports whether name is a declared parameter
func (p Ports) HasParameter(name string) bool { return contains(p.Parameters, name) }

// Signature is the declared input/output contract of an operation or template
type Signature struct {
	Inputs  Ports `yaml:"inputs" json:"inputs"`
	Outputs Ports `yaml:"outputs" json:"outputs"`
}

// FanoutSpec replicates a step over a count only known at run time.
type FanoutSpec struct {
	// Count must resolve to a non-negative integer before replicas exist
	Count Binding `yaml:"count" json:"count"`
	// SliceArtifacts / SliceParameters are list inputs indexed per replica
	SliceArtifacts  []string `yaml:"sliceArtifacts,omitempty" json:"sliceArtifacts,omitempty"`
	SliceParameters []string `yaml:"sliceParameters,omitempty" json:"sliceParameters,omitempty"`
	// GatherArtifacts / GatherParameters are replica outputs collected in index order
	GatherArtifacts  []string `yaml:"gatherArtifacts,omitempty" json:"gatherArtifacts,omitempty"`
	GatherParameters []string `yaml:"gatherParameters,omitempty" json:"gatherParameters,omitempty"`
	// GroupSize batches replicas per scheduling unit on a remote executor
	GroupSize int `yaml:"groupSize,omitempty" json:"groupSize,omitempty"`
}

// Gathered returns the outputs a fan-out step exposes downstream
func (f *FanoutSpec) Gathered() Ports {
	return Ports{Artifacts: f.GatherArtifacts, Parameters: f.GatherParameters}
}

// Values holds concrete artifacts (local paths) and parameters at run time
type Values struct {
	Artifacts  map[string][]string `yaml:"artifacts" json:"artifacts"`
	Parameters map[string]any      `yaml:"parameters" json:"parameters"`
}

// NewValues returns Values with initialized maps
func NewValues() Values {
	return Values{
		Artifacts:  make(map[string][]string),
		Parameters: make(map[string]any),
	}
}

// Missing lists declared ports absent from v, sorted
func (v Values) Missing(p Ports) []string {
	missing := make([]string, 0)
	for _, name := range p.Artifacts {
		if _, ok := v.Artifacts[name]; !ok {
			missing = append(missing, name)
		}
	}
	for _, name := range p.Parameters {
		if _, ok := v.Parameters[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
