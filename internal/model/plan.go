package model

// Manifest is the serializable form of a composed workflow graph
type Manifest struct {
	APIVersion string       `yaml:"apiVersion" json:"apiVersion"`
	Kind       string       `yaml:"kind" json:"kind"`
	Metadata   Metadata     `yaml:"metadata" json:"metadata"`
	Spec       ManifestSpec `yaml:"spec" json:"spec"`
	Steps      []PlanStep   `yaml:"steps" json:"steps"`
}

// ManifestSpec holds submission-wide settings the dispatch service needs
type ManifestSpec struct {
	FlowType       FlowType          `yaml:"flowType" json:"flowType"`
	WorkDir        string            `yaml:"workDir" json:"workDir"`
	Storage        map[string]string `yaml:"storage,omitempty" json:"storage,omitempty"`
	UploadPackages []string          `yaml:"uploadPackages,omitempty" json:"uploadPackages,omitempty"`
}

// PlanStep is a step in the manifest. Template steps carry their sub-pipeline.
type PlanStep struct {
	Name       string              `yaml:"name" json:"name"`
	Key        string              `yaml:"key" json:"key"`
	Phase      Phase               `yaml:"phase" json:"phase"`
	Operation  string              `yaml:"operation,omitempty" json:"operation,omitempty"`
	Image      string              `yaml:"image,omitempty" json:"image,omitempty"`
	Command    []string            `yaml:"command,omitempty" json:"command,omitempty"`
	Artifacts  map[string]Binding  `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Parameters map[string]Binding  `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Outputs    Ports               `yaml:"outputs" json:"outputs"`
	DependsOn  []string            `yaml:"dependsOn" json:"dependsOn"`
	Fanout     *FanoutSpec         `yaml:"fanout,omitempty" json:"fanout,omitempty"`
	Executor   *ExecutorDescriptor `yaml:"executor,omitempty" json:"executor,omitempty"`
	Template   *PlanTemplate       `yaml:"template,omitempty" json:"template,omitempty"`
}

// PlanTemplate is an embedded sub-pipeline
type PlanTemplate struct {
	Name    string             `yaml:"name" json:"name"`
	Inputs  Ports              `yaml:"inputs" json:"inputs"`
	Outputs map[string]Binding `yaml:"outputs" json:"outputs"`
	Steps   []PlanStep         `yaml:"steps" json:"steps"`
}
