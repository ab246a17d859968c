package model

import (
	"fmt"
	"strings"
)

// FlowType selects which pipeline shape is composed for a working directory
type FlowType string

const (
	FlowRelax FlowType = "relax"
	FlowProps FlowType = "props"
	FlowJoint FlowType = "joint"
)

// ParseFlowType accepts relax, props or joint (case-insensitive). The empty
// string parses to the empty FlowType, meaning "not specified".
func ParseFlowType(s string) (FlowType, error) {
	switch FlowType(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case FlowRelax:
		return FlowRelax, nil
	case FlowProps:
		return FlowProps, nil
	case FlowJoint:
		return FlowJoint, nil
	}
	return "", Configf("unknown flow type %q (want relax, props or joint)", s)
}

// NeedsRelax reports whether the flow contains the relaxation phase
func (t FlowType) NeedsRelax() bool { return t == FlowRelax || t == FlowJoint }

// NeedsProps reports whether the flow contains the property phase
func (t FlowType) NeedsProps() bool { return t == FlowProps || t == FlowJoint }

// Calculator names the simulation engine family a flow runs with
type Calculator string

const (
	CalculatorLAMMPS Calculator = "lammps"
	CalculatorVASP   Calculator = "vasp"
	CalculatorABACUS Calculator = "abacus"
)

// RunOperation is the operation identifier of the Run phase for this calculator
func (c Calculator) RunOperation() string {
	return "run-" + string(c)
}

// Metadata holds standard object metadata
type Metadata struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// FlowDescriptor is everything needed to compose one pipeline for one directory
type FlowDescriptor struct {
	Type       FlowType `yaml:"flowType" json:"flowType"`
	RelaxParam string   `yaml:"relaxParam,omitempty" json:"relaxParam,omitempty"`
	PropsParam string   `yaml:"propsParam,omitempty" json:"propsParam,omitempty"`
	WorkDir    string   `yaml:"workDir" json:"workDir"`
}

// Validate checks that the parameter files the flow type needs are present.
func (d FlowDescriptor) Validate() error {
	switch d.Type {
	case FlowRelax, FlowProps, FlowJoint:
	default:
		return Configf("unknown flow type %q", d.Type)
	}
	if d.WorkDir == "" {
		return Configf("%s flow: working directory is required", d.Type)
	}
	if d.Type.NeedsRelax() && d.RelaxParam == "" {
		return Configf("%s flow: relaxation parameter file is required", d.Type)
	}
	if d.Type.NeedsProps() && d.PropsParam == "" {
		return Configf("%s flow: property parameter file is required", d.Type)
	}
	return nil
}

func (d FlowDescriptor) String() string {
	return fmt.Sprintf("%s@%s", d.Type, d.WorkDir)
}
