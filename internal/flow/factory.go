// Package flow composes the relax, props and joint pipelines.
package flow

import (
	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/model"
)

// Step names of the composed pipelines
const (
	StepRelaxMake       = "relax-make"
	StepRelaxRun        = "relax-run"
	StepRelaxPost       = "relax-post"
	StepPropsDistribute = "props-distribute"
	StepPropsCal        = "props-cal"
	StepPropsCollect    = "props-collect"

	StepPropsMake = "props-make"
	StepPropsRun  = "props-run"
	StepPropsPost = "props-post"
)

// Factory holds everything step construction needs that does not depend on
// the working directory. It is a plain value so it can be sent to a child
// process as is.
type Factory struct {
	MakeImage      string                    `json:"makeImage"`
	RunImage       string                    `json:"runImage"`
	PostImage      string                    `json:"postImage"`
	RunCommand     string                    `json:"runCommand"`
	Calculator     model.Calculator          `json:"calculator"`
	Executor       *model.ExecutorDescriptor `json:"executor,omitempty"`
	GroupSize      int                       `json:"groupSize"`
	UploadPackages []string                  `json:"uploadPackages,omitempty"`
}

// NewFactory picks images and the run command for calc from the settings
func NewFactory(s config.Settings, calc model.Calculator, exec *model.ExecutorDescriptor) Factory {
	return Factory{
		MakeImage:      s.ApexImageName,
		RunImage:       s.RunImage(calc),
		PostImage:      s.ApexImageName,
		RunCommand:     s.RunCommandFor(calc),
		Calculator:     calc,
		Executor:       exec,
		GroupSize:      s.GroupSize,
		UploadPackages: append([]string(nil), s.UploadPackages...),
	}
}

func (f Factory) pythonCommand() []string { return []string{"python3"} }
