package main

import (
	"fmt"

	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/executor"
	"github.com/sourceplane/apexflow/internal/paramfile"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the settings and parameter files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateFiles()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)

	addParamFlags(validateCmd)
}

func validateFiles() error {
	fmt.Println("□ Validating settings...")
	settings, err := config.Load(configFile)
	if err != nil {
		return err
	}
	exec, err := executor.Resolve(settings)
	if err != nil {
		return err
	}
	target := "local"
	if exec != nil {
		target = exec.ContextType
	}
	fmt.Printf("✓ Settings are valid (executor: %s)\n", target)

	fmt.Println("□ Validating parameter files...")
	for _, path := range paramFiles {
		pf, err := paramfile.Parse(path)
		if err != nil {
			return err
		}
		fmt.Printf("  %s: %v, calculator %s\n", path, pf.Kinds, pf.Calculator)
	}

	ft, err := selectedFlow()
	if err != nil {
		return err
	}
	sel, err := paramfile.Judge(paramFiles, ft)
	if err != nil {
		return err
	}

	fmt.Printf("✓ All validation passed (%s flow, %s)\n", sel.FlowType, sel.Calculator)
	return nil
}
