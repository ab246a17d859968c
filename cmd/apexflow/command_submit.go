package main

import (
	"fmt"
	"os"

	"github.com/sourceplane/apexflow/internal/submit"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit [work-dir-glob...]",
	Short: "Submit one workflow per matching working directory",
	Long:  "Compose the workflow selected by the parameter files and submit it for every working directory the globs match. Without globs the configured work_dir is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitWorkflows(cmd, args)
	},
}

func registerSubmitCommand(root *cobra.Command) {
	root.AddCommand(submitCmd)

	addParamFlags(submitCmd)
	submitCmd.Flags().BoolVarP(&debugMode, "debug", "d", false, "Run the workflow locally instead of submitting it")
	submitCmd.Flags().StringToStringVar(&labels, "labels", nil, "Labels attached to every submitted workflow (key=value,...)")
	submitCmd.Flags().BoolVar(&changedOnly, "changed", false, "Submit only working directories with changes (requires git)")
	submitCmd.Flags().StringVar(&baseBranch, "base", "main", "Base branch for change detection")
}

func submitWorkflows(cmd *cobra.Command, args []string) error {
	ft, err := selectedFlow()
	if err != nil {
		return err
	}

	fmt.Println("□ Submitting workflows...")
	opts := submit.Options{
		ConfigFile: configFile,
		Parameters: paramFiles,
		WorkDirs:   args,
		FlowType:   ft,
		Debug:      debugMode,
		Labels:     labels,
		Out:        os.Stdout,
		Logging:    submit.Logging{Level: logLevel, Format: logFormat},
	}
	if changedOnly {
		opts.ChangedSince = baseBranch
	}
	if err := submit.Workflow(cmd.Context(), opts); err != nil {
		return err
	}

	if debugMode {
		fmt.Println("✓ Local run complete")
	} else {
		fmt.Println("✓ All workflows submitted")
	}
	return nil
}
