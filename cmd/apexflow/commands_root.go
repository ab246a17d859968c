package main

import (
	"os"

	"github.com/sourceplane/apexflow/internal/config"
	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/spf13/cobra"
)

var (
	configFile  string
	logLevel    string
	logFormat   string
	paramFiles  []string
	flowType    string
	debugMode   bool
	outputFile  string
	viewPlan    bool
	labels      map[string]string
	changedOnly bool
	baseBranch  string
)

var rootCmd = &cobra.Command{
	Use:           "apexflow",
	Short:         "Submit relaxation and property workflows",
	Long:          "apexflow composes relaxation, property and joint workflows from parameter files and submits one workflow per working directory",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger := ctxlog.New(logLevel, logFormat, os.Stderr)
		cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultFile, "Global settings file (json or yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text/json)")

	registerSubmitCommand(rootCmd)
	registerPlanCommand(rootCmd)
	registerValidateCommand(rootCmd)
	registerDebugCommand(rootCmd)
	registerOpsCommand(rootCmd)
	registerChildCommand(rootCmd)
}

// addParamFlags registers the parameter file and flow type flags on cmd
func addParamFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&paramFiles, "param", "p", nil, "Parameter file (repeat for relaxation and property files)")
	cmd.Flags().StringVarP(&flowType, "flow", "f", "", "Flow type to run (relax/props/joint); detected from the parameter files when empty")
	_ = cmd.MarkFlagRequired("param")
}

// selectedFlow parses the --flow flag; empty means detect
func selectedFlow() (model.FlowType, error) {
	return model.ParseFlowType(flowType)
}
