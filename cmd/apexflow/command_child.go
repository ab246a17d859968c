package main

import (
	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/submit"
	"github.com/spf13/cobra"
)

// childCmd is what the orchestrator re-executes once per working directory.
// It reads the whole request from stdin and ignores the settings file and
// its own log flags.
var childCmd = &cobra.Command{
	Use:    submit.ChildCommand,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := submit.ReadRequest(cmd.InOrStdin())
		if err != nil {
			return err
		}
		logger := req.Logging.Logger(cmd.ErrOrStderr())
		return submit.Run(ctxlog.WithLogger(cmd.Context(), logger), req)
	},
}

func registerChildCommand(root *cobra.Command) {
	root.AddCommand(childCmd)
}
