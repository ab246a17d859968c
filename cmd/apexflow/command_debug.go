package main

import (
	"fmt"

	"github.com/sourceplane/apexflow/internal/render"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug [work-dir]",
	Short: "Print the composed workflow step by step",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := composeManifest(cmd, args)
		if err != nil {
			return err
		}
		fmt.Println("\n" + render.NewRenderer().DebugDump(m))
		return nil
	},
}

func registerDebugCommand(root *cobra.Command) {
	root.AddCommand(debugCmd)

	addParamFlags(debugCmd)
}
