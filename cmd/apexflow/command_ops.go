package main

import (
	"fmt"
	"strings"

	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/ops"
	"github.com/spf13/cobra"
)

var opsCmd = &cobra.Command{
	Use:     "ops [operation]",
	Aliases: []string{"op"},
	Short:   "List the built-in operations and their ports",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listOps(args)
	},
}

func registerOpsCommand(root *cobra.Command) {
	root.AddCommand(opsCmd)
}

func listOps(args []string) error {
	registry := ops.Builtin()

	if len(args) > 0 {
		sig, ok := registry.Signature(args[0])
		if !ok {
			return fmt.Errorf("operation not found: %s", args[0])
		}
		printSignature(args[0], sig)
		return nil
	}

	fmt.Println("Available Operations:")
	for _, name := range registry.Names() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("\nRun 'apexflow ops <name>' for its ports")
	return nil
}

func printSignature(name string, sig model.Signature) {
	fmt.Printf("\n[Operation] %s\n", name)
	fmt.Printf("  Input artifacts:   %s\n", joinOrNone(sig.Inputs.Artifacts))
	fmt.Printf("  Input parameters:  %s\n", joinOrNone(sig.Inputs.Parameters))
	fmt.Printf("  Output artifacts:  %s\n", joinOrNone(sig.Outputs.Artifacts))
	fmt.Printf("  Output parameters: %s\n", joinOrNone(sig.Outputs.Parameters))
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
