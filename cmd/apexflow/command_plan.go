package main

import (
	"fmt"

	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/render"
	"github.com/sourceplane/apexflow/internal/schema"
	"github.com/sourceplane/apexflow/internal/submit"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [work-dir]",
	Short: "Compose a workflow and write its manifest without submitting",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return generatePlan(cmd, args)
	},
}

func registerPlanCommand(root *cobra.Command) {
	root.AddCommand(planCmd)

	addParamFlags(planCmd)
	planCmd.Flags().StringVarP(&outputFile, "output", "o", "workflow.json", "Output manifest path (json or yaml by extension)")
	planCmd.Flags().BoolVarP(&viewPlan, "view", "v", false, "Print the step DAG")
	planCmd.Flags().BoolVar(&debugMode, "debug", false, "Print every step in detail")
}

func composeManifest(cmd *cobra.Command, args []string) (*model.Manifest, error) {
	ft, err := selectedFlow()
	if err != nil {
		return nil, err
	}
	workDir := ""
	if len(args) > 0 {
		workDir = args[0]
	}

	fmt.Println("□ Composing workflow...")
	p, err := submit.Compose(cmd.Context(), submit.Options{
		ConfigFile: configFile,
		Parameters: paramFiles,
		FlowType:   ft,
	}, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to compose workflow: %w", err)
	}

	fmt.Println("□ Rendering manifest...")
	m, err := render.NewRenderer().RenderManifest(p.Graph, p.Metadata, p.Spec)
	if err != nil {
		return nil, err
	}

	fmt.Println("□ Validating manifest...")
	v, err := schema.Default()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateManifest(m); err != nil {
		return nil, err
	}
	return m, nil
}

func generatePlan(cmd *cobra.Command, args []string) error {
	m, err := composeManifest(cmd, args)
	if err != nil {
		return err
	}

	renderer := render.NewRenderer()
	if debugMode {
		fmt.Println("\n" + renderer.DebugDump(m))
	}
	if err := renderer.WriteManifest(m, outputFile); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	fmt.Printf("✓ Workflow composed with %d steps\n", len(m.Steps))
	fmt.Printf("✓ Saved to: %s\n", outputFile)

	if viewPlan {
		fmt.Println("\n" + render.NewPlanViewer(m).ViewDAG())
	}
	return nil
}
