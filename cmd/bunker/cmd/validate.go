package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/bunker/internal/pipeline"
	"github.com/jmylchreest/bunker/internal/recipe"
)

var validateRecipePath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a recipe without executing it",
	Long: `Validate loads a recipe and builds every stage against the registry
(parsing each stage's parameters) without running the pipeline, catching
unknown stage names and malformed parameters before any input is touched.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateRecipePath, "recipe", "", "path to a recipe file (required)")
	_ = validateCmd.MarkFlagRequired("recipe")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	file, err := recipe.Load(validateRecipePath)
	if err != nil {
		return err
	}

	registry := pipeline.NewDefaultRegistry()
	stages, err := pipeline.BuildStages(registry, file.StageSpecs())
	if err != nil {
		return fmt.Errorf("recipe is invalid: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recipe %q is valid: %d stage(s)\n", validateRecipePath, len(stages))
	for i, stage := range stages {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, stage.Name())
	}
	return nil
}
