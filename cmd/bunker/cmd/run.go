package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/httpserver"
	"github.com/jmylchreest/bunker/internal/jobhistory"
	"github.com/jmylchreest/bunker/internal/pipeline"
	"github.com/jmylchreest/bunker/internal/recipe"
)

var (
	runRecipePath   string
	runInputGlobs   []string
	runDevicePolicy string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a recipe over a batch of inputs",
	Long: `Run loads a recipe (an ordered stage chain, output spec, and optional
quality gates), builds the stage chain against the built-in registry, and
executes it over every input matched by --input.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runRecipePath, "recipe", "", "path to a recipe file (required)")
	runCmd.Flags().StringArrayVar(&runInputGlobs, "input", nil, "input glob(s); may be repeated (required)")
	runCmd.Flags().StringVar(&runDevicePolicy, "device-policy", "", "override the configured device policy (auto, cpu_only, gpu_preferred)")
	_ = runCmd.MarkFlagRequired("recipe")
	_ = runCmd.MarkFlagRequired("input")
}

func runRun(_ *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	policy := devicesched.Policy(cfg.Pipeline.DevicePolicy)
	if runDevicePolicy != "" {
		policy = devicesched.Policy(runDevicePolicy)
	}

	file, err := recipe.Load(runRecipePath)
	if err != nil {
		return err
	}

	registry := pipeline.NewDefaultRegistry()
	stages, err := pipeline.BuildStages(registry, file.StageSpecs())
	if err != nil {
		return fmt.Errorf("building stage chain: %w", err)
	}

	inputs, err := expandGlobs(runInputGlobs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs matched %v", runInputGlobs)
	}

	scheduler := devicesched.New(policy, logger)
	output := file.PipelineOutputSpec()
	if output.Directory == "" {
		output.Directory = cfg.Pipeline.OutputDirectory
	}
	executor := pipeline.NewExecutor(stages, output, file.QualityGates(), scheduler, logger)

	var store *jobhistory.Store
	if cfg.JobHistory.Enabled {
		store, err = jobhistory.Open(cfg.JobHistory.DSN)
		if err != nil {
			return fmt.Errorf("opening job history store: %w", err)
		}
		defer store.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		metricsServer := httpserver.New(httpserver.Config{Address: cfg.Metrics.Address, ShutdownTimeout: cfg.Pipeline.ShutdownTimeout}, executor.Metrics(), store, logger)
		go func() {
			if err := metricsServer.ListenAndServe(ctx); err != nil {
				logger.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	results, err := executor.ExecuteWithProgress(inputs, func(event pipeline.ProgressEvent) {
		logger.Info("stage starting",
			slog.Int("input_index", event.InputIndex),
			slog.Int("total_inputs", event.TotalInputs),
			slog.String("stage", event.StageName),
			slog.Int("stage_index", event.StageIndex),
			slog.Int("total_stages", event.TotalStages),
		)
	})
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	snapshot := executor.Metrics().Snapshot()
	for _, result := range results {
		logger.Info("input completed",
			slog.String("input", result.InputPath),
			slog.String("output", result.OutputPath),
		)
		if recErr := store.Record(jobhistory.PipelineRun{
			InputPath:     result.InputPath,
			OutputPath:    result.OutputPath,
			StageCount:    len(stages),
			QualityStatus: qualityStatus(result),
			DurationMs:    snapshot.TotalDurationMs,
		}); recErr != nil {
			logger.Warn("recording pipeline run", slog.String("error", recErr.Error()))
		}
	}

	return nil
}

func qualityStatus(result pipeline.Result) string {
	if status, ok := result.Metadata["quality.status"].(string); ok {
		return status
	}
	return ""
}

func expandGlobs(patterns []string) ([]string, error) {
	var inputs []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid input glob %q: %w", pattern, err)
		}
		inputs = append(inputs, matches...)
	}
	return inputs, nil
}
