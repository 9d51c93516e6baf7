package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescribe-dev/codescribe/internal/backend"
	"github.com/codescribe-dev/codescribe/internal/config"
	"github.com/codescribe-dev/codescribe/internal/orchestrator"
	"github.com/codescribe-dev/codescribe/internal/pipeline"
	"github.com/codescribe-dev/codescribe/internal/watcher"
)

var (
	generateForceFlag       bool
	generateQuietFlag       bool
	generateWatchFlag       bool
	generateDryRunFlag      bool
	generateConcurrencyFlag int
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate documentation for the project",
	Long: `Generate scans the project, builds the documentation task graph, and
generates every page whose source content changed. Unchanged units are
served from the cache.

Examples:
  # Incremental generation
  codescribe generate

  # Ignore the cache and regenerate everything
  codescribe generate --force

  # Plan only: show what would be generated
  codescribe generate --dry-run

  # Keep running and regenerate on file changes
  codescribe generate --watch
`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVarP(&generateForceFlag, "force", "f", false, "Regenerate even when cached")
	generateCmd.Flags().BoolVarP(&generateQuietFlag, "quiet", "q", false, "Suppress progress output")
	generateCmd.Flags().BoolVarP(&generateWatchFlag, "watch", "w", false, "Watch for changes and regenerate")
	generateCmd.Flags().BoolVar(&generateDryRunFlag, "dry-run", false, "Plan tasks without calling the backend")
	generateCmd.Flags().IntVarP(&generateConcurrencyFlag, "concurrency", "c", 0, "Max concurrent backend calls (overrides config)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	rootDir, err := projectRoot()
	if err != nil {
		return err
	}

	cfg, err := config.NewLoader(rootDir).Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var be backend.Backend
	if !generateDryRunFlag {
		be, err = backend.New(ctx, backend.Options{
			Provider: cfg.Backend.Provider,
			Model:    cfg.Backend.Model,
			APIKey:   os.Getenv(cfg.Backend.APIKeyEnv),
			BaseURL:  cfg.Backend.BaseURL,
		})
		if err != nil {
			return err
		}
	}

	p := pipeline.New(rootDir, cfg, be)

	runOnce := func() error {
		opts := pipeline.Options{
			Force:       generateForceFlag,
			DryRun:      generateDryRunFlag,
			Concurrency: generateConcurrencyFlag,
			Progress:    NewCLIProgressReporter(generateQuietFlag || generateDryRunFlag),
		}
		result, err := p.Run(ctx, opts)
		if err != nil {
			return err
		}
		printRunResult(result)
		if result.Report != nil {
			return runFailureError(result.Report)
		}
		return nil
	}

	if err := runOnce(); err != nil {
		if !generateWatchFlag {
			return err
		}
		// Watch mode keeps running; the next change gets another attempt.
		log.Printf("Warning: initial run: %v\n", err)
	}
	if !generateWatchFlag {
		return nil
	}

	w, err := watcher.New(rootDir, []string{cfg.Output.Dir}, 0)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	log.Println("Watching for changes (Ctrl+C to stop)...")
	w.Start(ctx, func(files []string) {
		if !generateQuietFlag {
			log.Printf("Change detected: %s\n", strings.Join(files, ", "))
		}
		// Watch runs are always incremental; the cache decides what is stale.
		generateForceFlag = false
		if err := runOnce(); err != nil && ctx.Err() == nil {
			log.Printf("Warning: regeneration failed: %v\n", err)
		}
	})

	<-ctx.Done()
	return nil
}

// runFailureError turns recorded task failures into a command error, so a
// run with failed units exits non-zero even though the pipeline itself
// completed.
func runFailureError(report *orchestrator.Report) error {
	if failed := report.Count(orchestrator.StatusFailed); failed > 0 {
		return fmt.Errorf("%d of %d tasks failed (see run-report.json)", failed, len(report.Results))
	}
	return nil
}

func printRunResult(result *pipeline.RunResult) {
	if generateDryRunFlag {
		fmt.Printf("Planned %d tasks across %d files (%d degraded)\n", len(result.Tasks), result.Files, result.Degraded)
		for _, task := range result.Tasks {
			fmt.Printf("  [wave %d] %s\n", task.Depth, task.ID)
		}
		return
	}
	if generateQuietFlag {
		return
	}

	report := result.Report
	fmt.Printf("Done in %s: %d cached, %d generated, %d failed\n",
		result.Elapsed.Round(time.Millisecond),
		report.Count(orchestrator.StatusCached),
		report.Count(orchestrator.StatusGenerated),
		report.Count(orchestrator.StatusFailed),
	)
	fmt.Printf("Output: %d pages written, %d unchanged, %d cache entries swept\n",
		result.Written, result.Unchanged, result.Swept)

	for id, res := range report.Results {
		if res.Status == orchestrator.StatusFailed {
			log.Printf("Warning: %s failed after %d retries: %v\n", id, res.Retries, res.Err)
		}
	}
}
