package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codescribe-dev/codescribe/internal/cache"
	"github.com/codescribe-dev/codescribe/internal/pipeline"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache statistics for the project",
	Long: `Status reports how many generated artifacts are cached, broken down by
stage. A large cache means the next generate run will mostly be free.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rootDir, err := projectRoot()
	if err != nil {
		return err
	}

	cacheDir := pipeline.CacheDir(rootDir)
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		fmt.Println("No cache found; run 'codescribe generate' first")
		return nil
	}

	store, err := cache.Open(cacheDir)
	if err != nil {
		return err
	}
	stats, err := store.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Cache: %s\n", stats.Dir)
	fmt.Printf("Entries: %d\n", stats.Entries)

	stages := make([]string, 0, len(stats.ByStage))
	for stage := range stats.ByStage {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	for _, stage := range stages {
		fmt.Printf("  %-18s %d\n", stage, stats.ByStage[stage])
	}
	return nil
}
