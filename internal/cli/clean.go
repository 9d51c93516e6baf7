package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codescribe-dev/codescribe/internal/cache"
	"github.com/codescribe-dev/codescribe/internal/pipeline"
)

var cleanQuietFlag bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the generation cache to force full regeneration",
	Long: `Clean removes every cached artifact. The next 'codescribe generate' run
regenerates all documentation from scratch.

The configuration file (.codescribe/config.yml) and generated output are
preserved.

Use cases:
  - Changed backend model and want coherent regeneration
  - Corrupted cache data
  - Fresh start after major refactoring

Examples:
  codescribe clean
  codescribe clean --quiet
`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanQuietFlag, "quiet", "q", false, "Suppress output messages")
}

func runClean(cmd *cobra.Command, args []string) error {
	rootDir, err := projectRoot()
	if err != nil {
		return err
	}

	cacheDir := pipeline.CacheDir(rootDir)
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		if !cleanQuietFlag {
			fmt.Println("No cache found for this project")
		}
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
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	if !cleanQuietFlag {
		fmt.Printf("Removed %d cached entries from %s\n", stats.Entries, cacheDir)
	}
	return nil
}
