// Package cli implements the codescribe command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	rootFlag    string
	verboseFlag bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codescribe",
	Short: "Codescribe - incremental documentation generation for codebases",
	Long: `Codescribe scans a project, extracts its structural units, and generates
API reference, module overview, and project overview pages through a
language-model backend. Generated text is cached by content hash, so
unchanged code never regenerates.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env next to the project is a convenience for API keys; absence
		// is not an error.
		godotenv.Load()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "project root (default is the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose output")
}

// projectRoot resolves the project root from the flag or working directory.
func projectRoot() (string, error) {
	if rootFlag != "" {
		return rootFlag, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return dir, nil
}
