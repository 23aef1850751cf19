package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "github-pin",
	Short:         "Pin GitHub Actions to commit hashes",
	Long:          `github-pin resolves GitHub Action tags, branches and commit hashes to verified commit SHAs.`,
	SilenceErrors: true,
}

// SetVersion sets the version string for the CLI.
func SetVersion(version string) {
	rootCmd.Version = version
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// printError prints a formatted error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "✗ Error: "+format+"\n", args...)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"Path to the configuration file (default .github-pin.yaml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(resolveCmd)
}
