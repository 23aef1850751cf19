package cmd

import (
	"fmt"

	"github.com/reugn/github-pin/internal/config"
	"github.com/reugn/github-pin/internal/osutil"
	"github.com/spf13/cobra"
)

var forceFlag bool

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Write a default configuration file",
	RunE:         runInit,
	SilenceUsage: true,
}

func init() {
	initCmd.Flags().BoolVar(&forceFlag, "force", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, _ []string) error {
	filename := configFlag
	if filename == "" {
		filename = config.DefaultConfigFileName
	}

	if osutil.IsFile(filename) && !forceFlag {
		return fmt.Errorf("%s already exists (use --force to overwrite)", filename)
	}

	if err := config.SaveConfig(config.NewDefaultConfig(), filename); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filename)
	return nil
}
