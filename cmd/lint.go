package cmd

import (
	"github.com/spf13/cobra"
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Runs the project's lint target",
	Long:  `Executes the lint target from targets.star, which wraps the project's static analysis tool.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNamed(cmd, "lint", map[string]string{})
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
}
