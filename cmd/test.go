package cmd

import (
	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test [name]",
	Short: "Runs the project's test target with coverage",
	Long: `Executes the test target from targets.star, which wraps the project's
coverage tool. An optional name restricts the run to a single test: it is
passed to the script as the "filter" option.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		options := map[string]string{}
		if len(args) > 0 {
			options["filter"] = args[0]
		}

		return runNamed(cmd, "test", options)
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
