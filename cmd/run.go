package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [args...]",
	Short: "Runs the project's run target",
	Long: `Executes the run target from targets.star. All arguments are forwarded to
the script as the "args" option, which the target can splice into its
command line.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		options := map[string]string{
			"args": strings.Join(args, " "),
		}

		return runNamed(cmd, "run", options)
	},
}

func init() {
	runCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(runCmd)
}
