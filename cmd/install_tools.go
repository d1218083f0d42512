package cmd

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"starmake/pkg"
)

var testDepsCmd = &cobra.Command{
	Use:     "test-deps",
	Aliases: []string{"install-tools"},
	Short:   "Installs the project's external tools",
	Long: `Installs the tools the project's test and coverage targets depend on. If
targets.star declares a test-deps target, that target runs; otherwise the
tools listed in TOOLS.yml are installed into the workspace .tools
directory. If you have direnv enabled, they will be available in your
PATH.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logContext(cmd.Context())
		targets, _, err := loadTargets(ctx, map[string]string{})
		if err != nil && !eris.Is(err, errNoScript) {
			return err
		}

		if err == nil {
			if _, ok := targets["test-deps"]; ok {
				return runNamed(cmd, "test-deps", map[string]string{})
			}
		}

		projectRoot, err := pkg.ProjectRoot()
		if err != nil {
			return err
		}

		pkg.PrintTask("Loading " + pkg.ToolsConfigName)
		cfg, stamps, err := pkg.LoadToolsConfig(projectRoot)
		if err != nil {
			return err
		}

		pkg.PrintTask("Installing Go tools")
		err = pkg.InstallGoTools(projectRoot, cfg)
		if err != nil {
			return err
		}

		pkg.PrintTask("Downloading prebuilt tools")
		err = pkg.FetchBinTools(projectRoot, cfg, stamps)
		if err != nil {
			return err
		}

		pkg.PrintTask("Done")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testDepsCmd)
}
