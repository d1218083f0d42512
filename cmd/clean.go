package cmd

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"starmake/pkg"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Removes build artifacts",
	Long: `Executes the clean target from targets.star. Projects without a clean
target get the default behavior: the build output directory is deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		buildDir, err := cmd.Flags().GetString("build-dir")
		if err != nil {
			return err
		}

		ctx := logContext(cmd.Context())
		targets, projectRoot, err := loadTargets(ctx, map[string]string{})
		if err != nil && !eris.Is(err, errNoScript) {
			return err
		}

		if err == nil {
			if _, ok := targets["clean"]; ok {
				return runLoaded(cmd, ctx, projectRoot, "clean", targets)
			}
		} else {
			projectRoot, err = pkg.ProjectRoot()
			if err != nil {
				return err
			}
		}

		buildPath := filepath.Join(projectRoot, buildDir)
		pkg.PrintTask("Removing " + buildPath)

		err = os.RemoveAll(buildPath)
		if err != nil {
			return eris.Wrapf(err, "failed to remove %s", buildPath)
		}

		return nil
	},
}

func init() {
	cleanCmd.Flags().String("build-dir", "build", "build output directory, relative to the project root")
	rootCmd.AddCommand(cleanCmd)
}
