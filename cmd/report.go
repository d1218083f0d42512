package cmd

import (
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"starmake/pkg"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Runs the tests and opens the HTML coverage report",
	Long: `Executes the test target (or the report target, if the script declares
one), then opens the generated HTML coverage report with the OS default
viewer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		htmlPath, err := cmd.Flags().GetString("html")
		if err != nil {
			return err
		}

		ctx := logContext(cmd.Context())
		targets, projectRoot, err := loadTargets(ctx, map[string]string{})
		if err != nil {
			return err
		}

		name := "test"
		if _, ok := targets["report"]; ok {
			name = "report"
		}

		err = runLoaded(cmd, ctx, projectRoot, name, targets)
		if err != nil {
			return err
		}

		if !filepath.IsAbs(htmlPath) {
			htmlPath = filepath.Join(projectRoot, htmlPath)
		}

		_, err = os.Stat(htmlPath)
		if err != nil {
			return eris.Wrapf(err, "no coverage report found at %s", htmlPath)
		}

		pkg.PrintTask("Opening " + htmlPath)
		err = browser.OpenFile(htmlPath)
		if err != nil {
			return eris.Wrapf(err, "failed to open %s", htmlPath)
		}

		return nil
	},
}

func init() {
	reportCmd.Flags().String("html", filepath.Join("build", "coverage", "html", "index.html"),
		"location of the generated HTML report, relative to the project root")
	rootCmd.AddCommand(reportCmd)
}
