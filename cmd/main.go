// Package cmd implements the starmake CLI. The root command runs arbitrary
// targets from the nearest targets.star file; the named subcommands cover the
// conventional target surface (run, clean, lint, test-deps, test, report).
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"starmake/pkg/starfile"
)

const snapshotName = ".starmake.cache"

var errNoScript = eris.New("no targets.star file found")

var rootCmd = &cobra.Command{
	Use:   "starmake [target...]",
	Short: "Portable build orchestrator",
	Long: `starmake parses the first targets.star file it finds and executes the given
targets. Arguments of the form key=value override script options instead of
naming a target. Without arguments, the declared targets are listed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetArgs, options := splitOptions(args)

		ctx := logContext(cmd.Context())

		if len(targetArgs) == 0 {
			targets, err := listTargets(ctx, options)
			if err != nil {
				return err
			}

			printTargetList(targets)
			return nil
		}

		dryRun, force, err := runFlags(cmd)
		if err != nil {
			return err
		}

		targets, projectRoot, err := loadTargets(ctx, options)
		if err != nil {
			return err
		}

		for _, name := range targetArgs {
			err = starfile.RunTarget(ctx, projectRoot, name, targets, dryRun, force)
			if err != nil {
				return eris.Wrapf(err, "failed target %s", name)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.PersistentFlags().BoolP("force", "f", false, "always execute the passed targets even if they don't have to run")
}

// Execute runs the CLI and exits with a non-zero status on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger := newLogger()
		logger.Error().Err(err).Msg("starmake failed")
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	return zerolog.New(NewConsoleWriter())
}

func logContext(ctx context.Context) context.Context {
	logger := newLogger()
	return starfile.WithLogger(ctx, &logger)
}

func runFlags(cmd *cobra.Command) (bool, bool, error) {
	dryRun, err := cmd.Flags().GetBool("dry")
	if err != nil {
		return false, false, err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return false, false, err
	}

	return dryRun, force, nil
}

// splitOptions separates target names from key=value option overrides.
func splitOptions(args []string) ([]string, map[string]string) {
	targetArgs := make([]string, 0, len(args))
	options := make(map[string]string)

	for _, part := range args {
		pos := strings.Index(part, "=")
		if pos > -1 {
			options[part[:pos]] = part[pos+1:]
		} else {
			targetArgs = append(targetArgs, part)
		}
	}

	return targetArgs, options
}

// findScript walks up from the working directory until it finds a
// targets.star file.
func findScript() (string, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", "", eris.Wrap(err, "failed to retrieve the current working directory")
	}

	path := wd
	for {
		scriptPath := filepath.Join(path, starfile.ScriptName)
		_, err := os.Stat(scriptPath)
		if err == nil {
			relPath, err := filepath.Rel(wd, scriptPath)
			if err == nil {
				scriptPath = relPath
			}

			return scriptPath, filepath.Dir(scriptPath), nil
		}
		if !eris.Is(err, os.ErrNotExist) {
			return "", "", eris.Wrapf(err, "failed to check %s", scriptPath)
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", "", errNoScript
		}

		path = parent
	}
}

// loadTargets parses the nearest targets.star file and refreshes the target
// snapshot.
func loadTargets(ctx context.Context, options map[string]string) (starfile.TargetList, string, error) {
	scriptPath, projectRoot, err := findScript()
	if err != nil {
		return nil, "", err
	}

	targets, _, err := starfile.LoadScript(ctx, scriptPath, projectRoot, options, true)
	if err != nil {
		return nil, "", eris.Wrap(err, "failed to parse targets")
	}

	err = starfile.WriteSnapshot(filepath.Join(projectRoot, snapshotName), options, targets)
	if err != nil {
		return nil, "", eris.Wrap(err, "failed to write target snapshot")
	}

	return targets, projectRoot, nil
}

// listTargets returns the declared targets, reading the snapshot instead of
// the script when the script hasn't changed and no options were passed.
func listTargets(ctx context.Context, options map[string]string) (starfile.TargetList, error) {
	scriptPath, projectRoot, err := findScript()
	if err != nil {
		return nil, err
	}

	if len(options) == 0 {
		snapshotPath := filepath.Join(projectRoot, snapshotName)
		snapInfo, err := os.Stat(snapshotPath)
		if err == nil {
			scriptInfo, serr := os.Stat(scriptPath)
			if serr == nil && !snapInfo.ModTime().Before(scriptInfo.ModTime()) {
				_, targets, rerr := starfile.ReadSnapshot(snapshotPath)
				if rerr == nil {
					return targets, nil
				}
				// a stale or corrupt snapshot just falls back to the script
			}
		}
	}

	targets, _, err := loadTargets(ctx, options)
	return targets, err
}

func printTargetList(targets starfile.TargetList) {
	fmt.Println("Available targets:")
	maxNameLen := 0
	sortedNames := make([]string, 0, len(targets))
	for _, target := range targets {
		if target.Hidden {
			continue
		}

		if len(target.Short) > maxNameLen {
			maxNameLen = len(target.Short)
		}

		sortedNames = append(sortedNames, target.Short)
	}

	sort.Strings(sortedNames)

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, name := range sortedNames {
		fmt.Printf(lineFmt, name+":", targets[name].Desc)
	}
}

// runNamed loads the target list and executes a single conventional target.
func runNamed(cmd *cobra.Command, name string, options map[string]string) error {
	ctx := logContext(cmd.Context())
	targets, projectRoot, err := loadTargets(ctx, options)
	if err != nil {
		return err
	}

	return runLoaded(cmd, ctx, projectRoot, name, targets)
}

// runLoaded executes a single target from an already-loaded target list.
// Commands that load the script themselves use this to avoid running
// configure() twice.
func runLoaded(cmd *cobra.Command, ctx context.Context, projectRoot, name string, targets starfile.TargetList) error {
	dryRun, force, err := runFlags(cmd)
	if err != nil {
		return err
	}

	err = starfile.RunTarget(ctx, projectRoot, name, targets, dryRun, force)
	if err != nil {
		return eris.Wrapf(err, "failed target %s", name)
	}

	return nil
}
