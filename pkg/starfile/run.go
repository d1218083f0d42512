package starfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	runtimeCtxKey struct{}
	runtimeCtx    struct {
		doneTargets map[string]bool
		projectRoot string
	}
)

func getRuntimeCtx(ctx context.Context) *runtimeCtx {
	return ctx.Value(runtimeCtxKey{}).(*runtimeCtx)
}

func targetEnv(target *Target) expand.Environ {
	envVars := os.Environ()

	for name, value := range target.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

// selfBinary returns the command used to reach our own subcommands from
// target scripts.
func selfBinary() string {
	self, err := os.Executable()
	if err != nil {
		return "starmake"
	}
	return self
}

func execHandler(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "mv", "rm", "mkdir":
			// always use our cross-platform implementation for these
			// operations to make sure they behave consistently
			args = append([]string{selfBinary()}, args...)
		}
	}

	return defaultExecHandler(ctx, args)
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

func resolvePatternLists(ctx context.Context, base string, patterns []string) ([]string, error) {
	result := []string{}
	cfg := expand.Config{
		ReadDir:  shellReadDir,
		GlobStar: true,
	}

	parser := syntax.NewParser()
	patternCtx := &scriptCtx{
		filepath:    "invalid",
		projectRoot: getRuntimeCtx(ctx).projectRoot,
	}

	for _, item := range patterns {
		item = normalizePath(patternCtx, base, item)
		item = filepath.ToSlash(item)

		words := make([]*syntax.Word, 0)
		err := parser.Words(strings.NewReader(item), func(w *syntax.Word) bool {
			words = append(words, w)
			return true
		})
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse pattern %s", item)
		}

		matches, err := expand.Fields(&cfg, words...)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", item)
		}

		for _, match := range matches {
			// an unmatched pattern is returned verbatim, skip those
			if !strings.Contains(match, "*") {
				result = append(result, match)
			}
		}
	}
	return result, nil
}

// RunTarget executes the given target including its dependencies
func RunTarget(ctx context.Context, projectRoot, name string, targets TargetList, dryRun, force bool) error {
	rctx := runtimeCtx{
		projectRoot: projectRoot,
		doneTargets: make(map[string]bool),
	}

	ctx = context.WithValue(ctx, runtimeCtxKey{}, &rctx)
	target, found := targets[name]
	if !found {
		return eris.Errorf("target %s not found", name)
	}

	return runTargetInternal(ctx, target, targets, dryRun, force, true)
}

func runTargetInternal(ctx context.Context, target *Target, targets TargetList, dryRun, force, canSkip bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	rctx := getRuntimeCtx(ctx)
	done, started := rctx.doneTargets[target.Short]
	if started {
		if done {
			log(ctx).Debug().Msgf("target %s already run", target.Short)
			return nil
		}

		return eris.Errorf("target %s was called recursively", target.Short)
	}

	rctx.doneTargets[target.Short] = false

	for _, dep := range target.Deps {
		if !rctx.doneTargets[dep] {
			depTarget, ok := targets[dep]
			if !ok {
				return eris.Errorf("target %s not found", dep)
			}

			err := runTargetInternal(ctx, depTarget, targets, dryRun, false, true)
			if err != nil {
				return eris.Wrapf(err, "target %s failed due to its dependency %s", target.Short, dep)
			}
		}
	}

	if canSkip && !force {
		skipList, err := resolvePatternLists(ctx, target.Base, target.SkipIfExists)
		if err != nil {
			return eris.Wrap(err, "failed to resolve skip_if_exists list")
		}

		found := 0
		for _, item := range skipList {
			_, err := os.Stat(item)
			if err == nil {
				found++
			} else if !eris.Is(err, os.ErrNotExist) {
				return eris.Wrapf(err, "failed to check %s", item)
			}
		}

		if found > 0 && found == len(skipList) {
			log(ctx).Info().
				Str("target", target.Short).
				Msg("skipped because all skip files exist")

			rctx.doneTargets[target.Short] = true
			return nil
		}
	}

	if !force {
		var newestInput time.Time
		inputList, err := resolvePatternLists(ctx, target.Base, target.Inputs)
		if err != nil {
			return eris.Wrap(err, "failed to resolve inputs")
		}

		outputList, err := resolvePatternLists(ctx, target.Base, target.Outputs)
		if err != nil {
			return eris.Wrap(err, "failed to resolve output list")
		}

		for _, item := range inputList {
			info, err := os.Stat(item)
			if err != nil {
				return eris.Wrapf(err, "failed to check input %s", item)
			}

			if info.ModTime().Sub(newestInput) > 0 {
				newestInput = info.ModTime()
			}
		}

		if !newestInput.IsZero() {
			var newestOutput time.Time
			oldestOutput := time.Now()

			for _, item := range outputList {
				info, err := os.Stat(item)
				if err != nil && !eris.Is(err, os.ErrNotExist) {
					return eris.Wrapf(err, "failed to check output %s", item)
				}

				if err == nil {
					mt := info.ModTime()
					if mt.Sub(newestOutput) > 0 {
						newestOutput = mt
					}

					if oldestOutput.Sub(mt) > 0 {
						oldestOutput = mt
					}
				}
			}

			if newestOutput.Sub(oldestOutput) > 10*time.Minute {
				log(ctx).Warn().
					Str("target", target.Short).
					Msgf("oldest output is %f minutes older than the newest output", newestOutput.Sub(oldestOutput).Minutes())
			}

			if newestOutput.Sub(newestInput) > 0 {
				log(ctx).Info().
					Str("target", target.Short).
					Msgf("nothing to do (output is %f seconds newer)", newestOutput.Sub(newestInput).Seconds())

				rctx.doneTargets[target.Short] = true
				return nil
			}
		}
	}

	// skip and freshness checks are done, start executing
	runner, err := interp.New(
		interp.Dir(target.Base),
		interp.Env(targetEnv(target)),
		interp.ExecHandler(execHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to initialize runner")
	}

	parser := syntax.NewParser()
	printer := syntax.NewPrinter(
		syntax.Minify(true),
	)
	strBuffer := strings.Builder{}

	for _, item := range target.Cmds {
		stmts, err := item.ShellStmts(parser)
		if err != nil {
			return eris.Wrap(err, "failed to parse shell script")
		}
		if stmts != nil {
			for _, stm := range stmts {
				strBuffer.Reset()
				err = printer.Print(&strBuffer, stm)
				if err != nil {
					return eris.Wrap(err, "failed to print shell command")
				}
				log(ctx).Info().
					Str("target", target.Short).
					Bool("command", true).
					Msg(strBuffer.String())

				if !dryRun {
					err = runner.Run(ctx, stm)
					if err != nil {
						return err
					}

					if runner.Exited() {
						return nil
					}
				}
			}
		} else {
			subTarget := item.RefTarget()
			if subTarget == nil {
				return eris.Errorf("unexpected target command %+v", item)
			}

			err = runTargetInternal(ctx, subTarget, targets, dryRun, force, true)
			if err != nil {
				return err
			}
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	if target.Short != "" {
		rctx.doneTargets[target.Short] = true
	}
	return nil
}
