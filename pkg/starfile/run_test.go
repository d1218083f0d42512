package starfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shellTarget(name, base string, cmds ...string) *Target {
	target := &Target{
		Short: name,
		Base:  base,
		Env:   map[string]string{},
	}

	for idx, cmd := range cmds {
		target.Cmds = append(target.Cmds, ShellCmd{TargetName: name, Content: cmd, Index: idx})
	}

	return target
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestRunTargetExecutesCommands(t *testing.T) {
	root := t.TempDir()
	targets := TargetList{
		"build": shellTarget("build", root, "echo hello > out.txt"),
	}

	err := RunTarget(testContext(), root, "build", targets, false, false)
	require.NoError(t, err)

	assert.Equal(t, "hello\n", readFile(t, filepath.Join(root, "out.txt")))
}

func TestRunTargetMissing(t *testing.T) {
	root := t.TempDir()

	err := RunTarget(testContext(), root, "nope", TargetList{}, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunTargetDepsRunFirst(t *testing.T) {
	root := t.TempDir()
	first := shellTarget("first", root, "echo first >> order.txt")
	second := shellTarget("second", root, "echo second >> order.txt")
	second.Deps = []string{"first"}

	targets := TargetList{"first": first, "second": second}

	err := RunTarget(testContext(), root, "second", targets, false, false)
	require.NoError(t, err)

	assert.Equal(t, "first\nsecond\n", readFile(t, filepath.Join(root, "order.txt")))
}

func TestRunTargetDepsRunOnce(t *testing.T) {
	root := t.TempDir()
	common := shellTarget("common", root, "echo common >> order.txt")
	left := shellTarget("left", root, "echo left >> order.txt")
	left.Deps = []string{"common"}
	right := shellTarget("right", root, "echo right >> order.txt")
	right.Deps = []string{"common", "left"}

	targets := TargetList{"common": common, "left": left, "right": right}

	err := RunTarget(testContext(), root, "right", targets, false, false)
	require.NoError(t, err)

	content := readFile(t, filepath.Join(root, "order.txt"))
	assert.Equal(t, 1, strings.Count(content, "common"))
}

func TestRunTargetRecursionFails(t *testing.T) {
	root := t.TempDir()
	target := shellTarget("loop", root, "echo loop")
	target.Deps = []string{"loop"}

	err := RunTarget(testContext(), root, "loop", TargetList{"loop": target}, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursively")
}

func TestRunTargetSkipIfExists(t *testing.T) {
	root := t.TempDir()
	err := os.WriteFile(filepath.Join(root, "marker.txt"), []byte("x"), 0o600)
	require.NoError(t, err)

	target := shellTarget("gen", root, "echo generated > out.txt")
	target.SkipIfExists = []string{"marker.txt"}

	err = RunTarget(testContext(), root, "gen", TargetList{"gen": target}, false, false)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "out.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunTargetForceIgnoresSkip(t *testing.T) {
	root := t.TempDir()
	err := os.WriteFile(filepath.Join(root, "marker.txt"), []byte("x"), 0o600)
	require.NoError(t, err)

	target := shellTarget("gen", root, "echo generated > out.txt")
	target.SkipIfExists = []string{"marker.txt"}

	err = RunTarget(testContext(), root, "gen", TargetList{"gen": target}, false, true)
	require.NoError(t, err)

	assert.Equal(t, "generated\n", readFile(t, filepath.Join(root, "out.txt")))
}

func TestRunTargetFreshOutputsSkipExecution(t *testing.T) {
	root := t.TempDir()
	err := os.WriteFile(filepath.Join(root, "input.txt"), []byte("in"), 0o600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(root, "output.txt"), []byte("old"), 0o600)
	require.NoError(t, err)

	// make sure the output is newer than the input
	info, err := os.Stat(filepath.Join(root, "input.txt"))
	require.NoError(t, err)
	newer := info.ModTime().Add(5 * time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(root, "output.txt"), newer, newer))

	target := shellTarget("gen", root, "echo regenerated > output.txt")
	target.Inputs = []string{"input.txt"}
	target.Outputs = []string{"output.txt"}

	err = RunTarget(testContext(), root, "gen", TargetList{"gen": target}, false, false)
	require.NoError(t, err)

	assert.Equal(t, "old", readFile(t, filepath.Join(root, "output.txt")))
}

func TestRunTargetDryRun(t *testing.T) {
	root := t.TempDir()
	target := shellTarget("gen", root, "echo generated > out.txt")

	err := RunTarget(testContext(), root, "gen", TargetList{"gen": target}, true, false)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "out.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunTargetEnv(t *testing.T) {
	root := t.TempDir()
	target := shellTarget("gen", root, "echo $GREETING > env.txt")
	target.Env["GREETING"] = "hi there"

	err := RunTarget(testContext(), root, "gen", TargetList{"gen": target}, false, false)
	require.NoError(t, err)

	assert.Equal(t, "hi there\n", readFile(t, filepath.Join(root, "env.txt")))
}

func TestRunTargetRefRunsSubTarget(t *testing.T) {
	root := t.TempDir()
	sub := shellTarget("sub", root, "echo sub >> order.txt")
	sub.Hidden = true

	outer := shellTarget("outer", root, "echo outer >> order.txt")
	outer.Cmds = append([]Command{TargetRef{Target: sub}}, outer.Cmds...)

	err := RunTarget(testContext(), root, "outer", TargetList{"outer": outer}, false, false)
	require.NoError(t, err)

	assert.Equal(t, "sub\nouter\n", readFile(t, filepath.Join(root, "order.txt")))
}

func TestRunTargetFailingCommand(t *testing.T) {
	root := t.TempDir()
	target := shellTarget("boom", root, "false", "echo late > late.txt")

	err := RunTarget(testContext(), root, "boom", TargetList{"boom": target}, false, false)
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(root, "late.txt"))
	assert.True(t, os.IsNotExist(err))
}
