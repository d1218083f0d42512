package starfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	logger := zerolog.Nop()
	return WithLogger(context.Background(), &logger)
}

func writeScript(t *testing.T, content string) (string, string) {
	t.Helper()

	root := t.TempDir()
	scriptPath := filepath.Join(root, ScriptName)
	err := os.WriteFile(scriptPath, []byte(content), 0o600)
	require.NoError(t, err)

	return scriptPath, root
}

func TestLoadScriptCollectsTargets(t *testing.T) {
	scriptPath, root := writeScript(t, `
out = option("out", "build", help = "output directory")

def configure():
    lint = target(
        short = "lint",
        desc = "run the linter",
        cmds = ["echo lint"],
    )

    target(
        short = "test",
        desc = "run the tests",
        deps = ["lint"],
        cmds = ["echo test > " + out + "/log.txt"],
    )
`)

	targets, options, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	require.Contains(t, targets, "lint")
	require.Contains(t, targets, "test")

	assert.Equal(t, "run the linter", targets["lint"].Desc)
	assert.Equal(t, []string{"lint"}, targets["test"].Deps)
	assert.Len(t, targets["test"].Cmds, 1)

	require.Contains(t, options, "out")
	assert.Equal(t, "build", options["out"].Default())
	assert.Equal(t, "output directory", options["out"].Help)
}

func TestLoadScriptOptionOverride(t *testing.T) {
	scriptPath, root := writeScript(t, `
mode = option("mode", "debug")

def configure():
    target(
        short = "build",
        desc = "build in " + mode + " mode",
        cmds = ["echo " + mode],
    )
`)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{"mode": "release"}, true)
	require.NoError(t, err)

	assert.Equal(t, "build in release mode", targets["build"].Desc)
}

func TestLoadScriptWithoutConfigure(t *testing.T) {
	scriptPath, root := writeScript(t, `
opt = option("opt", "x")
`)

	_, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure")
}

func TestLoadScriptOptionsOnly(t *testing.T) {
	scriptPath, root := writeScript(t, `
opt = option("opt", "x", help = "some option")
`)

	targets, options, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, false)
	require.NoError(t, err)
	assert.Empty(t, targets)
	require.Contains(t, options, "opt")
	assert.Equal(t, "x", options["opt"].Default())
}

func TestLoadScriptReservedTargetName(t *testing.T) {
	scriptPath, root := writeScript(t, `
def configure():
    target(short = "configure", cmds = [])
`)

	_, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestLoadScriptAnonymousTargetsAreHidden(t *testing.T) {
	scriptPath, root := writeScript(t, `
def configure():
    helper = target(cmds = ["echo helper"])

    target(
        short = "all",
        desc = "everything",
        cmds = [helper],
    )
`)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	require.Contains(t, targets, "all")
	assert.Len(t, targets, 1)

	// the anonymous helper is reachable through the reference
	require.Len(t, targets["all"].Cmds, 1)
	sub := targets["all"].Cmds[0].RefTarget()
	require.NotNil(t, sub)
	assert.True(t, sub.Hidden)
}

func TestLoadScriptTupleCommands(t *testing.T) {
	scriptPath, root := writeScript(t, `
def configure():
    target(
        short = "greet",
        cmds = [("GREETING=hi", "echo", "hello world")],
    )
`)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	require.Len(t, targets["greet"].Cmds, 1)
	shell, ok := targets["greet"].Cmds[0].(ShellCmd)
	require.True(t, ok)
	assert.Contains(t, shell.Content, "GREETING=hi")
	assert.Contains(t, shell.Content, "'hello world'")
}

func TestLoadScriptEnvOverridesApply(t *testing.T) {
	scriptPath, root := writeScript(t, `
setenv("TOOL_HOME", "/opt/tool")

def configure():
    target(
        short = "build",
        cmds = ["echo build"],
        env = {"EXTRA": "1"},
    )
`)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	assert.Equal(t, "/opt/tool", targets["build"].Env["TOOL_HOME"])
	assert.Equal(t, "1", targets["build"].Env["EXTRA"])
}

func TestLoadScriptReadYaml(t *testing.T) {
	root := t.TempDir()
	err := os.WriteFile(filepath.Join(root, "config.yml"), []byte("tool:\n  version: v2\n"), 0o600)
	require.NoError(t, err)

	scriptPath := filepath.Join(root, ScriptName)
	err = os.WriteFile(scriptPath, []byte(`
version = read_yaml("config.yml", "tool.version", "v0")
missing = read_yaml("config.yml", "tool.nope", "fallback")

def configure():
    target(short = "show", desc = version + " " + missing, cmds = [])
`), 0o600)
	require.NoError(t, err)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	assert.Equal(t, "v2 fallback", targets["show"].Desc)
}

func TestLoadScriptReadYamlMissingKeyWithoutDefault(t *testing.T) {
	root := t.TempDir()
	err := os.WriteFile(filepath.Join(root, "config.yml"), []byte("tool:\n  version: v2\n"), 0o600)
	require.NoError(t, err)

	scriptPath := filepath.Join(root, ScriptName)
	err = os.WriteFile(scriptPath, []byte(`
value = read_yaml("config.yml", "tool.nope")

def configure():
    target(short = "show", desc = "missing" if value == None else "present", cmds = [])
`), 0o600)
	require.NoError(t, err)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	assert.Equal(t, "missing", targets["show"].Desc)
}

func TestLoadScriptExecuteString(t *testing.T) {
	scriptPath, root := writeScript(t, `
out = execute("echo hello")

def configure():
    target(short = "show", desc = out, cmds = [])
`)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	assert.Equal(t, "hello\n", targets["show"].Desc)
}

func TestLoadScriptExecuteTuple(t *testing.T) {
	scriptPath, root := writeScript(t, `
out = execute(("echo", "hello world"))

def configure():
    target(short = "show", desc = out, cmds = [])
`)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	assert.Equal(t, "hello world\n", targets["show"].Desc)
}

func TestLoadScriptExecuteJSON(t *testing.T) {
	scriptPath, root := writeScript(t, `
data = execute("echo '{\"name\": \"tool\"}'", format = "json")

def configure():
    target(short = "show", desc = data["name"], cmds = [])
`)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	assert.Equal(t, "tool", targets["show"].Desc)
}

func TestLoadScriptExecuteFailure(t *testing.T) {
	scriptPath, root := writeScript(t, `
ok = execute("false")

def configure():
    target(short = "show", desc = "failed" if ok == False else "passed", cmds = [])
`)

	targets, _, err := LoadScript(testContext(), scriptPath, root, map[string]string{}, true)
	require.NoError(t, err)

	assert.Equal(t, "failed", targets["show"].Desc)
}
