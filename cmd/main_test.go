package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starmake/pkg/starfile"
)

func TestSplitOptions(t *testing.T) {
	targets, options := splitOptions([]string{"build", "mode=release", "test", "filter=TestFoo"})

	assert.Equal(t, []string{"build", "test"}, targets)
	assert.Equal(t, map[string]string{"mode": "release", "filter": "TestFoo"}, options)
}

func TestSplitOptionsKeepsExtraEquals(t *testing.T) {
	_, options := splitOptions([]string{"args=a=b"})

	assert.Equal(t, map[string]string{"args": "a=b"}, options)
}

func TestSplitOptionsEmpty(t *testing.T) {
	targets, options := splitOptions(nil)

	assert.Empty(t, targets)
	assert.Empty(t, options)
}

func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))

	t.Cleanup(func() {
		assert.NoError(t, os.Chdir(wd))
	})
}

func TestFindScriptInWorkingDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, starfile.ScriptName), []byte(""), 0o600))

	chdir(t, root)

	scriptPath, projectRoot, err := findScript()
	require.NoError(t, err)
	assert.Equal(t, starfile.ScriptName, scriptPath)
	assert.Equal(t, ".", projectRoot)
}

func TestFindScriptWalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, starfile.ScriptName), []byte(""), 0o600))

	sub := filepath.Join(root, "pkg", "nested")
	require.NoError(t, os.MkdirAll(sub, 0o700))

	chdir(t, sub)

	scriptPath, _, err := findScript()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "..", starfile.ScriptName), scriptPath)
}

func TestFindScriptMissing(t *testing.T) {
	chdir(t, t.TempDir())

	_, _, err := findScript()
	require.Error(t, err)
	assert.True(t, eris.Is(err, errNoScript))
}
