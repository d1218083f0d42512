package pkg

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadToolsConfig(t *testing.T) {
	root := t.TempDir()
	manifest := `
vars:
  VERSION: 1.2.3
go:
  - gotest.tools/gotestsum@latest
bins:
  linter:
    if: linux
    url: https://example.com/linter/{VERSION}/linter.tar.gz
    dest: .tools
    sha256: abc123
    strip: 1
    markExec:
      - bin/linter
`
	err := os.WriteFile(filepath.Join(root, ToolsConfigName), []byte(manifest), 0o600)
	require.NoError(t, err)

	cfg, stamps, err := LoadToolsConfig(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"gotest.tools/gotestsum@latest"}, cfg.Go)
	assert.Equal(t, "1.2.3", cfg.Vars["VERSION"])
	require.Contains(t, cfg.Bins, "linter")
	assert.Equal(t, "linux", cfg.Bins["linter"].Condition)
	assert.Equal(t, 1, cfg.Bins["linter"].Strip)
	assert.Equal(t, []string{"bin/linter"}, cfg.Bins["linter"].MarkExec)
	assert.Empty(t, stamps)
}

func TestLoadToolsConfigReadsStamps(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ToolsConfigName), []byte("go: []\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, stampsName), []byte(`{"linter":"url#sum"}`), 0o600))

	_, stamps, err := LoadToolsConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "url#sum", stamps["linter"])
}

func TestLoadToolsConfigMissing(t *testing.T) {
	_, _, err := LoadToolsConfig(t.TempDir())
	require.Error(t, err)
}

func TestEvalConditionsExpandsPlaceholders(t *testing.T) {
	tool := BinTool{URL: "https://example.com/{VERSION}/tool-{VERSION}.zip"}
	vars := map[string]string{"VERSION": "2.0"}

	assert.True(t, evalConditions(&tool, vars))
	assert.Equal(t, "https://example.com/2.0/tool-2.0.zip", tool.URL)
}

func TestEvalConditionsIf(t *testing.T) {
	vars := map[string]string{"linux": "true"}

	tool := BinTool{Condition: "linux"}
	assert.True(t, evalConditions(&tool, vars))

	tool = BinTool{Condition: "windows"}
	assert.False(t, evalConditions(&tool, vars))

	tool = BinTool{Condition: "linux, windows"}
	assert.False(t, evalConditions(&tool, vars))
}

func TestEvalConditionsIfNot(t *testing.T) {
	vars := map[string]string{"ci": "true"}

	tool := BinTool{Rejections: "ci"}
	assert.False(t, evalConditions(&tool, vars))

	tool = BinTool{Rejections: "local"}
	assert.True(t, evalConditions(&tool, vars))
}

func TestConditionVarsIncludesPlatform(t *testing.T) {
	vars := conditionVars(ToolsConfig{Vars: map[string]string{"X": "1"}})

	assert.Equal(t, "true", vars[runtime.GOOS])
	assert.Equal(t, "true", vars[runtime.GOARCH])
	assert.Equal(t, "1", vars["X"])
}
