package pkg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ToolsConfigName is the per-project tool manifest read by the test-deps
// command.
const ToolsConfigName = "TOOLS.yml"

const stampsName = "TOOLS.stamps"

// BinTool describes one prebuilt tool archive.
type BinTool struct {
	Condition  string `yaml:"if,omitempty"`
	Rejections string `yaml:"ifNot,omitempty"`
	URL        string
	Dest       string
	Sha256     string
	Strip      int
	MarkExec   []string `yaml:"markExec,omitempty"`
}

// ToolsConfig is the parsed TOOLS.yml: a list of Go module tools installed
// with "go install" and a map of prebuilt archives to download.
type ToolsConfig struct {
	Vars map[string]string
	Go   []string
	Bins map[string]BinTool
}

// LoadToolsConfig reads TOOLS.yml and the download stamps from the project
// root.
func LoadToolsConfig(projectRoot string) (ToolsConfig, map[string]string, error) {
	var cfg ToolsConfig
	cfgPath := filepath.Join(projectRoot, ToolsConfigName)
	cfgData, err := os.ReadFile(cfgPath)
	if err != nil {
		return cfg, nil, eris.Wrapf(err, "could not open file %s", cfgPath)
	}

	err = yaml.Unmarshal(cfgData, &cfg)
	if err != nil {
		return cfg, nil, eris.Wrapf(err, "failed to parse %s", cfgPath)
	}

	stamps := map[string]string{}
	stampPath := filepath.Join(projectRoot, stampsName)
	stampData, err := os.ReadFile(stampPath)
	if err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return cfg, nil, eris.Wrapf(err, "failed to read stamps file %s", stampPath)
		}
	} else {
		err = json.Unmarshal(stampData, &stamps)
		if err != nil {
			return cfg, nil, eris.Wrapf(err, "failed to parse JSON file %s", stampPath)
		}
	}

	return cfg, stamps, nil
}

func saveStamps(projectRoot string, stamps map[string]string) error {
	stampData, err := json.Marshal(stamps)
	if err != nil {
		return eris.Wrap(err, "failed to serialize stamps")
	}

	stampPath := filepath.Join(projectRoot, stampsName)
	err = os.WriteFile(stampPath, stampData, os.FileMode(0o660))
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", stampPath)
	}

	return nil
}

// conditionVars returns the variable set conditions are evaluated against:
// the config's own vars plus the current OS, arch and CI markers.
func conditionVars(cfg ToolsConfig) map[string]string {
	vars := map[string]string{}
	for k, v := range cfg.Vars {
		vars[k] = v
	}

	vars[runtime.GOOS] = "true"
	vars[runtime.GOARCH] = "true"
	if os.Getenv("CI") == "true" {
		vars["ci"] = "true"
	}

	return vars
}

var placeholderPattern = regexp.MustCompile(`\{([A-Z0-9_]+)\}`)

// evalConditions expands {VAR} placeholders in the URL and checks the
// tool's if/ifNot conditions. It reports whether the tool applies to this
// platform.
func evalConditions(tool *BinTool, vars map[string]string) bool {
	tool.URL = placeholderPattern.ReplaceAllStringFunc(tool.URL, func(varName string) string {
		return vars[varName[1:len(varName)-1]]
	})

	for _, condition := range strings.Split(tool.Condition, ",") {
		if condition == "" {
			continue
		}

		value, ok := vars[strings.TrimSpace(condition)]
		if !ok || value == "" {
			return false
		}
	}

	for _, condition := range strings.Split(tool.Rejections, ",") {
		if condition == "" {
			continue
		}

		value, ok := vars[strings.TrimSpace(condition)]
		if ok && value != "" {
			return false
		}
	}
	return true
}
