package pkg

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// runCommand is replaced in tests
var runCommand = func(cmd *exec.Cmd) error {
	return cmd.Run()
}

// InstallGoTools installs the Go module tools listed in TOOLS.yml into the
// workspace .tools directory. If you have direnv enabled, they will be
// available in your PATH.
func InstallGoTools(projectRoot string, cfg ToolsConfig) error {
	if len(cfg.Go) == 0 {
		return nil
	}

	binPath := filepath.Join(projectRoot, ".tools")

	for _, dep := range cfg.Go {
		PrintSubtask(dep)

		cmd := exec.Command("go", "install", dep)
		cmd.Dir = projectRoot
		cmd.Env = append(os.Environ(), fmt.Sprintf("GOBIN=%s", binPath))
		cmd.Stderr = os.Stderr
		cmd.Stdout = os.Stdout
		err := runCommand(cmd)
		if err != nil {
			return eris.Wrapf(err, "failed to install %s", dep)
		}
	}

	return nil
}
