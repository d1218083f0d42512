package pkg

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// ProjectRoot walks up from the working directory until it finds a
// targets.star file, a TOOLS.yml file or a .git directory.
func ProjectRoot() (string, error) {
	path, err := os.Getwd()
	if err != nil {
		return "", eris.Wrap(err, "failed to retrieve the current working directory")
	}

	for {
		for _, marker := range []string{"targets.star", "TOOLS.yml", ".git"} {
			_, err := os.Stat(filepath.Join(path, marker))
			if err == nil {
				return path, nil
			}

			if !eris.Is(err, os.ErrNotExist) {
				return "", eris.Wrapf(err, "error occurred while searching for the project root in %s", path)
			}
		}

		nextPath := filepath.Dir(path)
		if path == nextPath {
			break
		}
		path = nextPath
	}

	return "", eris.New("project root not found")
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
