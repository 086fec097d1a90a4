// Package platform knows where per-user application directories live on each OS.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnvVar overrides the home directory used for every per-user path.
const HomeEnvVar = "MOSAICMK_HOME"

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// mathBases maps GOOS to the user Mathematica application directory, relative to $HOME.
var mathBases = map[string][]string{
	"darwin": {"Library", "Mathematica", "Applications"},
	"linux":  {".Mathematica", "Applications"},
}

// MathBase returns the directory where Mathematica looks up user-installed
// application packages on goos.
func MathBase(goos, home string) (string, error) {
	elem, ok := mathBases[goos]
	if !ok {
		return "", fmt.Errorf("%w %q: no Mathematica application directory known", ErrUnsupportedPlatform, goos)
	}
	if home == "" {
		return "", errors.New("home directory is empty")
	}
	return filepath.Join(append([]string{home}, elem...)...), nil
}

// Supported reports whether MathBase knows goos.
func Supported(goos string) bool {
	_, ok := mathBases[goos]
	return ok
}

// HomeDir returns $MOSAICMK_HOME if set, otherwise the user's home directory.
func HomeDir() (string, error) {
	if v := os.Getenv(HomeEnvVar); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return home, nil
}
