package taskfile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/qobs-build/mosaicmk/internal/gitinfo"
	"github.com/qobs-build/mosaicmk/internal/msg"
	"github.com/qobs-build/mosaicmk/internal/platform"
)

// Env is the environment task file expressions are evaluated in.
type Env struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	Home       string            `expr:"home"`
	Vars       map[string]string `expr:"vars"`
	Git        gitinfo.Info      `expr:"git"`
	basedir    string
	varErrs    map[string]error
}

// NewEnv builds the environment for the project in basedir. An empty goos
// means the host OS.
func NewEnv(basedir, goos string) (Env, error) {
	if goos == "" {
		goos = runtime.GOOS
	}

	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	home, err := platform.HomeDir()
	if err != nil {
		return Env{}, err
	}

	info, err := gitinfo.Describe(basedir)
	if err != nil {
		msg.Warn("could not read git state: %v", err)
	}

	return Env{
		TargetOS:   goos,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		Home:       home,
		Vars:       make(map[string]string),
		Git:        info,
		basedir:    basedir,
		varErrs:    make(map[string]error),
	}, nil
}

// Basedir is the project directory.
func (env Env) Basedir() string { return env.basedir }

// Var returns a variable, or the reason it is not defined on this platform.
func (env Env) Var(name string) (string, error) {
	if v, ok := env.Vars[name]; ok {
		return v, nil
	}
	if err, ok := env.varErrs[name]; ok {
		return "", fmt.Errorf("variable %q: %w", name, err)
	}
	return "", fmt.Errorf("variable %q is not defined", name)
}

// ReadFile returns the contents of a file inside the project directory.
func (env Env) ReadFile(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of project directory %q", path, env.basedir)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// setBuiltinVars fills in variables derived from the platform. A built-in
// that does not exist on this platform keeps its error for Var to report.
func (env Env) setBuiltinVars() {
	base, err := platform.MathBase(env.TargetOS, env.Home)
	if err != nil {
		env.varErrs["mathbase"] = err
	} else {
		env.Vars["mathbase"] = base
	}
}
