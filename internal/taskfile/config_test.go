package taskfile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/qobs-build/mosaicmk/internal/platform"
)

const testHome = "/home/test"

func newTestEnv(t *testing.T, goos string) Env {
	t.Helper()
	t.Setenv(platform.HomeEnvVar, testHome)
	env, err := NewEnv(t.TempDir(), goos)
	if err != nil {
		t.Fatalf("NewEnv: %v", err)
	}
	return env
}

func parse(t *testing.T, src string, env Env) *Config {
	t.Helper()
	cfg, err := ParseConfig(strings.NewReader(src), env)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	return cfg
}

func TestLoadBuiltin(t *testing.T) {
	cfg, err := Load("", newTestEnv(t, "linux"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != BuiltinPath {
		t.Errorf("path = %s, want %s", cfg.Path, BuiltinPath)
	}

	want := []string{"all", "clean", "clean-math-iface", "depend", "dist", "distclean", "math-iface", "tests"}
	if got := cfg.TaskNames(); !slices.Equal(got, want) {
		t.Errorf("tasks = %v, want %v", got, want)
	}

	all, _ := cfg.Task("all")
	if !slices.Equal(all.Deps, []string{"depend", "math-iface"}) {
		t.Errorf("all deps = %v", all.Deps)
	}
	if !all.Empty() {
		t.Error("all should have no steps of its own")
	}

	dist, _ := cfg.Task("dist")
	if !slices.Equal(dist.Run, []string{"python setup.py sdist", "sh pyinstaller-sh"}) {
		t.Errorf("dist run = %v", dist.Run)
	}
	depend, _ := cfg.Task("depend")
	if !slices.Equal(depend.Run, []string{"sh dependencies/build-deps-sh"}) {
		t.Errorf("depend run = %v", depend.Run)
	}
	tests, _ := cfg.Task("tests")
	if !slices.Equal(tests.Run, []string{"sh install-test-sh"}) {
		t.Errorf("tests run = %v", tests.Run)
	}
	distclean, _ := cfg.Task("distclean")
	if !slices.Equal(distclean.Remove, []string{"build", "dist"}) {
		t.Errorf("distclean remove = %v", distclean.Remove)
	}
	clean, _ := cfg.Task("clean")
	if !slices.Equal(clean.Deps, []string{"clean-math-iface"}) {
		t.Errorf("clean deps = %v", clean.Deps)
	}
}

func TestBuiltinMathIface(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"linux", filepath.Join(testHome, ".Mathematica", "Applications")},
		{"darwin", filepath.Join(testHome, "Library", "Mathematica", "Applications")},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			cfg, err := Load("", newTestEnv(t, tt.goos))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Vars["mathbase"] != tt.want {
				t.Errorf("mathbase = %s, want %s", cfg.Vars["mathbase"], tt.want)
			}

			task, _ := cfg.Task("math-iface")
			if len(task.Copy) != 1 {
				t.Fatalf("expected one copy step, got %d", len(task.Copy))
			}
			if !slices.Equal(task.Copy[0].From, []string{"mathematica/nanoporeAnalysis.m", "mathematica/Util.m"}) {
				t.Errorf("from = %v", task.Copy[0].From)
			}
			to, err := cfg.Expand(task.Copy[0].To)
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if to != tt.want {
				t.Errorf("to = %s, want %s", to, tt.want)
			}

			clean, _ := cfg.Task("clean-math-iface")
			removed, err := cfg.ExpandAll(clean.Remove)
			if err != nil {
				t.Fatalf("ExpandAll: %v", err)
			}
			wantRemoved := []string{tt.want + "/nanoporeAnalysis.m", tt.want + "/Util.m"}
			if !slices.Equal(removed, wantRemoved) {
				t.Errorf("remove = %v, want %v", removed, wantRemoved)
			}
		})
	}
}

func TestBuiltinUnsupportedPlatform(t *testing.T) {
	cfg, err := Load("", newTestEnv(t, "windows"))
	if err != nil {
		t.Fatalf("loading must not fail on an unsupported platform: %v", err)
	}
	if _, ok := cfg.Vars["mathbase"]; ok {
		t.Error("mathbase should be undefined on windows")
	}

	task, _ := cfg.Task("math-iface")
	_, err = cfg.Expand(task.Copy[0].To)
	if err == nil || !strings.Contains(err.Error(), "unsupported platform") {
		t.Errorf("expected unsupported platform error, got %v", err)
	}

	if _, err := cfg.Env.Var("mathbase"); !errors.Is(err, platform.ErrUnsupportedPlatform) {
		t.Errorf("Var error = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestConditionalVars(t *testing.T) {
	src := `
[vars]
a = "base"

[vars.'target_os == "linux"']
a = "linux"
b = "{{ home }}/x"
`
	linux := parse(t, src, newTestEnv(t, "linux"))
	if linux.Vars["a"] != "linux" {
		t.Errorf("a = %q, want linux", linux.Vars["a"])
	}
	if linux.Vars["b"] != testHome+"/x" {
		t.Errorf("b = %q", linux.Vars["b"])
	}

	darwin := parse(t, src, newTestEnv(t, "darwin"))
	if darwin.Vars["a"] != "base" {
		t.Errorf("a = %q, want base", darwin.Vars["a"])
	}
	if _, ok := darwin.Vars["b"]; ok {
		t.Error("b should only be set on linux")
	}
}

func TestVarsOverrideMathbase(t *testing.T) {
	cfg := parse(t, `
[vars]
mathbase = "/opt/mathematica"
`, newTestEnv(t, "windows"))
	v, err := cfg.Env.Var("mathbase")
	if err != nil {
		t.Fatalf("Var: %v", err)
	}
	if v != "/opt/mathematica" {
		t.Errorf("mathbase = %s", v)
	}
}

func TestConditionalTask(t *testing.T) {
	src := `
[task.build]
run = ["echo common"]
env = { MODE = "plain" }

[task.build.'target_os == "darwin"']
run = ["echo mac"]
env = { MODE = "mac" }
ignore-missing = false
`
	linux := parse(t, src, newTestEnv(t, "linux"))
	build, _ := linux.Task("build")
	if !slices.Equal(build.Run, []string{"echo common"}) {
		t.Errorf("linux run = %v", build.Run)
	}
	if build.Env["MODE"] != "plain" {
		t.Errorf("linux env = %v", build.Env)
	}
	if !build.IgnoresMissing() {
		t.Error("ignore-missing should default to true")
	}

	darwin := parse(t, src, newTestEnv(t, "darwin"))
	build, _ = darwin.Task("build")
	if !slices.Equal(build.Run, []string{"echo common", "echo mac"}) {
		t.Errorf("darwin run = %v", build.Run)
	}
	if build.Env["MODE"] != "mac" {
		t.Errorf("darwin env = %v", build.Env)
	}
	if build.IgnoresMissing() {
		t.Error("ignore-missing = false should be honoured")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown dep", "[task.a]\ndeps = [\"b\"]\n", "unknown task"},
		{"copy without sources", "[task.a]\ncopy = [{ to = \"x\" }]\n", "no sources"},
		{"copy without destination", "[task.a]\ncopy = [{ from = [\"x\"] }]\n", "no destination"},
		{"task is not a table", "task = 3\n", "expected a table"},
		{"bad toml", "[task.a\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(strings.NewReader(tt.src), newTestEnv(t, "linux"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestUnknownTask(t *testing.T) {
	cfg := parse(t, "[task.a]\n[task.b]\n", newTestEnv(t, "linux"))
	_, err := cfg.Task("c")
	if !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("error = %v, want ErrUnknownTask", err)
	}
	if !strings.Contains(err.Error(), "a, b") {
		t.Errorf("error should list known tasks: %v", err)
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("MOSAIC_FLAVOUR", "nist")
	env := newTestEnv(t, "linux")
	if err := os.WriteFile(filepath.Join(env.Basedir(), "VERSION"), []byte("2.1"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := parse(t, "", env)

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"{{ target_os }}/{{ environ.MOSAIC_FLAVOUR }}", "linux/nist"},
		{"v{{ ReadFile(\"VERSION\") }}", "v2.1"},
		{"{{ 1 + 2 }}", "3"},
		{"{{ git.commit == \"\" ? \"none\" : git.short }}", "none"},
	}
	for _, tt := range tests {
		got, err := cfg.Expand(tt.in)
		if err != nil {
			t.Errorf("Expand(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := cfg.Expand(`{{ ReadFile("../outside") }}`); err == nil {
		t.Error("reading outside the project should fail")
	}
	if _, err := cfg.Expand("{{ nosuchname }}"); err == nil {
		t.Error("unknown names should fail to compile")
	}
	if _, err := cfg.Expand(`{{ Var("missing") }}`); err == nil {
		t.Error("undefined variable should fail")
	}
}

func TestLoadFromFile(t *testing.T) {
	env := newTestEnv(t, "linux")
	path := filepath.Join(env.Basedir(), Filename)
	if err := os.WriteFile(path, []byte("[project]\nname = \"custom\"\n[task.only]\nrun = [\"true\"]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", env)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != path {
		t.Errorf("path = %s, want %s", cfg.Path, path)
	}
	if cfg.Project.Name != "custom" {
		t.Errorf("project name = %q", cfg.Project.Name)
	}
	if got := cfg.TaskNames(); !slices.Equal(got, []string{"only"}) {
		t.Errorf("tasks = %v", got)
	}

	if _, err := Load("missing.toml", env); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("explicit missing file should fail with ErrNotExist, got %v", err)
	}
}

func TestVarsBuildOnMathbase(t *testing.T) {
	src := `
[vars]
pkg = '{{ Var("mathbase") }}/MOSAIC'
`
	cfg := parse(t, src, newTestEnv(t, "linux"))
	want := filepath.Join(testHome, ".Mathematica", "Applications") + "/MOSAIC"
	if cfg.Vars["pkg"] != want {
		t.Errorf("pkg = %q, want %q", cfg.Vars["pkg"], want)
	}

	_, err := ParseConfig(strings.NewReader(src), newTestEnv(t, "windows"))
	if err == nil || !strings.Contains(err.Error(), "unsupported platform") {
		t.Errorf("expected unsupported platform error on windows, got %v", err)
	}
}

func TestUnmatchedConditionalVarsNotEvaluated(t *testing.T) {
	src := `
[vars]
a = "{{ target_os }}"

[vars.'target_os == "darwin"']
x = '{{ ReadFile("macos-only.txt") }}'
`
	cfg := parse(t, src, newTestEnv(t, "linux"))
	if cfg.Vars["a"] != "linux" {
		t.Errorf("a = %q, want linux", cfg.Vars["a"])
	}
	if _, ok := cfg.Vars["x"]; ok {
		t.Error("x should only be set on darwin")
	}

	env := newTestEnv(t, "darwin")
	if err := os.WriteFile(filepath.Join(env.Basedir(), "macos-only.txt"), []byte("mac"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg = parse(t, src, env)
	if cfg.Vars["x"] != "mac" {
		t.Errorf("x = %q, want mac", cfg.Vars["x"])
	}
}
