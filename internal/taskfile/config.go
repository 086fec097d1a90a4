package taskfile

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
)

// Filename is the task file looked up in the project directory.
const Filename = "Mosaic.toml"

// BuiltinPath is reported as the path of the embedded default task file.
const BuiltinPath = "<builtin>"

//go:embed Mosaic.toml
var DefaultTaskFile []byte

var (
	ErrUnknownTask = errors.New("unknown task")
	errNilResult   = errors.New("expression evaluated to nil")
)

type Config struct {
	Project ProjectSection
	Vars    map[string]string
	Tasks   map[string]*Task
	// Path is the file the config was read from, or BuiltinPath.
	Path string
	Env  Env
}

// ProjectSection defines the [project] section
type ProjectSection struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// CopySpec copies every file matching From into the directory To.
type CopySpec struct {
	From []string `toml:"from"`
	To   string   `toml:"to"`
}

// Task defines a [task.<name>] section
type Task struct {
	Name          string            `toml:"-"`
	Description   string            `toml:"description"`
	Deps          []string          `toml:"deps"`
	Dir           string            `toml:"dir"`
	Env           map[string]string `toml:"env"`
	Remove        []string          `toml:"remove"`
	Copy          []CopySpec        `toml:"copy"`
	Run           []string          `toml:"run"`
	IgnoreMissing *bool             `toml:"ignore-missing"`
}

// IgnoresMissing reports whether removing an absent path is fine. Defaults to true.
func (t *Task) IgnoresMissing() bool {
	return t.IgnoreMissing == nil || *t.IgnoreMissing
}

// Empty reports whether the task only exists to run its dependencies.
func (t *Task) Empty() bool {
	return len(t.Remove) == 0 && len(t.Copy) == 0 && len(t.Run) == 0
}

// TaskNames returns all task names, sorted.
func (c *Config) TaskNames() []string {
	return slices.Sorted(maps.Keys(c.Tasks))
}

// Task looks up a task by name.
func (c *Config) Task(name string) (*Task, error) {
	if t, ok := c.Tasks[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w %q, known tasks: %s", ErrUnknownTask, name, strings.Join(c.TaskNames(), ", "))
}

// Expand evaluates all {{...}} expressions in s.
func (c *Config) Expand(s string) (string, error) {
	return evaluateString(s, c.Env)
}

// ExpandAll expands every string in ss.
func (c *Config) ExpandAll(ss []string) ([]string, error) {
	out := make([]string, len(ss))
	for i, s := range ss {
		v, err := c.Expand(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// isCondition reports whether a table key is a boolean expression rather than a field name
func isCondition(key string, env Env) bool {
	_, err := expr.Compile(key, expr.Env(env), expr.AsBool())
	return err == nil
}

// unmarshalConditionalSection is a helper to parse, evaluate and merge multiple sections with conditional logic.
// With interpolate set, {{...}} expressions are evaluated in the base fields and in matched sub-tables only.
func unmarshalConditionalSection[T any](rawCfg map[string]any, name string, dst *T, env Env, interpolate bool) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok && isCondition(key, env) {
			conditionalFields[key] = subMap
		} else {
			baseFields[key] = val
		}
	}

	if len(baseFields) > 0 {
		if interpolate {
			if _, err := processExpressions(baseFields, env); err != nil {
				return fmt.Errorf("error processing expressions in [%s]: %w", name, err)
			}
		}
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	// sorted so that overlapping conditions merge in a stable order
	for _, expression := range slices.Sorted(maps.Keys(conditionalFields)) {
		program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}

		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		if interpolate {
			if _, err := processExpressions(conditionalFields[expression], env); err != nil {
				return fmt.Errorf("error processing expressions in [%s.%q]: %w", name, expression, err)
			}
		}

		var condSection T
		if err := toml.Unmarshal([]byte(mustMarshal(conditionalFields[expression])), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeInto(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env Env) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		fullMatchStart := matchIndexes[0]
		fullMatchEnd := matchIndexes[1]
		expressionStart := matchIndexes[2]
		expressionEnd := matchIndexes[3]

		builder.WriteString(s[lastIndex:fullMatchStart])

		expression := strings.TrimSpace(s[expressionStart:expressionEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}
		if result == nil {
			return "", fmt.Errorf("%q: %w", expression, errNilResult)
		}

		fmt.Fprint(&builder, result)
		lastIndex = fullMatchEnd
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// ParseConfig reads a task file. Variables are interpolated right away, skipping
// sub-tables whose condition does not hold; task strings are kept verbatim and
// expanded by Config.Expand when the task runs.
func ParseConfig(rdr io.Reader, env Env) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	if env.Vars == nil {
		env.Vars = make(map[string]string)
	}
	if env.varErrs == nil {
		env.varErrs = make(map[string]error)
	}

	cfg := &Config{Tasks: make(map[string]*Task)}

	if err := unmarshalSection(rawConfig, "project", &cfg.Project); err != nil {
		return nil, err
	}

	// built-ins first so [vars] can build on them; [vars] may still override
	env.setBuiltinVars()
	var vars map[string]string
	if err := unmarshalConditionalSection(rawConfig, "vars", &vars, env, true); err != nil {
		return nil, err
	}
	maps.Copy(env.Vars, vars)
	cfg.Vars = env.Vars
	cfg.Env = env

	if rawTasks, ok := rawConfig["task"]; ok {
		taskTable, ok := rawTasks.(map[string]any)
		if !ok {
			return nil, errors.New("invalid [task] section format: expected a table")
		}
		for name := range taskTable {
			task := new(Task)
			if err := unmarshalConditionalSection(taskTable, name, task, env, false); err != nil {
				return nil, fmt.Errorf("task %q: %w", name, err)
			}
			task.Name = name
			cfg.Tasks[name] = task
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	for _, name := range c.TaskNames() {
		task := c.Tasks[name]
		if name == "" {
			return errors.New("task with an empty name")
		}
		for _, dep := range task.Deps {
			if _, ok := c.Tasks[dep]; !ok {
				return fmt.Errorf("task %q depends on %w %q", name, ErrUnknownTask, dep)
			}
		}
		for i, cp := range task.Copy {
			if len(cp.From) == 0 {
				return fmt.Errorf("task %q: copy #%d has no sources", name, i+1)
			}
			if cp.To == "" {
				return fmt.Errorf("task %q: copy #%d has no destination", name, i+1)
			}
		}
	}
	return nil
}

// ParseConfigFromFile parses and validates a config file from a filepath
func ParseConfigFromFile(path string, env Env) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := ParseConfig(bufio.NewReader(f), env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Load reads the task file for the project in env.Basedir(). An empty file
// means Mosaic.toml in the project directory, falling back to the built-in
// tasks when it does not exist.
func Load(file string, env Env) (*Config, error) {
	if file != "" {
		if !filepath.IsAbs(file) {
			file = filepath.Join(env.Basedir(), file)
		}
		return ParseConfigFromFile(file, env)
	}

	path := filepath.Join(env.Basedir(), Filename)
	if _, err := os.Stat(path); err == nil {
		return ParseConfigFromFile(path, env)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg, err := ParseConfig(bytes.NewReader(DefaultTaskFile), env)
	if err != nil {
		return nil, fmt.Errorf("builtin task file: %w", err)
	}
	cfg.Path = BuiltinPath
	return cfg, nil
}
