// Package runner executes tasks from a task file: dependencies first, each
// task at most once, with remove, copy and run steps in that order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qobs-build/mosaicmk/internal/msg"
	"github.com/qobs-build/mosaicmk/internal/taskfile"
)

// Environment variables exported to every command.
const (
	RunIDEnvVar = "MOSAICMK_RUN_ID"
	TaskEnvVar  = "MOSAICMK_TASK"
)

var errRecursion = errors.New("task dependency cycle")

type Options struct {
	DryRun bool
	// Force copies files even when the destination is up to date.
	Force bool
	// Jobs limits parallel file copies. Zero means runtime.NumCPU().
	Jobs int
	// Progress shows a progress bar for large copies.
	Progress bool
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

type Runner struct {
	cfg   *taskfile.Config
	opts  Options
	runID string

	// task name -> finished; false while the task is in progress
	runTasks map[string]bool

	hashMu    sync.Mutex
	hashCache map[string]string
}

func New(cfg *taskfile.Config, opts Options) *Runner {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Runner{
		cfg:       cfg,
		opts:      opts,
		runID:     uuid.NewString(),
		runTasks:  make(map[string]bool),
		hashCache: make(map[string]string),
	}
}

// RunID identifies this invocation. Commands see it as $MOSAICMK_RUN_ID.
func (r *Runner) RunID() string { return r.runID }

// Run executes the named tasks in order along with their dependencies.
func (r *Runner) Run(ctx context.Context, names ...string) error {
	tasks := make([]*taskfile.Task, 0, len(names))
	for _, name := range names {
		task, err := r.cfg.Task(name)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
	}

	msg.Debug("run %s using %s", r.runID, r.cfg.Path)
	for _, task := range tasks {
		if err := r.runTask(ctx, task, nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runTask(ctx context.Context, task *taskfile.Task, chain []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chain = append(chain, task.Name)
	if done, ok := r.runTasks[task.Name]; ok {
		if done {
			msg.Debug("task %s already run", task.Name)
			return nil
		}
		return fmt.Errorf("%w: %s", errRecursion, strings.Join(chain, " -> "))
	}
	r.runTasks[task.Name] = false

	for _, depName := range task.Deps {
		dep, err := r.cfg.Task(depName)
		if err != nil {
			return err
		}
		if err := r.runTask(ctx, dep, chain); err != nil {
			if errors.Is(err, errRecursion) {
				return err
			}
			return fmt.Errorf("task %s failed due to its dependency %s: %w", task.Name, depName, err)
		}
	}

	if err := r.execute(ctx, task); err != nil {
		return fmt.Errorf("task %s: %w", task.Name, err)
	}

	r.runTasks[task.Name] = true
	return nil
}

func (r *Runner) execute(ctx context.Context, task *taskfile.Task) error {
	if task.Empty() {
		msg.Debug("task %s has no steps", task.Name)
		return nil
	}
	r.action("Task", "%s", task.Name)

	dir, err := r.taskDir(task)
	if err != nil {
		return err
	}

	for _, pattern := range task.Remove {
		pattern, err := r.cfg.Expand(pattern)
		if err != nil {
			return err
		}
		if err := r.remove(dir, pattern, task.IgnoresMissing()); err != nil {
			return err
		}
	}

	for _, spec := range task.Copy {
		from, err := r.cfg.ExpandAll(spec.From)
		if err != nil {
			return err
		}
		to, err := r.cfg.Expand(spec.To)
		if err != nil {
			return err
		}
		if err := r.copy(ctx, dir, from, to); err != nil {
			return err
		}
	}

	if len(task.Run) == 0 {
		return nil
	}
	environ, err := r.taskEnviron(task)
	if err != nil {
		return err
	}
	for _, line := range task.Run {
		line, err := r.cfg.Expand(line)
		if err != nil {
			return err
		}
		r.action("Running", "%s", line)
		if r.opts.DryRun {
			continue
		}
		if err := r.shell(ctx, line, dir, environ); err != nil {
			return err
		}
	}
	return nil
}

// taskDir is the directory a task's relative paths and commands start from.
func (r *Runner) taskDir(task *taskfile.Task) (string, error) {
	base := r.cfg.Env.Basedir()
	if task.Dir == "" {
		return base, nil
	}
	dir, err := r.cfg.Expand(task.Dir)
	if err != nil {
		return "", err
	}
	return resolvePath(base, dir), nil
}

func (r *Runner) taskEnviron(task *taskfile.Task) ([]string, error) {
	environ := os.Environ()
	for name, value := range task.Env {
		value, err := r.cfg.Expand(value)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", name, err)
		}
		environ = append(environ, name+"="+value)
	}
	environ = append(environ, RunIDEnvVar+"="+r.runID, TaskEnvVar+"="+task.Name)
	return environ, nil
}

func (r *Runner) action(verb, format string, a ...any) {
	if r.opts.DryRun {
		format += " (dry run)"
	}
	msg.Action(verb, format, a...)
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
