package runner

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/qobs-build/mosaicmk/internal/taskfile"
	"github.com/sergi/go-diff/diffmatchpatch"
)

type FileState int

const (
	StateMissing FileState = iota
	StateUpToDate
	StateModified
)

func (s FileState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateUpToDate:
		return "up to date"
	case StateModified:
		return "modified"
	default:
		return fmt.Sprintf("FileState(%d)", int(s))
	}
}

// FileStatus compares one copy source with its installed copy.
type FileStatus struct {
	Task   string
	Source string
	Dest   string
	State  FileState
	// Lines the installed copy is missing (Inserted) or has extra (Deleted)
	// relative to the source.
	Inserted int
	Deleted  int
}

// Status reports the state of every file the copy steps of the named task,
// and of its dependencies, install.
func (r *Runner) Status(name string) ([]FileStatus, error) {
	task, err := r.cfg.Task(name)
	if err != nil {
		return nil, err
	}
	var out []FileStatus
	err = r.status(task, make(map[string]bool), &out)
	return out, err
}

func (r *Runner) status(task *taskfile.Task, seen map[string]bool, out *[]FileStatus) error {
	if seen[task.Name] {
		return nil
	}
	seen[task.Name] = true

	for _, depName := range task.Deps {
		dep, err := r.cfg.Task(depName)
		if err != nil {
			return err
		}
		if err := r.status(dep, seen, out); err != nil {
			return err
		}
	}

	if len(task.Copy) == 0 {
		return nil
	}
	dir, err := r.taskDir(task)
	if err != nil {
		return err
	}
	for _, spec := range task.Copy {
		from, err := r.cfg.ExpandAll(spec.From)
		if err != nil {
			return fmt.Errorf("task %s: %w", task.Name, err)
		}
		to, err := r.cfg.Expand(spec.To)
		if err != nil {
			return fmt.Errorf("task %s: %w", task.Name, err)
		}
		jobs, _, err := planCopy(dir, from, to)
		if err != nil {
			return fmt.Errorf("task %s: %w", task.Name, err)
		}
		for _, job := range jobs {
			st, err := compareFiles(job.src, job.dst)
			if err != nil {
				return fmt.Errorf("task %s: %w", task.Name, err)
			}
			st.Task = task.Name
			*out = append(*out, st)
		}
	}
	return nil
}

func compareFiles(src, dst string) (FileStatus, error) {
	st := FileStatus{Source: src, Dest: dst}

	installed, err := os.ReadFile(dst)
	if errors.Is(err, os.ErrNotExist) {
		st.State = StateMissing
		return st, nil
	}
	if err != nil {
		return st, err
	}
	source, err := os.ReadFile(src)
	if err != nil {
		return st, err
	}

	if string(installed) == string(source) {
		st.State = StateUpToDate
		return st, nil
	}

	st.State = StateModified
	st.Inserted, st.Deleted = lineDiff(string(installed), string(source))
	return st, nil
}

// lineDiff counts lines inserted and deleted going from a to b.
func lineDiff(a, b string) (inserted, deleted int) {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += n
		case diffmatchpatch.DiffDelete:
			deleted += n
		}
	}
	return inserted, deleted
}

func countLines(s string) int {
	n := strings.Count(s, "\n")
	if s != "" && !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
