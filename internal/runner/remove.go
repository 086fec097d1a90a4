package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/mosaicmk/internal/msg"
)

var (
	errNothingToRemove = errors.New("nothing to remove")
	errUnsafeRemove    = errors.New("refusing to remove")
)

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// matchPaths resolves a path or doublestar glob to the existing paths it names.
func matchPaths(pattern string, opts ...doublestar.GlobOption) ([]string, error) {
	if !hasMeta(pattern) {
		if _, err := os.Lstat(pattern); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, err
		}
		return []string{pattern}, nil
	}
	matches, err := doublestar.FilepathGlob(pattern, opts...)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	return matches, nil
}

func (r *Runner) remove(dir, pattern string, ignoreMissing bool) error {
	path := resolvePath(dir, pattern)

	matches, err := matchPaths(path)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		if ignoreMissing {
			msg.Debug("%s: %v", path, errNothingToRemove)
			return nil
		}
		return fmt.Errorf("%s: %w", path, errNothingToRemove)
	}

	for _, match := range matches {
		if err := r.checkRemovable(match); err != nil {
			return err
		}
		r.action("Removing", "%s", match)
		if r.opts.DryRun {
			continue
		}
		if err := os.RemoveAll(match); err != nil {
			return err
		}
	}
	return nil
}

// checkRemovable rejects the filesystem root, the home directory and the
// project directory itself.
func (r *Runner) checkRemovable(path string) error {
	path = filepath.Clean(path)
	switch {
	case filepath.Dir(path) == path:
		return fmt.Errorf("%w filesystem root %s", errUnsafeRemove, path)
	case path == filepath.Clean(r.cfg.Env.Home):
		return fmt.Errorf("%w home directory %s", errUnsafeRemove, path)
	case path == filepath.Clean(r.cfg.Env.Basedir()):
		return fmt.Errorf("%w project directory %s", errUnsafeRemove, path)
	}
	return nil
}
