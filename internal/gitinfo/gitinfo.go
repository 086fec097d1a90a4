// Package gitinfo reads the state of the git worktree a project lives in.
package gitinfo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

const shortLen = 7

// Info is exposed to task file expressions as `git`.
type Info struct {
	Commit string `expr:"commit"`
	Short  string `expr:"short"`
	Branch string `expr:"branch"`
	Dirty  bool   `expr:"dirty"`
}

// Describe inspects the repository containing dir, walking up to find .git.
// Outside a repository (or before the first commit) it returns a zero Info.
func Describe(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("open git repository at %s: %w", dir, err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	var info Info
	info.Commit = head.Hash().String()
	info.Short = info.Commit[:shortLen]
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	w, err := repo.Worktree()
	if errors.Is(err, git.ErrIsBareRepository) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("open worktree: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return info, fmt.Errorf("worktree status: %w", err)
	}
	info.Dirty = !status.IsClean()

	return info, nil
}

// String renders the info like `git describe --always --dirty`.
func (i Info) String() string {
	if i.Commit == "" {
		return "unknown"
	}
	if i.Dirty {
		return i.Short + "-dirty"
	}
	return i.Short
}
