package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/mosaicmk/internal/msg"
	"golang.org/x/sync/errgroup"
)

// progressThreshold is the file size above which copies show a progress bar.
const progressThreshold = 1 << 20

var (
	errNoMatch      = errors.New("pattern matched no files")
	errDestConflict = errors.New("copy sources share a destination")
)

// copyJob copies one file into place
type copyJob struct {
	src string
	dst string
}

// collectSources resolves copy sources to files. Every pattern must match.
func collectSources(dir string, patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		path := resolvePath(dir, pattern)
		matches, err := matchPaths(path, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%s: %w", pattern, errNoMatch)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, err
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory, copy sources must be files", match)
			}
			if !seen[match] {
				seen[match] = true
				files = append(files, match)
			}
		}
	}
	return files, nil
}

// planCopy pairs every source with its path inside the destination directory.
func planCopy(dir string, from []string, to string) ([]copyJob, string, error) {
	sources, err := collectSources(dir, from)
	if err != nil {
		return nil, "", err
	}
	dest := resolvePath(dir, to)
	jobs := make([]copyJob, len(sources))
	// destination -> source; copies run in parallel, so two sources must never share a destination
	owners := make(map[string]string, len(sources))
	for i, src := range sources {
		dst := filepath.Join(dest, filepath.Base(src))
		if prev, ok := owners[dst]; ok {
			return nil, "", fmt.Errorf("%w %s: %s and %s", errDestConflict, dst, prev, src)
		}
		owners[dst] = src
		jobs[i] = copyJob{src: src, dst: dst}
	}
	return jobs, dest, nil
}

func (r *Runner) copy(ctx context.Context, dir string, from []string, to string) error {
	jobs, dest, err := planCopy(dir, from, to)
	if err != nil {
		return err
	}

	if !r.opts.DryRun {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return fmt.Errorf("failed to create destination directory: %w", err)
		}
	}

	return runJobs(ctx, jobs, r.copyFile, r.opts.Jobs)
}

func (r *Runner) copyFile(ctx context.Context, job copyJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !r.opts.Force {
		same, err := r.sameContent(job.src, job.dst)
		if err != nil {
			return err
		}
		if same {
			r.action("Fresh", "%s", job.dst)
			return nil
		}
	}

	r.action("Copying", "%s -> %s", r.relative(job.src), job.dst)
	if r.opts.DryRun {
		return nil
	}

	in, err := os.Open(job.src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(job.dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	var w io.Writer = out
	var pb *msg.ProgressBar
	if r.opts.Progress && info.Size() > progressThreshold {
		pb = msg.NewProgressBar(info.Size(), 4, r.opts.Stdout)
		pb.Label = filepath.Base(job.src)
		w = io.MultiWriter(out, pb)
	}

	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", job.src, err)
	}
	if pb != nil {
		pb.Finish()
	}
	if err := out.Close(); err != nil {
		return err
	}
	// O_CREATE only applies the mode to new files
	return os.Chmod(job.dst, info.Mode().Perm())
}

// sameContent reports whether dst exists and has the same content as src.
func (r *Runner) sameContent(src, dst string) (bool, error) {
	dstHash, err := fileHash(dst)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	srcHash, err := r.sourceHash(src)
	if err != nil {
		return false, err
	}
	return srcHash == dstHash, nil
}

// sourceHash is fileHash with an in-memory cache; sources do not change during a run
func (r *Runner) sourceHash(path string) (string, error) {
	r.hashMu.Lock()
	hash, ok := r.hashCache[path]
	r.hashMu.Unlock()
	if ok {
		return hash, nil
	}

	hash, err := fileHash(path)
	if err != nil {
		return "", err
	}

	r.hashMu.Lock()
	r.hashCache[path] = hash
	r.hashMu.Unlock()
	return hash, nil
}

// fileHash computes the SHA256 hash of a file
func fileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func (r *Runner) relative(path string) string {
	rel, err := filepath.Rel(r.cfg.Env.Basedir(), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}

// runJobs runs jobs in parallel
func runJobs[T any](ctx context.Context, jobs []T, jobfunc func(ctx context.Context, job T) error, limit int) error {
	if len(jobs) == 0 {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for _, job := range jobs {
		eg.Go(func() error {
			return jobfunc(ctx, job)
		})
	}

	return eg.Wait()
}
