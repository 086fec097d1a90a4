package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qobs-build/mosaicmk/internal/msg"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// shell runs one command line with the embedded POSIX shell interpreter.
// Output is indented below the "Running" line.
func (r *Runner) shell(ctx context.Context, line, dir string, environ []string) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return fmt.Errorf("failed to parse %q: %w", line, err)
	}

	sh, err := interp.New(
		interp.StdIO(r.opts.Stdin,
			&msg.IndentWriter{Indent: "    ", W: r.opts.Stdout},
			&msg.IndentWriter{Indent: "    ", W: r.opts.Stderr}),
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(environ...)),
	)
	if err != nil {
		return fmt.Errorf("failed to set up shell: %w", err)
	}

	if err := sh.Run(ctx, file); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return fmt.Errorf("%q exited with status %d", line, uint8(status))
		}
		return fmt.Errorf("%q: %w", line, err)
	}
	return nil
}
