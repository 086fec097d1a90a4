package msg

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	// Out receives every message. Tests swap it for a buffer.
	Out io.Writer = os.Stdout
	// Verbose enables Debug output.
	Verbose bool
)

var mu sync.Mutex

func write(s string) {
	mu.Lock()
	defer mu.Unlock()
	io.WriteString(Out, s)
}

func printLevel(label, format string, a ...any) {
	write(label + ": " + fmt.Sprintf(format, a...) + "\n")
}

func Error(format string, a ...any) {
	printLevel(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	printLevel(color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	printLevel(color.RedString("fatal"), format, a...)
	os.Exit(1)
}

func Info(format string, a ...any) {
	printLevel(color.HiGreenString("info"), format, a...)
}

func Debug(format string, a ...any) {
	if !Verbose {
		return
	}
	printLevel(color.HiBlackString("debug"), format, a...)
}

// Action prints a right-aligned verb followed by its subject, e.g. "     Copying a.m -> /x".
func Action(verb, format string, a ...any) {
	write(color.HiGreenString("%12s", verb) + " " + fmt.Sprintf(format, a...) + "\n")
}

type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	buf := make([]byte, 0, len(p)+len(w.Indent))
	for _, c := range p {
		if !w.didIndent {
			buf = append(buf, w.Indent...)
			w.didIndent = true
		}
		buf = append(buf, c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err := w.W.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
