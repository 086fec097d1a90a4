// mosaicmk init
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/mosaicmk/internal/msg"
	"github.com/qobs-build/mosaicmk/internal/taskfile"
	"github.com/spf13/cobra"
)

var errTaskFileExists = errors.New("task file already exists")

func getProgramName() string {
	if len(os.Args) == 0 {
		return "mosaicmk"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// initIn writes the built-in task file into dir, refusing to overwrite one
func initIn(dir string) (string, error) {
	path := filepath.Join(dir, taskfile.Filename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return path, fmt.Errorf("%s: %w", path, errTaskFileExists)
	}
	if err != nil {
		return path, err
	}
	if _, err := f.Write(taskfile.DefaultTaskFile); err != nil {
		f.Close()
		return path, err
	}
	return path, f.Close()
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in " + taskfile.Filename + " into the project directory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path, err := initIn(flagDir)
		if errors.Is(err, errTaskFileExists) {
			msg.Warn("%v", err)
			return
		}
		if err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))

		programName := getProgramName()
		fmt.Printf("You can now edit it, then do %s to list tasks or %s to run them.\n",
			color.HiCyanString(programName+" list"), color.HiCyanString(programName))
	},
}

func init() {
	// mosaicmk init subcommand
	rootCmd.AddCommand(initCmd)
}
