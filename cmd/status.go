// mosaicmk status [task]
package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/qobs-build/mosaicmk/internal/msg"
	"github.com/qobs-build/mosaicmk/internal/runner"
	"github.com/spf13/cobra"
)

const defaultStatusTask = "math-iface"

func doStatus(name string) {
	cfg := loadConfig()
	statuses, err := runner.New(cfg, runner.Options{}).Status(name)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if len(statuses) == 0 {
		msg.Info("task %s installs no files", name)
		return
	}

	stale := 0
	for _, st := range statuses {
		var state string
		switch st.State {
		case runner.StateUpToDate:
			state = color.HiGreenString("%-10s", st.State)
		case runner.StateMissing:
			stale++
			state = color.YellowString("%-10s", st.State)
		case runner.StateModified:
			stale++
			state = color.HiRedString("%-10s", st.State) + fmt.Sprintf(" (+%d -%d lines)", st.Inserted, st.Deleted)
		}
		fmt.Printf("  %s %s\n", st.Dest, state)
	}

	if stale > 0 {
		msg.Warn("%d of %d files need installing, run %s", stale, len(statuses), color.HiCyanString(getProgramName()+" "+name))
	}
}

var statusCmd = &cobra.Command{
	Use:   "status [task]",
	Short: "Compare installed files with their sources",
	Long:  `Compare the files installed by a task's copy steps with their sources. If no task is given, uses "math-iface".`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := defaultStatusTask
		if len(args) > 0 {
			name = args[0]
		}
		doStatus(name)
	},
	ValidArgsFunction: completeTasks,
}

func init() {
	// mosaicmk status subcommand
	rootCmd.AddCommand(statusCmd)
}
