// mosaicmk run [task...]
package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/qobs-build/mosaicmk/internal/msg"
	"github.com/qobs-build/mosaicmk/internal/runner"
	"github.com/spf13/cobra"
)

func doRun(cmd *cobra.Command, args []string) {
	tasks := args
	if len(tasks) == 0 {
		tasks = []string{defaultTask}
	}

	cfg := loadConfig()
	r := runner.New(cfg, runner.Options{
		DryRun:   flagDryRun,
		Force:    flagForce,
		Jobs:     flagJobs,
		Progress: !color.NoColor,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
	if err := r.Run(cmd.Context(), tasks...); err != nil {
		msg.Fatal("%v", err)
	}
}

var runCmd = &cobra.Command{
	Use:               "run [task...]",
	Short:             "Run tasks and their dependencies",
	Long:              `Run tasks and their dependencies. If no task is given, runs "all".`,
	Args:              cobra.ArbitraryArgs,
	Run:               doRun,
	ValidArgsFunction: completeTasks,
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "Print what would be done without doing it")
	cmd.Flags().BoolVar(&flagForce, "force", false, "Copy files even when the installed copy is up to date")
	cmd.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "Number of parallel file copies (default: number of CPUs)")
}

func init() {
	// mosaicmk run subcommand
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}
