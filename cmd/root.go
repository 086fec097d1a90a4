// mosaicmk [task...]
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/qobs-build/mosaicmk/internal/msg"
	"github.com/qobs-build/mosaicmk/internal/taskfile"
	"github.com/spf13/cobra"
)

const defaultTask = "all"

var (
	flagDir     string
	flagFile    string
	flagVerbose bool
	flagDryRun  bool
	flagForce   bool
	flagJobs    int
	flagOS      platformValue
)

// targetOS is the platform tasks are evaluated for, "" meaning the host.
func targetOS() string {
	return flagOS.GOOS()
}

// loadConfig reads the task file for the project selected by -C and -f.
func loadConfig() *taskfile.Config {
	dir, err := filepath.Abs(flagDir)
	if err != nil {
		msg.Fatal("%v", err)
	}
	env, err := taskfile.NewEnv(dir, targetOS())
	if err != nil {
		msg.Fatal("%v", err)
	}
	cfg, err := taskfile.Load(flagFile, env)
	if err != nil {
		msg.Fatal("%v", err)
	}
	msg.Debug("loaded %d tasks from %s", len(cfg.Tasks), cfg.Path)
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "mosaicmk [task...]",
	Short: "Build, install and package MOSAIC",
	Long: `Build, install and package MOSAIC.

Runs the named tasks from Mosaic.toml (or the built-in task file when the
project has none). With no task given, runs "all".`,
	Args:              cobra.ArbitraryArgs,
	Run:               doRun,
	ValidArgsFunction: completeTasks,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		msg.Verbose = flagVerbose
	},
}

func completeTasks(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	dir, err := filepath.Abs(flagDir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	env, err := taskfile.NewEnv(dir, targetOS())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	cfg, err := taskfile.Load(flagFile, env)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	items := make([]string, 0, len(cfg.Tasks))
	for _, name := range cfg.TaskNames() {
		items = append(items, name+"\t"+cfg.Tasks[name].Description)
	}
	return items, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "Task file (default: "+taskfile.Filename+" in the project directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug messages")
	rootCmd.PersistentFlags().Var(&flagOS, "os", "Platform to evaluate tasks for, one of "+platformHelp())
	rootCmd.RegisterFlagCompletionFunc("os", completePlatforms)

	addRunFlags(rootCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
