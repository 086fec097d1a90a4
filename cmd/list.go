// mosaicmk list, mosaicmk vars
package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/mosaicmk/internal/msg"
	"github.com/spf13/cobra"
)

func doList() {
	cfg := loadConfig()

	width := 0
	for name := range cfg.Tasks {
		width = max(width, len(name))
	}

	fmt.Printf("Tasks in %s:\n", cfg.Path)
	for _, name := range cfg.TaskNames() {
		task := cfg.Tasks[name]
		line := fmt.Sprintf("  %s  %s", color.HiCyanString("%-*s", width, name), task.Description)
		if len(task.Deps) > 0 {
			line += color.HiBlackString(" [%s]", strings.Join(task.Deps, ", "))
		}
		fmt.Println(line)
	}
}

func doVars() {
	cfg := loadConfig()
	env := cfg.Env

	fmt.Printf("%s = %s\n", color.HiCyanString("target_os"), env.TargetOS)
	fmt.Printf("%s = %s\n", color.HiCyanString("target_arch"), env.TargetArch)
	fmt.Printf("%s = %s\n", color.HiCyanString("home"), env.Home)
	fmt.Printf("%s = %s\n", color.HiCyanString("git"), env.Git)

	for _, name := range slices.Sorted(maps.Keys(cfg.Vars)) {
		fmt.Printf("%s = %s\n", color.HiCyanString("vars.%s", name), cfg.Vars[name])
	}
	if _, err := env.Var("mathbase"); err != nil {
		msg.Warn("%v", err)
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tasks of the project",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		doList()
	},
}

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Show task file variables and the expression environment",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		doVars()
	},
}

func init() {
	// mosaicmk list subcommand
	rootCmd.AddCommand(listCmd)

	// mosaicmk vars subcommand
	rootCmd.AddCommand(varsCmd)
}
