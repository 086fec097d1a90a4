package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/qobs-build/mosaicmk/internal/platform"
	"github.com/spf13/cobra"
)

const hostPlatform = "auto"

// platforms accepted by --os, in help order
var platforms = []string{hostPlatform, "darwin", "linux", "windows"}

// platformValue is the --os flag. Its zero value selects the host.
type platformValue struct {
	goos string
}

func (p *platformValue) String() string {
	if p.goos == "" {
		return hostPlatform
	}
	return p.goos
}

func (p *platformValue) Type() string { return "platform" }

func (p *platformValue) Set(v string) error {
	if !slices.Contains(platforms, v) {
		return fmt.Errorf("must be one of: %s", strings.Join(platforms, ", "))
	}
	if v == hostPlatform {
		v = ""
	}
	p.goos = v
	return nil
}

// GOOS is the selected platform, "" meaning the host.
func (p *platformValue) GOOS() string { return p.goos }

func platformDescription(name string) string {
	switch {
	case name == hostPlatform:
		return "The host platform (default)"
	case platform.Supported(name):
		return "Mathematica interface supported"
	default:
		return "No Mathematica directory is known"
	}
}

func platformHelp() string {
	return "[" + strings.Join(platforms, ", ") + "]"
}

func completePlatforms(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	items := make([]string, 0, len(platforms))
	for _, name := range platforms {
		if strings.HasPrefix(name, toComplete) {
			items = append(items, name+"\t"+platformDescription(name))
		}
	}
	return items, cobra.ShellCompDirectiveNoFileComp
}
