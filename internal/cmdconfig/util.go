package cmdconfig

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// CommandFullKey returns the dotted path of cmd below the root command, e.g.
// "run". The root command itself is keyed by its name.
func CommandFullKey(cmd *cobra.Command) string {
	if !cmd.HasParent() {
		return cmd.Name()
	}

	var names []string
	for c := cmd; c.HasParent(); c = c.Parent() {
		names = append(names, c.Name())
	}
	slices.Reverse(names)
	return strings.Join(names, ".")
}
