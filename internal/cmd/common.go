package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turbot/flowci/internal/config"
	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/parse"
	"github.com/turbot/flowci/internal/printers"
	"github.com/turbot/flowci/internal/types"
)

// parseVars converts --var name=value arguments to a map.
func parseVars(args []string) (map[string]string, error) {
	vars := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("invalid variable %q, expected name=value", arg))
		}
		vars[name] = value
	}
	return vars, nil
}

// selectPipeline picks the pipeline to run: the named one, or the only one
// of the definition.
func selectPipeline(def *parse.Definition, name string) (*parse.PipelineDefinition, error) {
	if name != "" {
		return def.Find(name)
	}
	if len(def.Pipelines) == 1 {
		return def.Pipelines[0], nil
	}
	return nil, fperr.ConfigurationWithMessage(fmt.Sprintf("%s declares %d pipelines, name one of: %s", def.Path, len(def.Pipelines), strings.Join(def.Names(), ", ")))
}

func printResource(cmd *cobra.Command, r types.PrintableResource) error {
	cfg := config.GetConfigFromContext(cmd.Context())
	mode, err := types.ParseOutputMode(cfg.Output)
	if err != nil {
		return err
	}

	colorEnabled := !color.NoColor && !cfg.CI
	printer := printers.GetPrinter(mode, colorEnabled)
	return printer.PrintResource(cmd.Context(), r, cmd.OutOrStdout())
}
