package cmdconfig

import (
	"github.com/spf13/cobra"

	"github.com/turbot/flowci/internal/config"
	"github.com/turbot/flowci/internal/fplog"
)

// PreRunHook is executed before the Run of every command handler. It leaves
// the process configuration and an execution logger on the command context.
func PreRunHook(cmd *cobra.Command, args []string) error {
	// set up the global viper config with default values from
	// config files and ENV variables
	if err := InitGlobalConfig(cmd); err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := config.FromViper(ctx)
	if err != nil {
		return err
	}
	ctx = config.ContextWithConfig(ctx, c)

	ctx = fplog.ContextWithLogger(ctx)
	cmd.SetContext(ctx)

	fplog.Logger(ctx).Debug("command started", "command", CommandFullKey(cmd), "args", args)
	return nil
}
