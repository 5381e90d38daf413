package cmd

import (
	"context"

	"github.com/turbot/pipe-fittings/error_helpers"

	"github.com/turbot/flowci/internal/fperr"
)

// RunCLI executes the root command and returns the process exit code.
func RunCLI(ctx context.Context, args ...string) int {
	cmd := rootCommand()
	if len(args) > 0 {
		cmd.SetArgs(args)
	}

	if err := cmd.ExecuteContext(ctx); err != nil {
		error_helpers.ShowError(ctx, err)
		return fperr.GetExitCode(err, false)
	}
	return 0
}
