package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
	"github.com/turbot/go-kit/helpers"
	"github.com/turbot/pipe-fittings/error_helpers"

	"github.com/turbot/flowci/internal/cmd"
	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/log"
)

var (
	// These variables will be set by GoReleaser. We have them in main package because we put everything else in internal
	// and  I couldn't get Go Release to modify the internal packages
	version = "0.0.1-local.1"
	commit  = "none"
	date    = "unknown"
	builtBy = "local"
)

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	// Create a single, global context for the application
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			err := helpers.ToError(r)
			error_helpers.ShowError(ctx, err)
			exitCode = fperr.GetExitCode(err, true)
		}
	}()

	log.SetDefaultLogger()

	viper.SetDefault("main.version", version)
	viper.SetDefault("main.commit", commit)
	viper.SetDefault("main.date", date)
	viper.SetDefault("main.builtBy", builtBy)

	// Run the CLI
	return cmd.RunCLI(ctx)
}
