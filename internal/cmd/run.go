package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/radovskyb/watcher"
	"github.com/spf13/cobra"
	"github.com/turbot/pipe-fittings/error_helpers"

	"github.com/turbot/flowci/internal/config"
	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/docker"
	"github.com/turbot/flowci/internal/engine"
	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/fplog"
	"github.com/turbot/flowci/internal/scheduler"
	"github.com/turbot/flowci/internal/types"
)

const watchInterval = 200 * time.Millisecond

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <path> [pipeline]",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runFunc,
		Short: "Run a pipeline",
		Long: `Run a pipeline of a definition file or directory against the local Docker engine.

The pipeline name may be omitted when the definition declares a single pipeline.`,
	}

	cmd.Flags().Int(constants.ArgConcurrency, constants.DefaultConcurrency, "Maximum number of steps running at once per concurrency level, 0 for no limit")
	cmd.Flags().Bool(constants.ArgFailFast, false, "Cancel the other members of a group when one of them fails with an error")
	cmd.Flags().Bool(constants.ArgHaltOnFailure, true, "Stop a pipeline as soon as a step finishes with a failure status")
	cmd.Flags().Bool(constants.ArgRetainArtifacts, false, "Keep the containers and images of the run")
	cmd.Flags().StringArray(constants.ArgVariable, nil, "Set a definition variable, name=value")
	cmd.Flags().Bool(constants.ArgWatch, false, "Run again whenever the definition changes")

	return cmd
}

func runFunc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfigFromContext(ctx)

	var pipelineName string
	if len(args) > 1 {
		pipelineName = args[1]
	}

	dc, err := docker.New(
		docker.WithContext(ctx),
		docker.WithPullTimeout(time.Duration(cfg.DockerPullTimeout)*time.Second),
		docker.WithMinApiVersion(cfg.DockerMinApiVersion),
	)
	if err != nil {
		return err
	}

	watch, err := cmd.Flags().GetBool(constants.ArgWatch)
	if err != nil {
		return err
	}
	if watch {
		return watchAndRun(cmd, dc, cfg, args[0], pipelineName)
	}
	return runOnce(cmd, dc, cfg, args[0], pipelineName)
}

func runOnce(cmd *cobra.Command, dc *docker.DockerClient, cfg *config.Configuration, path string, pipelineName string) error {
	ctx := cmd.Context()

	def, err := loadDefinition(cmd, path)
	if err != nil {
		return err
	}
	p, err := selectPipeline(def, pipelineName)
	if err != nil {
		return err
	}

	opts := []scheduler.SchedulerOption{scheduler.WithConcurrency(cfg.Concurrency)}
	if cfg.FailFast {
		opts = append(opts, scheduler.WithFailFast())
	}
	if cfg.HaltOnFailure {
		opts = append(opts, scheduler.WithHaltOnFailure())
	}
	s, err := scheduler.New(opts...)
	if err != nil {
		return err
	}

	client := engine.NewClient(s.RunId(), dc, cfg)
	defer func() {
		// cleanup must still happen after an interrupt
		if err := client.Cleanup(context.WithoutCancel(ctx)); err != nil {
			fplog.Logger(ctx).Warn("unable to clean up run artifacts", "run", s.RunId(), "error", err)
		}
	}()

	output, runErr := s.Run(ctx, p.Root, client)
	if output == nil {
		return runErr
	}

	if err := printResource(cmd, types.NewPrintableRun(output, runErr)); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if !output.Succeeded() {
		return fperr.ExecutionFailedWithMessage(fmt.Sprintf("pipeline %s finished with status failure", p.Name))
	}
	return nil
}

// watchAndRun runs the pipeline once and again after every change to path,
// until the command context is cancelled. Run errors are shown, not returned.
func watchAndRun(cmd *cobra.Command, dc *docker.DockerClient, cfg *config.Configuration, path string, pipelineName string) error {
	ctx := cmd.Context()
	logger := fplog.Logger(ctx)

	runAndReport := func() {
		if err := runOnce(cmd, dc, cfg, path, pipelineName); err != nil {
			error_helpers.ShowError(ctx, err)
		}
	}

	w := watcher.New()
	// one run per watching period
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Write, watcher.Create, watcher.Remove, watcher.Rename, watcher.Move)

	info, err := os.Stat(path)
	if err != nil {
		return fperr.NotFoundWithMessage("definition path not found: " + path)
	}
	if info.IsDir() {
		err = w.AddRecursive(path)
	} else {
		err = w.Add(path)
	}
	if err != nil {
		return fperr.ConfigurationWithMessage(fmt.Sprintf("unable to watch %s: %s", path, err))
	}

	runAndReport()

	go func() {
		for {
			select {
			case event := <-w.Event:
				logger.Info("definition changed", "path", event.Path, "op", event.Op.String())
				runAndReport()
			case err := <-w.Error:
				logger.Error("file watcher error", "error", err)
			case <-ctx.Done():
				w.Close()
				return
			case <-w.Closed:
				return
			}
		}
	}()

	logger.Info("watching for changes", "path", path)
	if err := w.Start(watchInterval); err != nil {
		return fperr.ConfigurationWithMessage(fmt.Sprintf("unable to watch %s: %s", path, err))
	}
	return nil
}
