package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turbot/flowci/internal/config"
	"github.com/turbot/flowci/internal/docker"
	"github.com/turbot/flowci/internal/fplog"
)

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Args:  cobra.NoArgs,
		RunE:  cleanupFunc,
		Short: "Remove containers and images left by previous runs",
		Long:  `Remove every container and committed image labelled by flowci, including those of runs with retained artifacts.`,
	}
}

func cleanupFunc(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfigFromContext(ctx)

	dc, err := docker.New(docker.WithContext(ctx), docker.WithMinApiVersion(cfg.DockerMinApiVersion))
	if err != nil {
		return err
	}

	fplog.Logger(ctx).Info("removing flowci artifacts")
	if err := dc.CleanupArtifacts(ctx); err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Removed flowci containers and images")
	return err
}
