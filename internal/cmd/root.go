package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thediveo/enumflag/v2"

	"github.com/turbot/flowci/internal/cmdconfig"
	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/types"
)

// Build the cobra command that handles our command line tool.
func rootCommand() *cobra.Command {
	var outputMode types.OutputMode

	rootCmd := &cobra.Command{
		Use:               constants.Name,
		Short:             constants.ShortDescription,
		Long:              constants.LongDescription,
		Version:           viper.GetString("main.version"),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: cmdconfig.PreRunHook,
	}
	rootCmd.SetVersionTemplate("flowci v{{.Version}}\n")

	rootCmd.PersistentFlags().String(constants.ArgConfigPath, constants.DefaultConfigPath, "Path to the config file")
	rootCmd.PersistentFlags().Var(
		enumflag.New(&outputMode, constants.ArgOutput, types.OutputModeIds, enumflag.EnumCaseInsensitive),
		constants.ArgOutput,
		"Output format; one of: pretty, plain, yaml, json")

	// disable auto completion generation, since we don't want to support
	// powershell yet - and there's no way to disable powershell in the default generator
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(cleanupCmd())

	return rootCmd
}
