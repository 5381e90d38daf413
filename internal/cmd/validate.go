package cmd

import (
	"github.com/spf13/cobra"

	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/parse"
	"github.com/turbot/flowci/internal/types"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Args:  cobra.ExactArgs(1),
		RunE:  validateFunc,
		Short: "Parse and validate pipeline definitions",
		Long:  `Parse and validate every pipeline of a definition file or directory and print their structure.`,
	}
	cmd.Flags().StringArray(constants.ArgVariable, nil, "Set a definition variable, name=value")
	return cmd
}

func validateFunc(cmd *cobra.Command, args []string) error {
	def, err := loadDefinition(cmd, args[0])
	if err != nil {
		return err
	}
	return printResource(cmd, types.NewPrintableDefinition(def, true))
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <path>",
		Args:  cobra.ExactArgs(1),
		RunE:  listFunc,
		Short: "List pipelines",
		Long:  `List the pipelines of a definition file or directory with their step counts.`,
	}
	cmd.Flags().StringArray(constants.ArgVariable, nil, "Set a definition variable, name=value")
	return cmd
}

func listFunc(cmd *cobra.Command, args []string) error {
	def, err := loadDefinition(cmd, args[0])
	if err != nil {
		return err
	}
	return printResource(cmd, types.NewPrintableDefinition(def, false))
}

func loadDefinition(cmd *cobra.Command, path string) (*parse.Definition, error) {
	varArgs, err := cmd.Flags().GetStringArray(constants.ArgVariable)
	if err != nil {
		return nil, err
	}
	vars, err := parseVars(varArgs)
	if err != nil {
		return nil, err
	}
	return parse.Load(cmd.Context(), path, vars)
}
