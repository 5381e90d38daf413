package cmdconfig

import (
	"github.com/turbot/flowci/internal/constants"
)

// global config defaults
func configDefaults() map[string]any {
	return map[string]any{
		constants.ArgConfigPath:           constants.DefaultConfigPath,
		constants.ArgConcurrency:          constants.DefaultConcurrency,
		constants.ArgHaltOnFailure:        true,
		constants.ArgExcludedFiles:        constants.DefaultExcludedFiles,
		constants.ArgSecretEnv:            constants.DefaultSecretEnv,
		constants.ArgDockerMinApiVersion:  constants.DefaultDockerMinApiVersion,
		constants.ArgDockerPullTimeoutSec: constants.DefaultDockerPullTimeout,
		constants.ArgOutput:               "pretty",
	}
}

// a map of known environment variables to map to viper keys, in addition to
// the FLOWCI_ prefixed form of every key
func envMappings() map[string]string {
	return map[string]string{
		"CI":            constants.ArgCI,
		"FLOWCI_CONFIG": constants.ArgConfigPath,
	}
}
