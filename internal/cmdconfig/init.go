package cmdconfig

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/turbot/go-kit/files"
	"github.com/turbot/pipe-fittings/perr"

	"github.com/turbot/flowci/internal/constants"
	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/log"
	"github.com/turbot/flowci/internal/sanitize"
)

// InitGlobalConfig sets up viper with, from lowest to highest precedence,
// defaults, the config file, environment variables and the flags of cmd.
func InitGlobalConfig(cmd *cobra.Command) error {
	for k, v := range configDefaults() {
		viper.SetDefault(k, v)
	}

	// FLOWCI_HALT_ON_FAILURE sets halt-on-failure
	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for env, key := range envMappings() {
		if err := viper.BindEnv(key, env, constants.EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_"))); err != nil {
			return perr.InternalWithMessage(err.Error())
		}
	}

	if cmd != nil {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return perr.InternalWithMessage(err.Error())
		}
	}

	if err := readConfigFile(viper.GetString(constants.ArgConfigPath)); err != nil {
		return err
	}

	sanitize.SetInstance(sanitize.NewSanitizer(sanitize.SanitizerOptions{
		ExcludeFields: append(append([]string{}, sanitize.DefaultExcludeFields...), viper.GetStringSlice(constants.ArgSecretEnv)...),
		SecretValues:  secretValues(viper.GetStringSlice(constants.ArgSecretEnv)),
	}))

	// reset log level after reading the config
	log.SetDefaultLogger()
	return nil
}

// readConfigFile merges the yaml config file into viper. A missing file at
// the default location is not an error.
func readConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	path, err := files.Tildefy(configPath)
	if err != nil {
		return fperr.ConfigurationWithMessage("invalid config path " + configPath + ": " + err.Error())
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && configPath == constants.DefaultConfigPath {
			return nil
		}
		return fperr.ConfigurationWithMessage("unable to read config file " + path + ": " + err.Error())
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	if err := viper.MergeInConfig(); err != nil {
		return fperr.ConfigurationWithMessage("invalid config file " + path + ": " + err.Error())
	}
	return nil
}

// secretValues returns the current values of the named host environment
// variables. Names may be glob patterns.
func secretValues(names []string) []string {
	s := sanitize.NewSanitizer(sanitize.SanitizerOptions{ExcludeFields: names})

	var values []string
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			continue
		}
		if s.FieldExcluded(k) {
			values = append(values, v)
		}
	}
	return values
}
