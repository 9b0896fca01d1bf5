// Package config binds the banking-exercise CLI's flags, an optional config
// file, and BANKEX_-prefixed environment variables into one resolved
// Settings value, using viper the way the wider example pack's services do
// for this concern (the teacher itself has no config-file layer of its own;
// urfave/cli flags are its only source of settings).
package config

import (
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jnicholls/banking-exercise/internal/logging"
)

// Settings is the fully resolved configuration for one pipeline run.
type Settings struct {
	InputPath  string
	NumWorkers int
	Verbosity  int
	LogJSON    bool
	LogFile    string
	MetricsOut string
}

// Load resolves settings in ascending precedence: built-in defaults
// (verbosity seeded from $LOG_LEVEL, falling back to "info"), an optional
// config file, BANKEX_-prefixed environment variables, and finally any
// flag the caller actually typed. fs is a pflag.FlagSet pre-bound to the
// same flags the urfave/cli app exposes, with Changed set only for flags
// the user actually passed (see cmd/banking-exercise); viper.BindPFlags
// honors that Changed bit, which is what lets a config file or env var
// win over a flag's mere default.
func Load(configPath, inputPath string, fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("BANKEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("num-workers", 4)
	v.SetDefault("verbosity", logging.DefaultVerbosity())

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, err
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Settings{}, err
		}
	}

	return Settings{
		InputPath:  inputPath,
		NumWorkers: cast.ToInt(v.Get("num-workers")),
		Verbosity:  cast.ToInt(v.Get("verbosity")),
		LogJSON:    cast.ToBool(v.Get("log.json")),
		LogFile:    cast.ToString(v.Get("log.file")),
		MetricsOut: cast.ToString(v.Get("metrics.out")),
	}, nil
}
