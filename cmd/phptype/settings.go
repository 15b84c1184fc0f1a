package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shopware/php-typeinfer/internal/infer"
)

const settingsFileName = "phptype.yaml"

// Settings is the merged result of phptype.yaml in the project root, PHPTYPE_*
// environment variables and command line flags, in increasing priority.
type Settings struct {
	LogLevel string       `mapstructure:"log_level"`
	CacheDir string       `mapstructure:"cache_dir"`
	NoCache  bool         `mapstructure:"no_cache"`
	Infer    infer.Config `mapstructure:"infer"`
}

var flagKeys = map[string]string{
	"log-level":           "log_level",
	"cache-dir":           "cache_dir",
	"no-cache":            "no_cache",
	"max-depth":           "infer.max_depth",
	"strict":              "infer.strict",
	"collect-enum-values": "infer.collect_enum_values",
	"extension":           "infer.extensions",
}

func registerSettingsFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("cache-dir", "", "folder of the persistent index (default: per-project folder in the user config dir)")
	flags.Bool("no-cache", false, "parse the whole project in memory instead of using the persistent index")
	flags.Int("max-depth", infer.DefaultMaxDepth, "number of nested class expansions")
	flags.Bool("strict", false, "fail on unresolvable classes and invalid doc types")
	flags.Bool("collect-enum-values", false, "list enum case values instead of the backing type")
	flags.StringSlice("extension", nil, "hook extension identifiers to enable")
}

// loadSettings reads the settings of the project at root. A missing settings file
// is not an error.
func loadSettings(root string, flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("PHPTYPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(filepath.Join(root, settingsFileName))

	v.SetDefault("log_level", "warn")
	v.SetDefault("infer.max_depth", infer.DefaultMaxDepth)
	v.SetDefault("infer.strict", false)
	v.SetDefault("infer.collect_enum_values", false)
	v.SetDefault("infer.extensions", []string{})
	v.SetDefault("cache_dir", "")
	v.SetDefault("no_cache", false)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Settings{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to read %s: %w", settingsFileName, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// newLogger builds a development logger at the configured level; levels it does not
// know fall back to warn.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return cfg.Build()
}
