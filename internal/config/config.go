// Package config loads session settings from a YAML file and TAGBRIDGE_
// environment overrides, and builds the logger the rest of the module
// shares.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/tagbridge/internal/ir"
)

const (
	configFileName = "tagbridge"
	configFileType = "yaml"
	envPrefix      = "TAGBRIDGE"

	keyProvenance          = "provenance"
	keyK                   = "k"
	keyWMCWithDisjunctions = "wmc_with_disjunctions"
	keyBatchWorkers        = "batch_workers"
	keyLogLevel            = "log_level"
	keyHistoryPath         = "history_path"

	defaultK            = 3
	defaultBatchWorkers = 4
	defaultLogLevel     = "info"
)

// Session holds the settings a session is created with.
type Session struct {
	Provenance          Provenance `mapstructure:"provenance"`
	K                   int        `mapstructure:"k"`
	WMCWithDisjunctions bool       `mapstructure:"wmc_with_disjunctions"`

	// BatchWorkers bounds RunBatch fan-out.
	BatchWorkers int `mapstructure:"batch_workers"`

	LogLevel string `mapstructure:"log_level"`

	// HistoryPath is the sqlite replay log. Empty disables persistence.
	HistoryPath string `mapstructure:"history_path"`
}

// Default returns the settings used when nothing is configured.
func Default() Session {
	return Session{
		Provenance:   ProvenanceUnit,
		K:            defaultK,
		BatchWorkers: defaultBatchWorkers,
		LogLevel:     defaultLogLevel,
	}
}

// Load reads tagbridge.yaml from dir, applies TAGBRIDGE_* environment
// overrides and validates the result. A missing file is not an error.
func Load(dir string) (Session, error) {
	v := viper.New()
	def := Default()
	v.SetDefault(keyProvenance, string(def.Provenance))
	v.SetDefault(keyK, def.K)
	v.SetDefault(keyWMCWithDisjunctions, def.WMCWithDisjunctions)
	v.SetDefault(keyBatchWorkers, def.BatchWorkers)
	v.SetDefault(keyLogLevel, def.LogLevel)
	v.SetDefault(keyHistoryPath, def.HistoryPath)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir != "" {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Session{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Session
	if err := v.Unmarshal(&cfg); err != nil {
		return Session{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Session{}, err
	}
	return cfg, nil
}

// Validate checks the settings and folds provenance aliases.
func (s *Session) Validate() error {
	if !s.Provenance.Known() {
		return ir.NewConfigurationError(fmt.Sprintf("unknown provenance %q", s.Provenance))
	}
	s.Provenance = s.Provenance.Canonical()
	if s.K < 0 {
		return ir.NewConfigurationError(fmt.Sprintf("k must be non-negative, got %d", s.K))
	}
	if s.BatchWorkers < 1 {
		return ir.NewConfigurationError(fmt.Sprintf("batch_workers must be at least 1, got %d", s.BatchWorkers))
	}
	if _, err := zapcore.ParseLevel(s.LogLevel); err != nil {
		return ir.NewConfigurationError(fmt.Sprintf("invalid log_level %q", s.LogLevel))
	}
	return nil
}

// NewLogger builds a production zap logger at the configured level.
func NewLogger(s Session) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, ir.NewConfigurationError(fmt.Sprintf("invalid log_level %q", s.LogLevel))
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
