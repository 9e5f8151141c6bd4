package config

import (
	"strconv"

	"github.com/rs/zerolog"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel = "BORNOPT_LOG_LEVEL"
	EnvSeed     = "BORNOPT_SEED"
	EnvEpochs   = "BORNOPT_EPOCHS"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from the environment. Empty variables are ignored.
func (c *Config) ApplyEnv(logger zerolog.Logger, lookup LookupFunc) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
		logEnv(logger, EnvLogLevel, v)
	}
	if v, ok := lookup(EnvSeed); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &FieldError{Field: EnvSeed, Value: v, Reason: "must be an integer"}
		}
		c.Seed = seed
		logEnv(logger, EnvSeed, v)
	}
	if v, ok := lookup(EnvEpochs); ok && v != "" {
		epochs, err := strconv.Atoi(v)
		if err != nil {
			return &FieldError{Field: EnvEpochs, Value: v, Reason: "must be an integer"}
		}
		c.Train.Epochs = epochs
		logEnv(logger, EnvEpochs, v)
	}
	return nil
}

func logEnv(logger zerolog.Logger, key, value string) {
	logger.Debug().
		Str("key", key).
		Str("value", value).
		Str("source", "environment").
		Msg("using environment variable")
}
