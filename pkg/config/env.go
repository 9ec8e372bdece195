package config

import (
	stderrors "errors"
	"io/fs"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of environment variables that override the file.
const EnvPrefix = "WIKIDUMPS_"

// envKeys maps environment variable suffixes to configuration keys.
var envKeys = map[string]string{
	"BASE_URL":     "base_url",
	"USER_AGENT":   "user_agent",
	"HTTP_TIMEOUT": "http_timeout",
	"LOG_LEVEL":    "log_level",
	"LOG_FORMAT":   "log_format",
	"LOG_FILE":     "log_file",
	"CONCURRENCY":  "concurrency",
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored and variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Wrapf(errors.ErrConfigParse, "%s: %v", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from WIKIDUMPS_* variables found
// through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for suffix, key := range envKeys {
		value, ok := lookup(EnvPrefix + suffix)
		if !ok || value == "" {
			continue
		}
		if err := c.SetValue(key, value); err != nil {
			return errors.Wrapf(errors.ErrConfigValidation, "%s%s: %v", EnvPrefix, suffix, err)
		}
	}
	return nil
}
