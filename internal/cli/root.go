// Package cli implements the wikidumps command line.
package cli

import (
	"fmt"
	"strings"

	"github.com/cperrin88/wikidumps/internal/logger"
	"github.com/cperrin88/wikidumps/pkg/config"
	"github.com/spf13/cobra"
)

// DotEnvFile is loaded from the working directory before any command runs.
const DotEnvFile = ".env"

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Global flags, bound by NewRootCmd.
var (
	configPath string
	logLevel   string
	logFormat  string
	logFile    string
	verbose    bool
)

// NewRootCmd builds the wikidumps command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikidumps",
		Short: "Download Wikimedia database dumps",
		Long: `wikidumps mirrors Wikimedia database dumps:
- resolves the latest dump date of every configured language
- downloads the configured dump files, resuming partial transfers
- inspects downloaded files for truncated or mislabeled archives`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(DotEnvFile); err != nil {
				return err
			}
			if logLevel != "" && !validLogLevels[strings.ToLower(logLevel)] {
				return &UsageError{Err: fmt.Errorf("invalid --log-level %q, must be one of: error, warn, info, debug", logLevel)}
			}
			format, err := logger.ParseFormat(flagLogFormat(string(logger.FormatText)))
			if err != nil {
				return &UsageError{Err: fmt.Errorf("invalid --log-format: %w", err)}
			}
			logger.InitLogger(flagLogLevel("info"), format)
			if logFile != "" {
				return logger.SetLogFile(logFile)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: user config directory)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json (overrides config)")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated by size (overrides config)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output, same as --log-level debug")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	cmd.AddCommand(
		NewDownloadCmd(),
		NewInspectCmd(),
		NewConfigCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// flagLogLevel returns the level requested on the command line, or fallback.
func flagLogLevel(fallback string) string {
	switch {
	case verbose:
		return "debug"
	case logLevel != "":
		return logLevel
	default:
		return fallback
	}
}

// flagLogFormat returns the format requested on the command line, or fallback.
func flagLogFormat(fallback string) string {
	if logFormat != "" {
		return logFormat
	}
	return fallback
}

// loadConfig loads the configuration file named by --config or the default
// path and applies its logging settings unless flags override them.
func loadConfig() (*config.Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(flagLogLevel(cfg.Settings.LogLevel))
	if format, err := logger.ParseFormat(flagLogFormat(cfg.Settings.LogFormat)); err == nil {
		logger.SetOutputFormat(format)
	}
	file := cfg.Settings.LogFile
	if logFile != "" {
		file = logFile
	}
	if err := logger.SetLogFile(file); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded", logger.Fields{"path": path})
	return cfg, nil
}

func getConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get default config path: %w", err)
	}
	return defaultPath, nil
}
