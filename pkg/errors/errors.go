// Package errors holds the error taxonomy shared by every wikidumps package.
// Category sentinels decide how far an error may travel: configuration and
// environment errors end the run, resolution and transfer errors only end the
// unit of work they occurred in.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error categories.
var (
	// ErrConfiguration covers template, enabled-set and parse defects. Fatal.
	ErrConfiguration = fmt.Errorf("configuration error")
	// ErrResolution means the dump date of a language could not be determined.
	ErrResolution = fmt.Errorf("dump date resolution failed")
	// ErrTransfer is a network or timeout failure while copying a file.
	ErrTransfer = fmt.Errorf("transfer failed")
	// ErrIntegrity means more bytes arrived than the server advertised.
	ErrIntegrity = fmt.Errorf("integrity check failed")
	// ErrEnvironment covers a broken runtime environment. Fatal.
	ErrEnvironment = fmt.Errorf("environment error")
)

// Configuration errors.
var (
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("%w: failed to parse config", ErrConfiguration)
	ErrConfigValidation  = fmt.Errorf("%w: invalid configuration", ErrConfiguration)
	ErrConfigVersion     = fmt.Errorf("%w: unsupported config_version", ErrConfigParse)
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileRename  = fmt.Errorf("failed to rename temporary config file")
	ErrConfigFileExists  = fmt.Errorf("configuration file already exists (use --force to overwrite)")
	ErrConfigMarshal     = fmt.Errorf("failed to marshal config to YAML")
	ErrTemplate          = fmt.Errorf("%w: template error", ErrConfiguration)
	ErrFilesSection      = fmt.Errorf("%w: invalid files section", ErrConfiguration)
	ErrLanguagesSection  = fmt.Errorf("%w: invalid languages section", ErrConfiguration)
	ErrBaseURL           = fmt.Errorf("%w: invalid base_url", ErrConfigValidation)
	ErrInvalidLogLevel   = fmt.Errorf("%w: invalid log level", ErrConfigValidation)
	ErrInvalidSetting    = fmt.Errorf("%w: invalid setting", ErrConfigValidation)
	ErrHookLoad          = fmt.Errorf("%w: failed to load hook", ErrConfiguration)
)

// Environment errors.
var (
	ErrMissingDirectory = fmt.Errorf("%w: destination directory does not exist", ErrEnvironment)
)

// Runtime errors.
var (
	ErrNoDumpFound      = fmt.Errorf("%w: no dump found", ErrResolution)
	ErrUnexpectedStatus = fmt.Errorf("unexpected status code")
	ErrDuplicateTarget  = fmt.Errorf("destination path already claimed in this run")
	ErrHookExecution    = fmt.Errorf("error executing hook")
	ErrHookScript       = fmt.Errorf("hook script error")
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrFilesSectionWithDetails wraps ErrFilesSection with the offending entry.
func ErrFilesSectionWithDetails(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFilesSection, fmt.Sprintf(format, args...))
}

// ErrLanguagesSectionWithDetails wraps ErrLanguagesSection with the offending entry.
func ErrLanguagesSectionWithDetails(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrLanguagesSection, fmt.Sprintf(format, args...))
}

// ErrInvalidLogLevelWithDetails is a helper to create a wrapped error with the invalid level and valid options.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: '%s', must be one of: error, warn, info, debug", ErrInvalidLogLevel, level)
}

// ErrInvalidSettingWithDetails names the setting that failed validation.
func ErrInvalidSettingWithDetails(name string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidSetting, name, reason)
}
