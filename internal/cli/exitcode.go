package cli

import (
	"context"
	"io/fs"
	"strings"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/spf13/cobra"
)

// UsageError marks a bad or missing command line argument.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// usageArgs wraps a cobra argument validator so its failures are usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// ExitCode maps an error returned by the root command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var usage *UsageError
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &usage), isCobraUsageError(err):
		return ExitUsage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExitError
	case errors.Is(err, errors.ErrMissingDirectory):
		return ExitMissingDirectory
	case errors.Is(err, errors.ErrTemplate):
		return ExitTemplate
	case errors.Is(err, errors.ErrFilesSection):
		return ExitFilesSection
	case errors.Is(err, errors.ErrLanguagesSection):
		return ExitLanguagesSection
	case errors.Is(err, errors.ErrConfigParse),
		errors.Is(err, errors.ErrConfigValidation),
		errors.Is(err, errors.ErrHookLoad):
		return ExitConfigParse
	case errors.As(err, &pathErr),
		errors.Is(err, errors.ErrConfigDirectory),
		errors.Is(err, errors.ErrConfigFileCreate),
		errors.Is(err, errors.ErrConfigFileRename):
		return ExitIO
	default:
		return ExitError
	}
}

// isCobraUsageError recognizes the errors cobra produces before any command
// runs, which cannot be wrapped.
func isCobraUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "required flag") ||
		strings.HasPrefix(msg, "if any flags in the group")
}
