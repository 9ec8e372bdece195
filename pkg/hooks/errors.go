package hooks

import (
	"fmt"

	"github.com/cperrin88/wikidumps/pkg/errors"
)

// ErrHookTypeEmpty is returned when a hook type is empty.
var ErrHookTypeEmpty = fmt.Errorf("hook type cannot be empty")

// ErrUnsupportedHookType is returned when a hook type is not one of the supported ones.
func ErrUnsupportedHookType(hookType string) error {
	return errors.Wrapf(errors.ErrHookLoad, "unsupported hook type: %q", hookType)
}

// ValidType reports whether hookType is supported.
func ValidType(hookType HookType) bool {
	switch hookType {
	case PostDownload, PostLanguage:
		return true
	default:
		return false
	}
}
