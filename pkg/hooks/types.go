package hooks

import "context"

// HookType represents the type of hook.
type HookType string

// Supported hook types.
const (
	PostDownload HookType = "post-download"
	PostLanguage HookType = "post-language"
)

// Hook represents a hook script with its type and content.
type Hook struct {
	Type    HookType
	Content string
}

// HookContext contains information passed to hooks. Post-language hooks
// leave the per-file fields empty.
type HookContext struct {
	Language string
	Date     string
	Filename string
	Path     string
	URL      string
	Status   string
	Bytes    int64
	Vars     map[string]interface{}
}

// HookManager defines the interface for managing hooks.
type HookManager interface {
	// Execute runs the specified hook type with the given context
	Execute(ctx context.Context, hookType HookType, hc HookContext) error

	// AddHook adds a new hook
	AddHook(hook Hook) error

	// RemoveHook removes a hook of the specified type
	RemoveHook(hookType HookType) error

	// HasHook checks if a hook of the specified type exists
	HasHook(hookType HookType) bool
}
