package hooks

import (
	"context"
)

// DefaultHookManager is the default implementation of HookManager.
type DefaultHookManager struct {
	executor *TengoExecutor
}

// NewHookManager creates a new hook manager.
func NewHookManager() *DefaultHookManager {
	return &DefaultHookManager{
		executor: NewTengoExecutor(),
	}
}

// Execute runs the specified hook type with the given context. A type
// without a registered hook is a no-op.
func (m *DefaultHookManager) Execute(ctx context.Context, hookType HookType, hc HookContext) error {
	if !m.HasHook(hookType) {
		return nil
	}
	return m.executor.Execute(ctx, hookType, hc)
}

// Run is Execute under the name the orchestrator expects.
func (m *DefaultHookManager) Run(ctx context.Context, hookType HookType, hc HookContext) error {
	return m.Execute(ctx, hookType, hc)
}

// AddHook adds a new hook, replacing any previous one of the same type.
func (m *DefaultHookManager) AddHook(hook Hook) error {
	if hook.Type == "" {
		return ErrHookTypeEmpty
	}
	if !ValidType(hook.Type) {
		return ErrUnsupportedHookType(string(hook.Type))
	}
	m.executor.AddScript(hook.Type, hook.Content)
	return nil
}

// RemoveHook removes a hook of the specified type.
func (m *DefaultHookManager) RemoveHook(hookType HookType) error {
	if hookType == "" {
		return ErrHookTypeEmpty
	}
	m.executor.RemoveScript(hookType)
	return nil
}

// HasHook checks if a hook of the specified type exists.
func (m *DefaultHookManager) HasHook(hookType HookType) bool {
	return m.executor.HasScript(hookType)
}
