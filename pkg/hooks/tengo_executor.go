package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// TengoExecutor handles the execution of Tengo scripts.
type TengoExecutor struct {
	scripts map[HookType]string
	mutex   sync.RWMutex
}

// NewTengoExecutor creates a new Tengo script executor.
func NewTengoExecutor() *TengoExecutor {
	return &TengoExecutor{
		scripts: make(map[HookType]string),
	}
}

// Execute runs the specified hook type with the given context. Scripts
// report failure by setting a variable named err.
func (e *TengoExecutor) Execute(ctx context.Context, hookType HookType, hc HookContext) error {
	e.mutex.RLock()
	script, exists := e.scripts[hookType]
	e.mutex.RUnlock()
	if !exists {
		return nil
	}

	scriptInstance := tengo.NewScript([]byte(script))
	scriptInstance.SetImports(stdlib.GetModuleMap("fmt", "os", "text", "times"))

	vars := map[string]interface{}{
		"language": hc.Language,
		"date":     hc.Date,
		"filename": hc.Filename,
		"path":     hc.Path,
		"url":      hc.URL,
		"status":   hc.Status,
		"bytes":    hc.Bytes,
		"err":      "",
	}
	for k, v := range hc.Vars {
		vars[k] = v
	}
	for k, v := range vars {
		if err := scriptInstance.Add(k, v); err != nil {
			return fmt.Errorf("failed to add variable '%s' to script: %w", k, err)
		}
	}

	compiled, err := scriptInstance.RunContext(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", hookType, errors.ErrHookExecution, err)
	}

	errVar := compiled.Get("err")
	if errVar != nil {
		switch v := errVar.Value().(type) {
		case error:
			return fmt.Errorf("%s: %w: %w", hookType, errors.ErrHookScript, v)
		case string:
			if v != "" {
				return fmt.Errorf("%s: %w: %s", hookType, errors.ErrHookScript, v)
			}
		}
	}

	return nil
}

// AddScript adds or updates a script for the specified hook type.
func (e *TengoExecutor) AddScript(hookType HookType, script string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.scripts[hookType] = script
}

// RemoveScript removes the script for the specified hook type.
func (e *TengoExecutor) RemoveScript(hookType HookType) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.scripts, hookType)
}

// HasScript checks if a script exists for the specified hook type.
func (e *TengoExecutor) HasScript(hookType HookType) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, exists := e.scripts[hookType]
	return exists
}
