package hooks_test

import (
	"context"
	"testing"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/cperrin88/wikidumps/pkg/hooks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddHook(t *testing.T) {
	tests := []struct {
		name        string
		hook        hooks.Hook
		expectedErr error
	}{
		{
			name: "valid hook",
			hook: hooks.Hook{Type: hooks.PostDownload, Content: `// ok`},
		},
		{
			name:        "empty hook type",
			hook:        hooks.Hook{Content: "test content"},
			expectedErr: hooks.ErrHookTypeEmpty,
		},
		{
			name:        "unsupported hook type",
			hook:        hooks.Hook{Type: "pre-install", Content: "test content"},
			expectedErr: errors.ErrHookLoad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := hooks.NewHookManager()
			err := manager.AddHook(tt.hook)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.False(t, manager.HasHook(tt.hook.Type))
				return
			}
			require.NoError(t, err)
			assert.True(t, manager.HasHook(tt.hook.Type))
		})
	}
}

func TestManagerRun(t *testing.T) {
	manager := hooks.NewHookManager()

	// No hook registered
	require.NoError(t, manager.Run(context.Background(), hooks.PostDownload, hooks.HookContext{}))

	require.NoError(t, manager.AddHook(hooks.Hook{Type: hooks.PostLanguage, Content: `err = "language " + language`}))
	err := manager.Run(context.Background(), hooks.PostLanguage, hooks.HookContext{Language: "de"})
	require.ErrorIs(t, err, errors.ErrHookScript)
	assert.Contains(t, err.Error(), "language de")

	require.NoError(t, manager.RemoveHook(hooks.PostLanguage))
	assert.False(t, manager.HasHook(hooks.PostLanguage))
	assert.ErrorIs(t, manager.RemoveHook(""), hooks.ErrHookTypeEmpty)
}

func TestLoadHooks(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/hooks/post-download.tengo", []byte(`// download`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/hooks/notes.txt", []byte(`text`), 0o644))

	t.Run("loads configured scripts", func(t *testing.T) {
		manager := hooks.NewHookManager()
		err := hooks.LoadHooks(fs, manager, map[hooks.HookType]string{
			hooks.PostDownload: "/hooks/post-download.tengo",
			hooks.PostLanguage: "",
		})
		require.NoError(t, err)
		assert.True(t, manager.HasHook(hooks.PostDownload))
		assert.False(t, manager.HasHook(hooks.PostLanguage))
	})

	t.Run("missing file", func(t *testing.T) {
		err := hooks.LoadHooks(fs, hooks.NewHookManager(), map[hooks.HookType]string{
			hooks.PostLanguage: "/hooks/missing.tengo",
		})
		assert.ErrorIs(t, err, errors.ErrHookLoad)
		assert.ErrorIs(t, err, errors.ErrConfiguration)
	})

	t.Run("wrong extension", func(t *testing.T) {
		err := hooks.LoadHooks(fs, hooks.NewHookManager(), map[hooks.HookType]string{
			hooks.PostDownload: "/hooks/notes.txt",
		})
		assert.ErrorIs(t, err, errors.ErrHookLoad)
	})
}

func TestHookTemplate(t *testing.T) {
	assert.Contains(t, hooks.HookTemplate(hooks.PostDownload), "Post-download hook")
	assert.Contains(t, hooks.HookTemplate(hooks.PostLanguage), "Post-language hook")
	assert.Contains(t, hooks.HookTemplate("other"), "Unknown hook type")
}
