package hooks_test

import (
	"context"
	"testing"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/cperrin88/wikidumps/pkg/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTengoExecutor(t *testing.T) {
	executor := hooks.NewTengoExecutor()
	hc := hooks.HookContext{
		Language: "en",
		Date:     "20210101",
		Filename: "pages-articles",
		Path:     "/data/en/20210101/enwiki-20210101-pages-articles.xml.bz2",
		URL:      "https://dumps.wikimedia.org/enwiki/20210101/enwiki-20210101-pages-articles.xml.bz2",
		Status:   "downloaded",
		Bytes:    2048,
		Vars: map[string]interface{}{
			"customVar": "customValue",
		},
	}

	t.Run("Execute empty script", func(t *testing.T) {
		executor.AddScript(hooks.PostDownload, `// nothing to do`)

		err := executor.Execute(context.Background(), hooks.PostDownload, hc)
		assert.NoError(t, err)
	})

	t.Run("Execute script with runtime error", func(t *testing.T) {
		executor.AddScript(hooks.PostLanguage, `non_existent_function()`)

		err := executor.Execute(context.Background(), hooks.PostLanguage, hc)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrHookExecution)
	})

	t.Run("Execute non-existent script", func(t *testing.T) {
		err := executor.Execute(context.Background(), "non-existent-hook", hc)
		assert.NoError(t, err)
	})

	t.Run("HasScript check", func(t *testing.T) {
		hookType := hooks.HookType("test-hook")
		assert.False(t, executor.HasScript(hookType))

		executor.AddScript(hookType, "// test script")
		assert.True(t, executor.HasScript(hookType))

		executor.RemoveScript(hookType)
		assert.False(t, executor.HasScript(hookType))
	})

	t.Run("Context variables are accessible", func(t *testing.T) {
		script := `
			if language != "en" || date != "20210101" || filename != "pages-articles" {
				err = "unexpected target"
			}
			if bytes != 2048 || status != "downloaded" || customVar != "customValue" {
				err = "unexpected result"
			}
		`
		executor.AddScript(hooks.PostDownload, script)

		err := executor.Execute(context.Background(), hooks.PostDownload, hc)
		assert.NoError(t, err)
	})

	t.Run("Script reports failure through err", func(t *testing.T) {
		executor.AddScript(hooks.PostDownload, `
			text := import("text")
			if text.has_suffix(path, ".bz2") {
				err = "refusing " + filename
			}
		`)

		err := executor.Execute(context.Background(), hooks.PostDownload, hc)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrHookScript)
		assert.Contains(t, err.Error(), "refusing pages-articles")
	})

	t.Run("Canceled context stops the script", func(t *testing.T) {
		executor.AddScript(hooks.PostLanguage, `for { }`)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := executor.Execute(ctx, hooks.PostLanguage, hc)
		assert.Error(t, err)
	})
}
