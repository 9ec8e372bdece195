package hooks

import (
	"path/filepath"
	"sort"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/spf13/afero"
)

// HookFileExtensions lists the supported hook file extensions.
var HookFileExtensions = map[string]bool{
	".tengo": true,
}

// LoadHooks reads the script configured for each hook type from fsys and
// registers it with manager. Empty paths are skipped.
func LoadHooks(fsys afero.Fs, manager HookManager, paths map[HookType]string) error {
	types := make([]string, 0, len(paths))
	for t := range paths {
		types = append(types, string(t))
	}
	sort.Strings(types)

	for _, t := range types {
		hookType := HookType(t)
		path := paths[hookType]
		if path == "" {
			continue
		}
		if !HookFileExtensions[filepath.Ext(path)] {
			return errors.Wrapf(errors.ErrHookLoad, "%s: %s is not a .tengo script", hookType, path)
		}
		content, err := afero.ReadFile(fsys, path)
		if err != nil {
			return errors.Wrapf(errors.ErrHookLoad, "%s: error reading hook file %s: %v", hookType, path, err)
		}
		if err := manager.AddHook(Hook{Type: hookType, Content: string(content)}); err != nil {
			return errors.Wrapf(err, "error adding hook %s", hookType)
		}
	}
	return nil
}

// HookTemplate generates a template for a hook script.
func HookTemplate(hookType HookType) string {
	switch hookType {
	case PostDownload:
		return `// Post-download hook
// This script runs after a dump file was downloaded completely.
// Available variables:
// - language: string - language code, e.g. "en"
// - date: string - dump date as YYYYMMDD
// - filename: string - file key, e.g. "pages-articles-multistream"
// - path: string - local path of the downloaded file
// - url: string - remote URL of the file
// - status: string - "downloaded"
// - bytes: int - bytes written by the final attempt
// Set err to a non-empty string to report a failure.

// Example: refuse suspiciously small files
/*
if bytes < 1024 {
    err = "file too small: " + path
}
*/`

	case PostLanguage:
		return `// Post-language hook
// This script runs after every file of a language was processed.
// Available variables:
// - language: string - language code
// - date: string - resolved dump date, empty if resolution failed
// - status: string - "done" or "failed"
// Set err to a non-empty string to report a failure.

// Example: print a marker
/*
fmt := import("fmt")
fmt.println("finished " + language + " " + date)
*/`

	default:
		return "// Unknown hook type: " + string(hookType)
	}
}
