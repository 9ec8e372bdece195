// Package archive identifies the compression format of downloaded dump files.
package archive

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/cperrin88/wikidumps/pkg/fsutil"
	"github.com/mholt/archives"
	"github.com/spf13/afero"
)

// Entry describes one file below the inspected directory.
type Entry struct {
	Path string
	Size int64
	// Format is the extension of the format detected from the file header,
	// e.g. ".bz2", or empty when nothing matched.
	Format    string
	MediaType string
	// Mismatch is set when the detected format disagrees with the file name,
	// which usually means a truncated download or a saved error page.
	Mismatch bool
	Err      error
}

// Known reports whether a format was detected.
func (e Entry) Known() bool { return e.Format != "" }

// Inspector walks a download directory and identifies each file.
type Inspector struct {
	fs afero.Fs
}

// NewInspector creates an Inspector reading from fsys.
func NewInspector(fsys afero.Fs) *Inspector {
	return &Inspector{fs: fsys}
}

// Inspect identifies every regular file below dir, sorted by path. Files that
// cannot be read or identified are reported in their Entry, not as an error.
func (i *Inspector) Inspect(ctx context.Context, dir string) ([]Entry, error) {
	ok, err := fsutil.IsDir(i.fs, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect %s", dir)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrMissingDirectory, dir)
	}

	var entries []Entry
	err = afero.Walk(i.fs, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		entries = append(entries, i.identify(ctx, path, info.Size()))
		return nil
	})
	if err != nil {
		return entries, errors.Wrapf(err, "failed to walk %s", dir)
	}

	sort.Slice(entries, func(a, b int) bool { return entries[a].Path < entries[b].Path })
	return entries, nil
}

func (i *Inspector) identify(ctx context.Context, path string, size int64) Entry {
	entry := Entry{Path: path, Size: size}

	f, err := i.fs.Open(path)
	if err != nil {
		entry.Err = err
		return entry
	}
	defer func() { _ = f.Close() }()

	// Only the header counts: the name is compared afterwards.
	format, _, err := archives.Identify(ctx, "", f)
	if err != nil {
		if !errors.Is(err, archives.NoMatch) {
			entry.Err = err
		}
		entry.Mismatch = expectsArchive(path)
		return entry
	}

	entry.Format = format.Extension()
	entry.MediaType = format.MediaType()
	entry.Mismatch = !strings.HasSuffix(strings.ToLower(path), strings.ToLower(entry.Format))
	return entry
}

// compressedExtensions are the suffixes dump files are published with.
var compressedExtensions = []string{".bz2", ".gz", ".7z", ".zst", ".xz"}

func expectsArchive(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range compressedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Summary counts entries per detected format. Unknown files count under "unknown".
func Summary(entries []Entry) map[string]int {
	out := make(map[string]int)
	for _, e := range entries {
		key := e.Format
		if key == "" {
			key = "unknown"
		}
		out[key]++
	}
	return out
}
