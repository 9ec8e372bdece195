package archive

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/cperrin88/wikidumps/pkg/errors"
	"github.com/mholt/archives"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compress(t *testing.T, c archives.Compressor, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := c.OpenWriter(&buf)
	require.NoError(t, err)
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	fs := afero.NewMemMapFs()
	xml := "<mediawiki><page><title>Go</title></page></mediawiki>"

	files := map[string][]byte{
		"/data/en/20210101/enwiki-20210101-pages-articles.xml.bz2": compress(t, archives.Bz2{}, xml),
		"/data/en/20210101/enwiki-20210101-abstract.xml.gz":        compress(t, archives.Gz{}, xml),
		"/data/de/20210101/dewiki-20210101-pages-articles.xml.bz2": []byte("<html><body>503 Service Unavailable</body></html>"),
		"/data/README.txt": []byte("downloaded by wikidumps"),
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, content, 0o644))
	}

	entries, err := NewInspector(fs).Inspect(context.Background(), "/data")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	byPath := make(map[string]Entry)
	for _, e := range entries {
		assert.NoError(t, e.Err, e.Path)
		assert.Equal(t, int64(len(files[e.Path])), e.Size, e.Path)
		byPath[e.Path] = e
	}

	bz := byPath["/data/en/20210101/enwiki-20210101-pages-articles.xml.bz2"]
	assert.True(t, bz.Known())
	assert.Equal(t, ".bz2", bz.Format)
	assert.False(t, bz.Mismatch)

	gz := byPath["/data/en/20210101/enwiki-20210101-abstract.xml.gz"]
	assert.Equal(t, ".gz", gz.Format)
	assert.False(t, gz.Mismatch)

	broken := byPath["/data/de/20210101/dewiki-20210101-pages-articles.xml.bz2"]
	assert.False(t, broken.Known())
	assert.True(t, broken.Mismatch)

	readme := byPath["/data/README.txt"]
	assert.False(t, readme.Known())
	assert.False(t, readme.Mismatch)

	assert.Equal(t, "/data/README.txt", entries[0].Path)
	assert.Equal(t, map[string]int{".bz2": 1, ".gz": 1, "unknown": 2}, Summary(entries))
}

func TestInspectMissingDirectory(t *testing.T) {
	_, err := NewInspector(afero.NewMemMapFs()).Inspect(context.Background(), "/nowhere")
	assert.ErrorIs(t, err, errors.ErrMissingDirectory)
}

func TestInspectCanceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/a.gz", []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewInspector(fs).Inspect(ctx, "/data")
	assert.ErrorIs(t, err, context.Canceled)
}
