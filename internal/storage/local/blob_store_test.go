package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseDir: "  "})
	assert.ErrorContains(t, err, "base directory is required")
}

func TestNewCreatesMissingDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "blobs")
	_, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "ab/abcd.html", "text/html", strings.NewReader("<html/>"))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(base, "ab", "abcd.html"), uri)

	data, err := os.ReadFile(filepath.Join(base, "ab", "abcd.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html/>", string(data))
}

func TestPutObjectRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.html", "text/html", strings.NewReader("x"))
	assert.ErrorContains(t, err, "path traversal")
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), " ", "text/html", strings.NewReader("x"))
	assert.ErrorContains(t, err, "path is required")
}
