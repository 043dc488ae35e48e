package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	torxerrors "github.com/conneroisu/torx/internal/errors"
)

// failingFs refuses to open one directory.
type failingFs struct {
	afero.Fs
	failDir string
}

func (f failingFs) Open(name string) (afero.File, error) {
	if filepath.Clean(name) == f.failDir {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}

func writeTree(t *testing.T, fs afero.Fs, files ...string) {
	t.Helper()
	for _, file := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(file), 0o755))
		require.NoError(t, afero.WriteFile(fs, file, []byte("content"), 0o644))
	}
}

func TestExtensionFilter(t *testing.T) {
	filter := ExtensionFilter(".torx")

	testCases := []struct {
		path     string
		expected bool
	}{
		{"index.html.torx", true},
		{"src/deep/page.torx", true},
		{"page.torx.bak", false},
		{"page.html", false},
		{".torx", false},
		{"src/.torx", false},
		{"torx", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, filter(tc.path))
		})
	}
}

func TestDiscoverNestedTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs,
		"src/index.html.torx",
		"src/readme.md",
		"src/a/about.html.torx",
		"src/a/b/c/d/deep.css.torx",
		"src/a/b/c/d/notes.txt",
		"src/empty/.keep",
	)

	scanner := NewSourceScanner(fs, ExtensionFilter(".torx"))
	paths, err := scanner.Discover(context.Background(), "src")
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join("src", "a", "about.html.torx"),
		filepath.Join("src", "a", "b", "c", "d", "deep.css.torx"),
		filepath.Join("src", "index.html.torx"),
	}, paths)
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("src", 0o755))

	paths, err := NewSourceScanner(fs, ExtensionFilter(".torx")).Discover(context.Background(), "src")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDiscoverIgnoredDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs,
		"src/page.torx",
		"src/node_modules/pkg/x.torx",
		"src/.git/hooks/y.torx",
		"src/build-cache/z.torx",
	)

	scanner := NewSourceScanner(fs, ExtensionFilter(".torx"),
		WithIgnore([]string{".git", "node_modules", "build-*"}))

	paths, err := scanner.Discover(context.Background(), "src")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("src", "page.torx")}, paths)
}

func TestDiscoverUnreadableDirectoryPropagates(t *testing.T) {
	base := afero.NewMemMapFs()
	writeTree(t, base,
		"src/ok.torx",
		"src/locked/hidden.torx",
	)

	fs := failingFs{Fs: base, failDir: filepath.Join("src", "locked")}

	paths, err := NewSourceScanner(fs, ExtensionFilter(".torx")).Discover(context.Background(), "src")
	require.Error(t, err)
	assert.Nil(t, paths)

	assert.True(t, torxerrors.IsDiscoveryError(err))
	assert.Equal(t, filepath.Join("src", "locked"), torxerrors.PathOf(err))
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := NewSourceScanner(afero.NewMemMapFs(), ExtensionFilter(".torx")).
		Discover(context.Background(), "does-not-exist")

	require.Error(t, err)
	assert.True(t, torxerrors.IsDiscoveryError(err))
}

func TestDiscoverCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "src/a.torx")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSourceScanner(fs, ExtensionFilter(".torx")).Discover(ctx, "src")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscoverOnDisk(t *testing.T) {
	root := t.TempDir()
	fs := afero.NewOsFs()
	writeTree(t, fs,
		filepath.Join(root, "one.torx"),
		filepath.Join(root, "sub", "two.torx"),
		filepath.Join(root, "sub", "two.html"),
	)

	paths, err := NewSourceScanner(fs, ExtensionFilter(".torx")).Discover(context.Background(), root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(root, "one.torx"),
		filepath.Join(root, "sub", "two.torx"),
	}, paths)
}
