package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	torxerrors "github.com/conneroisu/torx/internal/errors"
	"github.com/conneroisu/torx/internal/scanner"
)

func nextEvent(t *testing.T, fw *FileWatcher) ChangeEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event, err := fw.Next(ctx)
	require.NoError(t, err)
	return event
}

func TestKindString(t *testing.T) {
	testCases := []struct {
		kind     Kind
		expected string
	}{
		{KindAdded, "added"},
		{KindRemoved, "removed"},
		{KindChanged, "changed"},
		{Kind(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.kind.String())
		})
	}
}

func TestNewFileWatcherMissingRoot(t *testing.T) {
	_, err := NewFileWatcher(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, torxerrors.IsWatchError(err))
}

func TestFileWatcherChanged(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html.torx")
	require.NoError(t, os.WriteFile(page, []byte("v1"), 0o644))

	fw, err := NewFileWatcher(dir, WithFilter(scanner.ExtensionFilter(".torx")))
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, os.WriteFile(page, []byte("v2"), 0o644))

	event := nextEvent(t, fw)
	assert.Equal(t, KindChanged, event.Kind)
	assert.Equal(t, page, event.Path)
}

func TestFileWatcherDropsNonTemplates(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	page := filepath.Join(dir, "page.torx")
	require.NoError(t, os.WriteFile(notes, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(page, []byte("v1"), 0o644))

	fw, err := NewFileWatcher(dir, WithFilter(scanner.ExtensionFilter(".torx")))
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, os.WriteFile(notes, []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(page, []byte("v2"), 0o644))

	event := nextEvent(t, fw)
	assert.Equal(t, page, event.Path)
}

func TestFileWatcherAddedAndRemoved(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "new.torx")

	fw, err := NewFileWatcher(dir, WithFilter(scanner.ExtensionFilter(".torx")))
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, os.WriteFile(page, []byte("hello"), 0o644))

	event := nextEvent(t, fw)
	assert.Equal(t, KindAdded, event.Kind)
	assert.Equal(t, page, event.Path)

	require.NoError(t, os.Remove(page))

	for {
		event = nextEvent(t, fw)
		if event.Kind != KindChanged {
			break
		}
	}
	assert.Equal(t, KindRemoved, event.Kind)
	assert.Equal(t, page, event.Path)
}

func TestFileWatcherNonRecursiveIgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	deep := filepath.Join(sub, "deep.torx")
	top := filepath.Join(dir, "top.torx")
	require.NoError(t, os.WriteFile(deep, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(top, []byte("v1"), 0o644))

	fw, err := NewFileWatcher(dir, WithFilter(scanner.ExtensionFilter(".torx")))
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, os.WriteFile(deep, []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(top, []byte("v2"), 0o644))

	event := nextEvent(t, fw)
	assert.Equal(t, top, event.Path)
}

func TestFileWatcherRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	deep := filepath.Join(sub, "deep.torx")
	require.NoError(t, os.WriteFile(deep, []byte("v1"), 0o644))

	fw, err := NewFileWatcher(dir,
		WithFilter(scanner.ExtensionFilter(".torx")),
		WithRecursive(true))
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, os.WriteFile(deep, []byte("v2"), 0o644))

	event := nextEvent(t, fw)
	assert.Equal(t, KindChanged, event.Kind)
	assert.Equal(t, deep, event.Path)
}

func TestFileWatcherRecursiveWatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher(dir,
		WithFilter(scanner.ExtensionFilter(".torx")),
		WithRecursive(true))
	require.NoError(t, err)
	defer fw.Close()

	sub := filepath.Join(dir, "later")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Next consumes the directory creation before the file exists below it.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	_, err = fw.Next(ctx)
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	page := filepath.Join(sub, "page.torx")
	require.NoError(t, os.WriteFile(page, []byte("x"), 0o644))

	event := nextEvent(t, fw)
	assert.Equal(t, KindAdded, event.Kind)
	assert.Equal(t, page, event.Path)
}

func TestFileWatcherCancelled(t *testing.T) {
	fw, err := NewFileWatcher(t.TempDir())
	require.NoError(t, err)
	defer fw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = fw.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileWatcherClosedSubscription(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher(dir)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = fw.Next(ctx)
	require.Error(t, err)
	assert.True(t, torxerrors.IsWatchError(err))
	assert.Equal(t, dir, torxerrors.PathOf(err))
}
