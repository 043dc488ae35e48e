package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	torxerrors "github.com/conneroisu/torx/internal/errors"
	"github.com/conneroisu/torx/internal/logging"
	"github.com/conneroisu/torx/internal/scanner"
)

var errStreamClosed = errors.New("event stream closed")

// FileWatcher is an EventSource backed by fsnotify. Only the root directory
// is observed unless recursive watching is enabled.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	root      string
	filter    scanner.PathFilter
	recursive bool
	ignore    []string
	logger    logging.Logger
}

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithFilter drops events for paths the filter rejects.
func WithFilter(filter scanner.PathFilter) Option {
	return func(fw *FileWatcher) {
		fw.filter = filter
	}
}

// WithRecursive watches every sub-directory of the root, including ones
// created while watching.
func WithRecursive(recursive bool) Option {
	return func(fw *FileWatcher) {
		fw.recursive = recursive
	}
}

// WithIgnore skips sub-directories whose base name matches one of patterns.
func WithIgnore(patterns []string) Option {
	return func(fw *FileWatcher) {
		fw.ignore = append([]string(nil), patterns...)
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger logging.Logger) Option {
	return func(fw *FileWatcher) {
		fw.logger = logger.WithComponent("watcher")
	}
}

// NewFileWatcher starts watching root.
func NewFileWatcher(root string, opts ...Option) (*FileWatcher, error) {
	fw := &FileWatcher{
		root:   filepath.Clean(root),
		filter: func(string) bool { return true },
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(fw)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, torxerrors.NewWatchError(fw.root, err)
	}
	fw.watcher = w

	if err := fw.addRoot(); err != nil {
		_ = w.Close()
		return nil, torxerrors.NewWatchError(fw.root, err)
	}

	return fw, nil
}

func (fw *FileWatcher) addRoot() error {
	if !fw.recursive {
		return fw.watcher.Add(fw.root)
	}
	return fw.addRecursive(fw.root)
}

// addRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && scanner.MatchesAny(fw.ignore, d.Name()) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// Next returns the next template change event.
func (fw *FileWatcher) Next(ctx context.Context) (ChangeEvent, error) {
	for {
		select {
		case <-ctx.Done():
			return ChangeEvent{}, ctx.Err()
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return ChangeEvent{}, torxerrors.NewSubscriptionError(fw.root, errStreamClosed)
			}
			if change, ok := fw.translate(ctx, event); ok {
				return change, nil
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				err = errStreamClosed
			}
			return ChangeEvent{}, torxerrors.NewSubscriptionError(fw.root, err)
		}
	}
}

// Close stops the watcher and cleans up resources.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) translate(ctx context.Context, event fsnotify.Event) (ChangeEvent, bool) {
	if fw.recursive && event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if scanner.MatchesAny(fw.ignore, info.Name()) {
				return ChangeEvent{}, false
			}
			if err := fw.addRecursive(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "Could not watch new directory", "dir", event.Name)
			} else {
				fw.logger.Debug(ctx, "Watching new directory", "dir", event.Name)
			}
			return ChangeEvent{}, false
		}
	}

	if !fw.filter(event.Name) {
		return ChangeEvent{}, false
	}

	var kind Kind
	switch {
	case event.Has(fsnotify.Create):
		kind = KindAdded
	case event.Has(fsnotify.Write):
		kind = KindChanged
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		kind = KindRemoved
	default:
		return ChangeEvent{}, false
	}

	fw.logger.Debug(ctx, "File event", "path", event.Name, "op", event.Op.String(), "kind", kind.String())

	return ChangeEvent{Kind: kind, Path: event.Name}, true
}
