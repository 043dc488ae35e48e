// Package scanner discovers template source files.
//
// Discovery walks a directory tree with an explicit worklist of pending
// directories rather than call-stack recursion, so arbitrarily deep trees do
// not grow the stack. All filesystem access goes through an afero.Fs, which
// lets tests run discovery against in-memory or failing filesystems. A
// directory that cannot be listed aborts discovery with a DiscoveryError; no
// subtree is ever silently skipped.
package scanner

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	torxerrors "github.com/conneroisu/torx/internal/errors"
	"github.com/conneroisu/torx/internal/logging"
)

// SourceScanner discovers template files below a root directory.
type SourceScanner struct {
	// fs is the filesystem directories are listed from
	fs afero.Fs
	// filter decides which files are templates
	filter PathFilter
	// ignore holds filepath.Match patterns for directory names not descended into
	ignore []string
	logger logging.Logger
}

// Option configures a SourceScanner.
type Option func(*SourceScanner)

// WithIgnore skips directories whose base name matches one of patterns.
func WithIgnore(patterns []string) Option {
	return func(s *SourceScanner) {
		s.ignore = append([]string(nil), patterns...)
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *SourceScanner) {
		s.logger = logger.WithComponent("scanner")
	}
}

// NewSourceScanner creates a scanner over fs accepting files matched by filter.
func NewSourceScanner(fs afero.Fs, filter PathFilter, opts ...Option) *SourceScanner {
	s := &SourceScanner{
		fs:     fs,
		filter: filter,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover returns every template file reachable from root, at any depth,
// sorted and without duplicates.
func (s *SourceScanner) Discover(ctx context.Context, root string) ([]string, error) {
	root = filepath.Clean(root)

	pending := []string{root}
	visited := make(map[string]struct{})
	found := make(map[string]struct{})

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if _, ok := visited[dir]; ok {
			continue
		}
		visited[dir] = struct{}{}

		entries, err := afero.ReadDir(s.fs, dir)
		if err != nil {
			return nil, torxerrors.NewDiscoveryError(dir, err)
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				if MatchesAny(s.ignore, entry.Name()) {
					s.logger.Debug(ctx, "Skipping ignored directory", "dir", path)
					continue
				}
				pending = append(pending, path)
				continue
			}

			if s.filter(path) {
				found[path] = struct{}{}
			}
		}
	}

	paths := make([]string, 0, len(found))
	for path := range found {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	s.logger.Debug(ctx, "Discovery finished", "root", root, "directories", len(visited), "templates", len(paths))

	return paths, nil
}

// MatchesAny reports whether name matches one of the filepath.Match patterns.
func MatchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
