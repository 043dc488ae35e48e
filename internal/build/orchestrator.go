// Package build compiles template sources in single-file, batch and watch
// mode.
//
// The Orchestrator selects the mode from the configuration. Batch mode runs
// every discovered task on a bounded errgroup and always waits for all of
// them, so every result is reported and no task is abandoned when another
// fails. Watch mode consumes a watcher.EventSource until its context is
// cancelled or the subscription fails; compile errors never end the loop.
package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/torx/internal/compiler"
	"github.com/conneroisu/torx/internal/config"
	"github.com/conneroisu/torx/internal/logging"
	"github.com/conneroisu/torx/internal/report"
	"github.com/conneroisu/torx/internal/scanner"
	"github.com/conneroisu/torx/internal/watcher"
)

// Notifier is told about every output rebuilt in watch mode.
type Notifier interface {
	Notify(ctx context.Context, outputPath string)
}

// SourceFactory opens the change event source for a watched directory.
type SourceFactory func(ctx context.Context, root string, filter scanner.PathFilter) (watcher.EventSource, error)

// Orchestrator coordinates compile tasks for one configuration.
type Orchestrator struct {
	cfg       config.Config
	fs        afero.Fs
	runner    *Runner
	scanner   *scanner.SourceScanner
	reporter  *report.Reporter
	notifier  Notifier
	newSource SourceFactory
	metrics   *BuildMetrics
	logger    logging.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFs sets the filesystem sources are read from and outputs written to.
func WithFs(fs afero.Fs) Option {
	return func(o *Orchestrator) {
		o.fs = fs
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithNotifier sets the receiver of watch mode rebuild notifications.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithSourceFactory replaces the fsnotify event source used in watch mode.
func WithSourceFactory(f SourceFactory) Option {
	return func(o *Orchestrator) {
		o.newSource = f
	}
}

// New creates an orchestrator for cfg. A job count below one means one job
// per CPU.
func New(cfg config.Config, c compiler.Compiler, reporter *report.Reporter, opts ...Option) *Orchestrator {
	if cfg.Build.Jobs < 1 {
		cfg.Build.Jobs = runtime.NumCPU()
	}

	o := &Orchestrator{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		reporter: reporter,
		metrics:  NewBuildMetrics(),
		logger:   logging.Discard(),
	}
	o.newSource = o.fsnotifySource
	for _, opt := range opts {
		opt(o)
	}

	o.runner = NewRunner(o.fs, c,
		WithAtomicWrites(cfg.Build.Atomic),
		WithDryRun(cfg.Build.DryRun),
		WithRunnerLogger(o.logger))
	o.scanner = scanner.NewSourceScanner(o.fs, scanner.ExtensionFilter(cfg.Build.Extension),
		scanner.WithIgnore(cfg.Build.Ignore),
		scanner.WithLogger(o.logger))
	o.logger = o.logger.WithComponent("build")

	return o
}

// Run executes the mode selected by the configuration.
func (o *Orchestrator) Run(ctx context.Context) error {
	mode := o.cfg.Mode()
	o.logger.Debug(ctx, "Starting build", "mode", mode.String())

	switch mode {
	case config.ModeWatch:
		return o.Watch(ctx)
	case config.ModeSingle:
		_, err := o.BuildFile(ctx, o.cfg.SourceFile)
		return err
	default:
		_, err := o.BuildAll(ctx)
		return err
	}
}

// Metrics returns the metrics accumulated over every task run so far.
func (o *Orchestrator) Metrics() MetricsSnapshot {
	return o.metrics.Snapshot()
}

// TaskFor derives the task for one source path.
func (o *Orchestrator) TaskFor(sourcePath string) Task {
	return Task{
		SourcePath: sourcePath,
		OutputPath: o.cfg.OutputPath(sourcePath),
	}
}

// BuildFile compiles one source file and returns its result and error.
func (o *Orchestrator) BuildFile(ctx context.Context, sourcePath string) (Result, error) {
	result := o.runTask(ctx, o.TaskFor(sourcePath))
	return result, result.Err
}

// BuildAll discovers every template below the source folder and compiles them
// concurrently. All tasks are awaited; the returned error joins every failure.
func (o *Orchestrator) BuildAll(ctx context.Context) ([]Result, error) {
	start := time.Now()

	paths, err := o.scanner.Discover(ctx, o.cfg.SourceFolder)
	if err != nil {
		o.reporter.Error(err)
		return nil, err
	}

	o.logger.Debug(ctx, "Scheduling batch", "tasks", len(paths), "jobs", o.cfg.Build.Jobs)

	results := make([]Result, len(paths))
	batch := NewBuildMetrics()

	var g errgroup.Group
	g.SetLimit(o.cfg.Build.Jobs)

	for i, path := range paths {
		g.Go(func() error {
			results[i] = o.runTask(ctx, o.TaskFor(path))
			batch.RecordBuild(results[i])
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)

	var errs []error
	for _, result := range results {
		if result.Failed() {
			errs = append(errs, result.Err)
		}
	}

	stats := batch.Snapshot()

	o.reporter.Done(len(results), len(errs), elapsed)
	o.logger.Info(ctx, "Batch finished",
		"tasks", len(results),
		"failed", len(errs),
		"success_rate", stats.SuccessRate(),
		"duration", elapsed)

	if o.cfg.Build.Report != "" {
		if err := o.writeReport(results, stats, elapsed); err != nil {
			o.reporter.Error(err)
			errs = append(errs, err)
		}
	}

	return results, errors.Join(errs...)
}

// Watch rebuilds templates as they change until ctx is cancelled or the
// event source fails. Cancellation is a normal shutdown and returns nil.
func (o *Orchestrator) Watch(ctx context.Context) error {
	root := o.cfg.SourceFolder

	source, err := o.newSource(ctx, root, o.accept)
	if err != nil {
		o.reporter.Error(err)
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			o.logger.Debug(ctx, "Closing event source failed", "error", err)
		}
	}()

	o.reporter.Banner(root)

	for {
		event, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				o.logger.Info(ctx, "Watch stopped", "builds", o.metrics.Snapshot().Builds)
				return nil
			}
			o.reporter.Error(err)
			return err
		}

		o.handleEvent(ctx, event)
	}
}

// handleEvent reacts to one change event. Compile errors are reported by
// runTask and never end the watch.
func (o *Orchestrator) handleEvent(ctx context.Context, event watcher.ChangeEvent) {
	if !o.accept(event.Path) {
		o.logger.Debug(ctx, "Ignoring event", "path", event.Path, "kind", event.Kind.String())
		return
	}

	o.reporter.Event(event.Kind, event.Path)

	switch event.Kind {
	case watcher.KindChanged:
	case watcher.KindAdded:
		if !o.cfg.Watch.BuildAdded {
			return
		}
	default:
		return
	}

	result := o.runTask(ctx, o.TaskFor(event.Path))
	if !result.Failed() && o.notifier != nil {
		o.notifier.Notify(ctx, result.Task.OutputPath)
	}
}

// accept reports whether path is a template this configuration builds. A
// single source file only accepts itself.
func (o *Orchestrator) accept(path string) bool {
	if o.cfg.SourceFile != "" {
		return filepath.Clean(path) == filepath.Clean(o.cfg.SourceFile)
	}
	return scanner.ExtensionFilter(o.cfg.Build.Extension)(path)
}

func (o *Orchestrator) runTask(ctx context.Context, task Task) Result {
	result := o.runner.Run(ctx, task)
	o.metrics.RecordBuild(result)

	logger := o.logger.With("source", task.SourcePath)

	if result.Failed() {
		logger.Info(ctx, "Build failed", "error", result.Err)
		o.reporter.Error(result.Err)
		return result
	}

	logger.Debug(ctx, "Build finished",
		"output", task.OutputPath,
		"duration", result.Duration)
	o.reporter.Build(task.OutputPath, result.Duration)

	return result
}

func (o *Orchestrator) fsnotifySource(_ context.Context, root string, filter scanner.PathFilter) (watcher.EventSource, error) {
	return watcher.NewFileWatcher(root,
		watcher.WithFilter(filter),
		watcher.WithRecursive(o.cfg.Watch.Recursive),
		watcher.WithIgnore(o.cfg.Build.Ignore),
		watcher.WithLogger(o.logger))
}

func (o *Orchestrator) writeReport(results []Result, stats MetricsSnapshot, elapsed time.Duration) error {
	summary := report.Summary{
		Source:       o.cfg.SourceFolder,
		Distribution: o.cfg.DistributionFolder,
		TotalFiles:   len(results),
		FailedFiles:  int(stats.Failed),
		TotalMs:      report.Milliseconds(elapsed),
		AverageMs:    report.Milliseconds(stats.Average),
		Files:        make([]report.FileEntry, 0, len(results)),
	}

	for _, result := range results {
		entry := report.FileEntry{
			Source:     result.Task.SourcePath,
			Output:     result.Task.OutputPath,
			DurationMs: report.Milliseconds(result.Duration),
		}
		if result.Failed() {
			entry.Error = result.Err.Error()
		}
		summary.Files = append(summary.Files, entry)
	}

	if err := report.WriteFile(o.fs, o.cfg.Build.Report, summary); err != nil {
		return fmt.Errorf("writing build report %s: %w", o.cfg.Build.Report, err)
	}

	o.logger.Debug(context.Background(), "Wrote build report", "path", o.cfg.Build.Report)
	return nil
}
