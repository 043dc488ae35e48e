package build

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/conneroisu/torx/internal/compiler"
	torxerrors "github.com/conneroisu/torx/internal/errors"
	"github.com/conneroisu/torx/internal/logging"
)

// Task maps one template source file to the file it compiles to.
type Task struct {
	SourcePath string
	OutputPath string
}

// Result represents the result of a build operation
type Result struct {
	Task     Task
	Duration time.Duration
	Err      error
}

// Failed reports whether the task failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Runner executes compile tasks: read the source, compile it, write the
// output. Read, compile and write happen strictly in that order.
type Runner struct {
	fs       afero.Fs
	compiler compiler.Compiler
	atomic   bool
	dryRun   bool
	logger   logging.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAtomicWrites writes outputs to a temporary file that is renamed over
// the target, so a failed write never leaves a partial file.
func WithAtomicWrites(atomic bool) RunnerOption {
	return func(r *Runner) {
		r.atomic = atomic
	}
}

// WithDryRun compiles without writing outputs.
func WithDryRun(dryRun bool) RunnerOption {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

// WithRunnerLogger sets the diagnostic logger.
func WithRunnerLogger(logger logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger.WithComponent("task")
	}
}

// NewRunner creates a task runner reading and writing through fs.
func NewRunner(fs afero.Fs, c compiler.Compiler, opts ...RunnerOption) *Runner {
	r := &Runner{
		fs:       fs,
		compiler: c,
		atomic:   true,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes task and returns its result. A failure is a compile error
// naming the source path and the failing stage.
func (r *Runner) Run(ctx context.Context, task Task) Result {
	start := time.Now()
	err := r.run(ctx, task)

	return Result{
		Task:     task,
		Duration: time.Since(start),
		Err:      err,
	}
}

func (r *Runner) run(ctx context.Context, task Task) error {
	data, err := afero.ReadFile(r.fs, task.SourcePath)
	if err != nil {
		return torxerrors.NewCompileError(task.SourcePath, torxerrors.StageRead, err)
	}

	source, err := decodeSource(data)
	if err != nil {
		return torxerrors.NewCompileError(task.SourcePath, torxerrors.StageRead, err)
	}

	output, err := r.compiler.Compile(ctx, source, compiler.Options{}, task.SourcePath)
	if err != nil {
		return torxerrors.NewCompileError(task.SourcePath, torxerrors.StageCompile, err)
	}

	if r.dryRun {
		r.logger.Debug(ctx, "Dry run, output not written", "output", task.OutputPath, "bytes", len(output))
		return nil
	}

	if err := r.write(task.OutputPath, []byte(output)); err != nil {
		return torxerrors.NewCompileError(task.SourcePath, torxerrors.StageWrite, err)
	}

	return nil
}

// decodeSource decodes UTF-8 source text, dropping a leading byte order mark.
func decodeSource(data []byte) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decoding source: %w", err)
	}
	return string(decoded), nil
}

func (r *Runner) write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if !r.atomic {
		return afero.WriteFile(r.fs, path, data, 0o644)
	}

	tmp, err := afero.TempFile(r.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = r.fs.Remove(tmpName)
		return err
	}

	if err := tmp.Close(); err != nil {
		_ = r.fs.Remove(tmpName)
		return err
	}

	if err := r.fs.Chmod(tmpName, 0o644); err != nil {
		_ = r.fs.Remove(tmpName)
		return err
	}

	if err := r.fs.Rename(tmpName, path); err != nil {
		_ = r.fs.Remove(tmpName)
		return err
	}

	return nil
}
