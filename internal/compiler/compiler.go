// Package compiler defines the contract between the build pipeline and the
// template compiler, and provides the backends torx ships with.
package compiler

//go:generate mockgen -source=compiler.go -destination=mocks/mock_compiler.go -package=mocks

import (
	"context"
	"fmt"

	"github.com/conneroisu/torx/internal/config"
	torxerrors "github.com/conneroisu/torx/internal/errors"
)

// Options carries per-invocation compiler settings. Build tasks always pass
// the zero value.
type Options struct{}

// Compiler turns the text of one template source file into output text.
// sourcePath is only used to attribute errors and name generated code.
type Compiler interface {
	Compile(ctx context.Context, source string, opts Options, sourcePath string) (string, error)
}

// Func adapts an ordinary function to the Compiler interface.
type Func func(ctx context.Context, source string, opts Options, sourcePath string) (string, error)

// Compile calls f.
func (f Func) Compile(ctx context.Context, source string, opts Options, sourcePath string) (string, error) {
	return f(ctx, source, opts, sourcePath)
}

// New returns the backend selected by cfg.
func New(cfg config.CompilerConfig) (Compiler, error) {
	switch cfg.Backend {
	case config.BackendTempl, "":
		return NewTemplCompiler(), nil
	case config.BackendCommand:
		return NewCommandCompiler(cfg.Command, cfg.Args)
	default:
		return nil, torxerrors.NewConfigError(torxerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown compiler backend %q", cfg.Backend))
	}
}
