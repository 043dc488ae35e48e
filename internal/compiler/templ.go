package compiler

import (
	"bytes"
	"context"
	"fmt"

	"github.com/a-h/templ/generator"
	"github.com/a-h/templ/parser/v2"
)

// TemplCompiler generates Go code from templ source text in-process.
type TemplCompiler struct{}

// NewTemplCompiler creates a new templ compiler
func NewTemplCompiler() *TemplCompiler {
	return &TemplCompiler{}
}

// Compile parses source as a templ file and returns the generated Go code.
func (tc *TemplCompiler) Compile(ctx context.Context, source string, _ Options, sourcePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tf, err := parser.ParseString(source)
	if err != nil {
		return "", fmt.Errorf("templ parse failed: %w", err)
	}

	var buf bytes.Buffer
	if _, err := generator.Generate(tf, &buf, generator.WithFileName(sourcePath)); err != nil {
		return "", fmt.Errorf("templ generate failed: %w", err)
	}

	return buf.String(), nil
}
