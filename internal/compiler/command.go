package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	torxerrors "github.com/conneroisu/torx/internal/errors"
)

// CommandCompiler runs an external program for every source file. The source
// text is written to the program's stdin, the source path is appended as the
// last argument, and whatever the program prints on stdout is the output.
type CommandCompiler struct {
	command string
	args    []string
}

// NewCommandCompiler validates command and args and returns a compiler that
// executes them.
func NewCommandCompiler(command string, args []string) (*CommandCompiler, error) {
	cc := &CommandCompiler{
		command: command,
		args:    append([]string(nil), args...),
	}

	if err := cc.validateCommand(); err != nil {
		return nil, torxerrors.NewConfigError(torxerrors.ErrCodeCommandRejected,
			fmt.Sprintf("command validation failed: %v", err))
	}

	return cc, nil
}

// Compile runs the command with context-based cancellation.
func (cc *CommandCompiler) Compile(ctx context.Context, source string, _ Options, sourcePath string) (string, error) {
	args := append(append([]string(nil), cc.args...), sourcePath)

	cmd := exec.CommandContext(ctx, cc.command, args...)
	cmd.Stdin = strings.NewReader(source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s cancelled: %w", cc.command, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s failed: %w\nOutput: %s", cc.command, err, msg)
		}
		return "", fmt.Errorf("%s failed: %w", cc.command, err)
	}

	return stdout.String(), nil
}

// validateCommand validates the command and arguments to prevent command injection
func (cc *CommandCompiler) validateCommand() error {
	if strings.TrimSpace(cc.command) == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if err := validateArgument(cc.command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", cc.command, err)
	}

	if filepath.IsAbs(cc.command) && !strings.HasPrefix(cc.command, "/usr/bin/") && !strings.HasPrefix(cc.command, "/bin/") {
		return fmt.Errorf("absolute path not allowed: %s", cc.command)
	}

	for _, arg := range cc.args {
		if err := validateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}

	return nil
}

func validateArgument(arg string) error {
	// Check for shell metacharacters that could be used for command injection
	dangerous := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'"}
	for _, char := range dangerous {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("contains path traversal: %s", arg)
	}

	return nil
}
