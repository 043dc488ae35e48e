package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Summary is the machine-readable record of a batch build.
type Summary struct {
	Source       string      `yaml:"source"`
	Distribution string      `yaml:"distribution,omitempty"`
	TotalFiles   int         `yaml:"total_files"`
	FailedFiles  int         `yaml:"failed_files"`
	TotalMs      int64       `yaml:"total_ms"`
	AverageMs    int64       `yaml:"average_ms"`
	Files        []FileEntry `yaml:"files"`
}

// FileEntry records the outcome of one compile task.
type FileEntry struct {
	Source     string `yaml:"source"`
	Output     string `yaml:"output"`
	DurationMs int64  `yaml:"duration_ms"`
	Error      string `yaml:"error,omitempty"`
}

// WriteYAML encodes s as YAML.
func WriteYAML(w io.Writer, s Summary) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("encoding build report: %w", err)
	}

	return encoder.Close()
}

// WriteFile writes s as YAML to path, creating parent directories.
func WriteFile(fs afero.Fs, path string, s Summary) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating build report: %w", err)
	}

	if err := WriteYAML(f, s); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
