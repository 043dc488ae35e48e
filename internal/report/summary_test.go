package report

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSummary() Summary {
	return Summary{
		Source:       "src",
		Distribution: "dist",
		TotalFiles:   2,
		FailedFiles:  1,
		TotalMs:      30,
		AverageMs:    15,
		Files: []FileEntry{
			{Source: "src/a.html.torx", Output: "dist/a.html", DurationMs: 10},
			{Source: "src/b.html.torx", Output: "dist/b.html", DurationMs: 20, Error: "compilation failed"},
		},
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, sampleSummary()))

	out := buf.String()
	assert.Contains(t, out, "total_files: 2")
	assert.Contains(t, out, "failed_files: 1")
	assert.Contains(t, out, "error: compilation failed")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("error:")))
}

func TestWriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteFile(fs, "reports/build.yml", sampleSummary()))

	data, err := afero.ReadFile(fs, "reports/build.yml")
	require.NoError(t, err)

	var got Summary
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, sampleSummary(), got)
}

func TestWriteFileReadOnly(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	assert.Error(t, WriteFile(fs, "build.yml", sampleSummary()))
}
