package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kind string

func (k kind) String() string { return string(k) }

func TestReporterLines(t *testing.T) {
	var out, errOut bytes.Buffer
	r := New(&out, &errOut)

	r.Banner("templates")
	r.Build("dist/index.html", 12*time.Millisecond+400*time.Microsecond)
	r.Event(kind("changed"), "templates/index.html.torx")
	r.Done(3, 1, 1500*time.Millisecond)
	r.Error(errors.New("[ERR_COMPILE_FAILED] templates/bad.torx: compilation failed: boom"))

	assert.Equal(t, strings.Join([]string{
		"WATCH: watching templates for changes (press Ctrl+C to stop)",
		"BUILD: dist/index.html (12 ms)",
		"WATCH: templates/index.html.torx has been changed",
		"DONE: 3 file(s) in 1500 ms (1 failed)",
		"",
	}, "\n"), out.String())

	assert.Equal(t, "ERROR: [ERR_COMPILE_FAILED] templates/bad.torx: compilation failed: boom\n", errOut.String())
}

func TestReporterNilError(t *testing.T) {
	var out, errOut bytes.Buffer
	New(&out, &errOut).Error(nil)

	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())
}

func TestReporterConcurrentLinesDoNotInterleave(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, &out)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Build(fmt.Sprintf("dist/file-%02d.html", i), time.Duration(i)*time.Millisecond)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		assert.Regexp(t, `^BUILD: dist/file-\d\d\.html \(\d+ ms\)$`, line)
	}
}

func TestMilliseconds(t *testing.T) {
	assert.Equal(t, int64(0), Milliseconds(400*time.Microsecond))
	assert.Equal(t, int64(1), Milliseconds(600*time.Microsecond))
	assert.Equal(t, int64(250), Milliseconds(250*time.Millisecond))
}
