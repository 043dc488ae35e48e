//go:build property

package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"
)

// TestDiscoverProperties validates discovery over randomly shaped trees
func TestDiscoverProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: N matching files at any depth are all found, M others never are
	properties.Property("discovery returns exactly the matching files", prop.ForAll(
		func(matchDepths []int, otherDepths []int) bool {
			fs := afero.NewMemMapFs()
			expected := make(map[string]struct{})

			place := func(i, depth int, name string) string {
				parts := []string{"root"}
				for d := 0; d < depth; d++ {
					parts = append(parts, fmt.Sprintf("d%d", (i+d)%3))
				}
				parts = append(parts, name)
				return filepath.Join(parts...)
			}

			for i, depth := range matchDepths {
				path := place(i, depth, fmt.Sprintf("m%d.html.torx", i))
				if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return false
				}
				if err := afero.WriteFile(fs, path, []byte("x"), 0o644); err != nil {
					return false
				}
				expected[path] = struct{}{}
			}

			for i, depth := range otherDepths {
				path := place(i, depth, fmt.Sprintf("o%d.torx.txt", i))
				if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return false
				}
				if err := afero.WriteFile(fs, path, []byte("x"), 0o644); err != nil {
					return false
				}
			}

			if err := fs.MkdirAll("root", 0o755); err != nil {
				return false
			}

			paths, err := NewSourceScanner(fs, ExtensionFilter(".torx")).Discover(context.Background(), "root")
			if err != nil {
				return false
			}

			if len(paths) != len(expected) {
				return false
			}

			seen := make(map[string]struct{}, len(paths))
			for _, path := range paths {
				if !strings.HasSuffix(path, ".torx") {
					return false
				}
				if _, ok := expected[path]; !ok {
					return false
				}
				if _, dup := seen[path]; dup {
					return false
				}
				seen[path] = struct{}{}
			}

			return true
		},
		gen.SliceOf(gen.IntRange(0, 12)),
		gen.SliceOf(gen.IntRange(0, 12)),
	))

	properties.TestingRun(t)
}
