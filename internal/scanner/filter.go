package scanner

import (
	"path/filepath"
	"strings"
)

// PathFilter determines if a path is a template source file.
type PathFilter func(path string) bool

// ExtensionFilter accepts paths whose base name ends with ext and has at least
// one character before it, so a bare ".torx" file is not a template.
func ExtensionFilter(ext string) PathFilter {
	return func(path string) bool {
		base := filepath.Base(path)
		return strings.HasSuffix(base, ext) && len(base) > len(ext)
	}
}
