// Package splitter implements the record-splitting drivers: rotation
// policy, output naming, and trigger-command execution.
package splitter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jittakal/csvsplit/internal/compress"
)

// DefaultSuffixLen is the width of the zero-padded file sequence number.
const DefaultSuffixLen = 5

// Name builds the path of output file n for the given input basename:
// the sequence number is inserted before the original extension and the
// compression suffix is appended, e.g. data.00001.csv.gz.
func Name(dir, base string, n, width int, codec compress.Type) string {
	if width <= 0 {
		width = DefaultSuffixLen
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := fmt.Sprintf("%s.%0*d%s%s", stem, width, n, ext, codec.Extension())
	return filepath.Join(dir, name)
}
