package splitter

import (
	"path/filepath"
	"testing"

	"github.com/jittakal/csvsplit/internal/compress"
)

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		n     int
		width int
		codec compress.Type
		want  string
	}{
		{
			name: "default width",
			base: "data.csv", n: 1, width: 0, codec: compress.None,
			want: "data.00001.csv",
		},
		{
			name: "custom width",
			base: "data.csv", n: 42, width: 3, codec: compress.None,
			want: "data.042.csv",
		},
		{
			name: "width overflow keeps digits",
			base: "data.csv", n: 12345, width: 3, codec: compress.None,
			want: "data.12345.csv",
		},
		{
			name: "gzip suffix",
			base: "data.csv", n: 2, width: 5, codec: compress.Gzip,
			want: "data.00002.csv.gz",
		},
		{
			name: "bzip suffix",
			base: "data.csv", n: 2, width: 5, codec: compress.Bzip,
			want: "data.00002.csv.bz2",
		},
		{
			name: "no extension",
			base: "records", n: 7, width: 5, codec: compress.None,
			want: "records.00007",
		},
		{
			name: "stdin default base",
			base: "stdin.csv", n: 1, width: 5, codec: compress.None,
			want: "stdin.00001.csv",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Name("out", tt.base, tt.n, tt.width, tt.codec)
			want := filepath.Join("out", tt.want)
			if got != want {
				t.Errorf("Name() = %q, want %q", got, want)
			}
		})
	}
}
