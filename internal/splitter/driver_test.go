package splitter

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jaswdr/faker"

	"github.com/jittakal/csvsplit/internal/compress"
	apperrors "github.com/jittakal/csvsplit/internal/errors"
	"github.com/jittakal/csvsplit/internal/iocache"
)

// sliceReader replays a fixed record stream.
type sliceReader struct {
	rows [][]string
	i    int
}

func (r *sliceReader) Read() ([]string, error) {
	if r.i >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.i]
	r.i++
	return row, nil
}

func newTestDriver(t *testing.T, dir string, cfg Config, bufSize int) *Driver {
	t.Helper()
	cfg.Dir = dir
	if cfg.Base == "" {
		cfg.Base = "data.csv"
	}
	if cfg.SuffixLen == 0 {
		cfg.SuffixLen = 5
	}
	first := Name(cfg.Dir, cfg.Base, 1, cfg.SuffixLen, compress.None)
	cache, err := iocache.New(first, iocache.Options{QueueDepth: 4, BufferSize: bufSize})
	if err != nil {
		t.Fatalf("iocache.New() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return NewDriver(cache, cfg, nil, nil)
}

// fixtureRows generates deterministic id,name,email records.
func fixtureRows(n int) [][]string {
	f := faker.NewWithSeed(rand.NewSource(42))
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{strconv.Itoa(i), f.Person().Name(), f.Internet().Email()}
	}
	return rows
}

func TestDriverRowThreshold(t *testing.T) {
	dir := t.TempDir()
	d := newTestDriver(t, dir, Config{MaxRows: 1000, GroupColumn: -1}, 1<<16)

	if err := d.Run(context.Background(), &sliceReader{rows: fixtureRows(2500)}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := countFiles(t, dir); got != 3 {
		t.Fatalf("output files = %d, want 3", got)
	}
	wantRows := []int{1000, 1000, 500}
	for i, want := range wantRows {
		rows := readCSVFile(t, d.FilePath(i+1), compress.None)
		if len(rows) != want {
			t.Errorf("file %d rows = %d, want %d", i+1, len(rows), want)
		}
	}
}

func TestDriverConservationAndOrder(t *testing.T) {
	dir := t.TempDir()
	// A buffer this small forces many capacity flushes per file.
	d := newTestDriver(t, dir, Config{MaxRows: 40, GroupColumn: -1}, 256)

	src := fixtureRows(100)
	if err := d.Run(context.Background(), &sliceReader{rows: src}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var got [][]string
	for n := 1; n <= 3; n++ {
		got = append(got, readCSVFile(t, d.FilePath(n), compress.None)...)
	}
	if len(got) != len(src) {
		t.Fatalf("total rows = %d, want %d", len(got), len(src))
	}
	for i := range src {
		if got[i][0] != src[i][0] {
			t.Fatalf("row %d id = %q, want %q", i, got[i][0], src[i][0])
		}
	}
}

func TestDriverGroupAtomicity(t *testing.T) {
	dir := t.TempDir()
	// The buffer holds only a handful of records, so flushes happen
	// mid-group; they must target the same file.
	d := newTestDriver(t, dir, Config{MaxRows: 1000, GroupColumn: 0}, 512)

	var rows [][]string
	for _, run := range []struct {
		key  string
		size int
	}{{"a", 4}, {"b", 997}, {"c", 3}} {
		for i := 0; i < run.size; i++ {
			rows = append(rows, []string{run.key, strconv.Itoa(i)})
		}
	}
	if err := d.Run(context.Background(), &sliceReader{rows: rows}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := countFiles(t, dir); got != 2 {
		t.Fatalf("output files = %d, want 2", got)
	}
	first := readCSVFile(t, d.FilePath(1), compress.None)
	if len(first) != 1001 {
		t.Errorf("first file rows = %d, want 1001", len(first))
	}
	second := readCSVFile(t, d.FilePath(2), compress.None)
	if len(second) != 3 {
		t.Errorf("second file rows = %d, want 3", len(second))
	}
	for _, row := range second {
		if row[0] != "c" {
			t.Errorf("second file key = %q, want %q", row[0], "c")
		}
	}
}

func TestDriverHeader(t *testing.T) {
	dir := t.TempDir()
	d := newTestDriver(t, dir, Config{MaxRows: 2, GroupColumn: -1, Header: true}, 1<<12)

	rows := [][]string{{"id", "name"}, {"1", "a"}, {"2", "b"}, {"3", "c"}}
	if err := d.Run(context.Background(), &sliceReader{rows: rows}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for n := 1; n <= 2; n++ {
		got := readCSVFile(t, d.FilePath(n), compress.None)
		if got[0][0] != "id" || got[0][1] != "name" {
			t.Errorf("file %d header = %v, want [id name]", n, got[0])
		}
	}
	if got := readCSVFile(t, d.FilePath(2), compress.None); len(got) != 2 {
		t.Errorf("second file rows = %d, want 2 (header + 1 record)", len(got))
	}
}

func TestDriverTrigger(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(t.TempDir(), "trigger.log")
	d := newTestDriver(t, dir, Config{
		MaxRows: 1000, GroupColumn: -1,
		Trigger: "echo {/} {rows} >> " + log,
	}, 1<<16)

	if err := d.Run(context.Background(), &sliceReader{rows: fixtureRows(1500)}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := os.ReadFile(log)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "data.00001.csv 1000\ndata.00002.csv 500\n"
	if string(got) != want {
		t.Errorf("trigger log = %q, want %q", got, want)
	}
}

func TestDriverRecordTooLarge(t *testing.T) {
	dir := t.TempDir()
	d := newTestDriver(t, dir, Config{MaxRows: 10, GroupColumn: -1}, 64)

	big := make([]byte, 128)
	for i := range big {
		big[i] = 'x'
	}
	err := d.Run(context.Background(), &sliceReader{rows: [][]string{{string(big)}}})
	if !errors.Is(err, apperrors.ErrRecordTooLarge) {
		t.Errorf("Run() error = %v, want ErrRecordTooLarge", err)
	}
}

func TestDriverContextCancel(t *testing.T) {
	dir := t.TempDir()
	d := newTestDriver(t, dir, Config{MaxRows: 1000, GroupColumn: -1}, 1<<16)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Run(ctx, &sliceReader{rows: fixtureRows(10)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestDriverEmptyInput(t *testing.T) {
	dir := t.TempDir()
	d := newTestDriver(t, dir, Config{MaxRows: 10, GroupColumn: -1}, 1<<12)

	if err := d.Run(context.Background(), &sliceReader{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	info, err := os.Stat(d.FilePath(1))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("first file size = %d, want 0", info.Size())
	}
}
