package iocache

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestCache(t *testing.T, depth, size int) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := newCache(newPortableEngine(depth), filepath.Join(dir, "out.00001.csv"), Options{
		QueueDepth: depth,
		BufferSize: size,
	})
	if err != nil {
		t.Fatalf("newCache() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, dir
}

func checkAccounting(t *testing.T, c *Cache, held int) {
	t.Helper()
	if got := c.Free() + c.InFlight() + held; got != c.Depth() {
		t.Errorf("free(%d) + in_flight(%d) + held(%d) = %d, want %d",
			c.Free(), c.InFlight(), held, got, c.Depth())
	}
}

func TestCacheAccounting(t *testing.T) {
	c, _ := newTestCache(t, 4, 1024)
	checkAccounting(t, c, 0)

	buf, err := c.Pop()
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	checkAccounting(t, c, 1)

	for i := 0; i < 10; i++ {
		buf.WriteRow([]string{"row", "data"})
		if buf, err = c.SubmitAndPop(buf); err != nil {
			t.Fatalf("SubmitAndPop() error = %v", err)
		}
		checkAccounting(t, c, 1)
	}

	buf.WriteRow([]string{"last"})
	if _, err := c.Submit(buf); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	checkAccounting(t, c, 0)

	if err := c.Drain(); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if c.InFlight() != 0 {
		t.Errorf("InFlight() after Drain = %d, want 0", c.InFlight())
	}
	if c.Free() != c.Depth() {
		t.Errorf("Free() after Drain = %d, want %d", c.Free(), c.Depth())
	}
}

func TestCacheFullBarrierDrain(t *testing.T) {
	c, _ := newTestCache(t, 2, 1024)

	buf, err := c.Pop()
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	buf.WriteRow([]string{"a"})
	if buf, err = c.SubmitAndPop(buf); err != nil {
		t.Fatalf("SubmitAndPop() error = %v", err)
	}
	buf.WriteRow([]string{"b"})

	// Pool is empty and one write may still be outstanding; the next
	// pop must wait for every outstanding write before reusing any
	// buffer.
	if buf, err = c.SubmitAndPop(buf); err != nil {
		t.Fatalf("SubmitAndPop() error = %v", err)
	}
	if c.InFlight() != 0 {
		t.Errorf("InFlight() after barrier = %d, want 0", c.InFlight())
	}
	if _, err := c.Submit(buf); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
}

func TestCacheConservation(t *testing.T) {
	c, dir := newTestCache(t, 3, 64)

	buf, err := c.Pop()
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	want := ""
	for i := 0; i < 100; i++ {
		row := []string{"field-a", "field-b"}
		if MaxEncodedSize(row) > buf.Remaining() {
			if buf, err = c.SubmitAndPop(buf); err != nil {
				t.Fatalf("SubmitAndPop() error = %v", err)
			}
		}
		buf.WriteRow(row)
		want += "field-a,field-b\n"
	}
	if _, err := c.Submit(buf); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "out.00001.csv"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != want {
		t.Errorf("output mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}

func TestCacheRotate(t *testing.T) {
	c, dir := newTestCache(t, 2, 1024)

	buf, err := c.Pop()
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	buf.WriteRow([]string{"first"})
	if buf, err = c.SubmitAndPop(buf); err != nil {
		t.Fatalf("SubmitAndPop() error = %v", err)
	}

	second := filepath.Join(dir, "out.00002.csv")
	if err := c.Rotate(second); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if c.ActivePath() != second {
		t.Errorf("ActivePath() = %q, want %q", c.ActivePath(), second)
	}

	buf.WriteRow([]string{"second"})
	if _, err := c.Submit(buf); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got1, err := os.ReadFile(filepath.Join(dir, "out.00001.csv"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got1) != "first\n" {
		t.Errorf("first file = %q, want %q", got1, "first\n")
	}
	got2, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got2) != "second\n" {
		t.Errorf("second file = %q, want %q", got2, "second\n")
	}
}

func TestCacheOffsetAdvancesAtSubmit(t *testing.T) {
	c, _ := newTestCache(t, 2, 1024)

	buf, err := c.Pop()
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	buf.WriteRow([]string{"abc"})
	written := buf.Len()
	if _, err := c.Submit(buf); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := c.targets.active().Offset(); got != int64(written) {
		t.Errorf("offset = %d immediately after submit, want %d", got, written)
	}
}

func TestCacheRequestIDsMonotonic(t *testing.T) {
	c, _ := newTestCache(t, 3, 1024)

	var ids []uint64
	for i := 0; i < 2; i++ {
		buf, err := c.Pop()
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		buf.WriteRow([]string{"x"})
		id, err := c.Submit(buf)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		ids = append(ids, id)
	}
	if ids[1] <= ids[0] {
		t.Errorf("ids not monotonically increasing: %v", ids)
	}
}
