package iocache

// Buffer is a fixed-capacity encode buffer and the unit of memory shared
// with the kernel. Exactly one component owns a Buffer at any time: the
// split driver while encoding, the pending-write table while a write is
// in flight, or the pool while free. The backing storage is allocated
// once and never resized.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer allocates a buffer with the given capacity in bytes.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the total capacity in bytes.
func (b *Buffer) Cap() int { return len(b.data) }

// Len returns the number of encoded bytes.
func (b *Buffer) Len() int { return b.pos }

// Remaining returns the unused capacity in bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.pos }

// Bytes returns the written span. The slice aliases the buffer's backing
// storage and is what gets handed to the kernel at submission.
func (b *Buffer) Bytes() []byte { return b.data[:b.pos] }

// Reset rewinds the write cursor. The backing storage is retained.
func (b *Buffer) Reset() { b.pos = 0 }

// WriteRow encodes one record at the cursor, fields separated by commas
// and the row terminated by a newline, quoted per RFC 4180 where needed.
// It returns the new remaining capacity.
//
// WriteRow performs no capacity checks. The caller must guarantee the
// encoded size fits, using MaxEncodedSize as the admission bound; a
// violation panics on the slice bounds check. Skipping per-field checks
// keeps the encode path branch-light, and the split driver always flushes
// before the bound could be exceeded.
func (b *Buffer) WriteRow(fields []string) int {
	for i, f := range fields {
		if i > 0 {
			b.data[b.pos] = ','
			b.pos++
		}
		if fieldNeedsQuotes(f) {
			b.writeQuoted(f)
		} else {
			b.pos += copy(b.data[b.pos:b.pos+len(f)], f)
		}
	}
	b.data[b.pos] = '\n'
	b.pos++
	return b.Remaining()
}

func (b *Buffer) writeQuoted(f string) {
	b.data[b.pos] = '"'
	b.pos++
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c == '"' {
			b.data[b.pos] = '"'
			b.pos++
		}
		b.data[b.pos] = c
		b.pos++
	}
	b.data[b.pos] = '"'
	b.pos++
}

func fieldNeedsQuotes(f string) bool {
	if f == "" {
		return false
	}
	if f[0] == ' ' || f[0] == '\t' {
		return true
	}
	for i := 0; i < len(f); i++ {
		switch f[i] {
		case ',', '"', '\r', '\n':
			return true
		}
	}
	return false
}

// MaxEncodedSize returns a conservative upper bound on the encoded size
// of a record: every field quoted with every byte doubled, plus framing.
// A buffer with at least this much remaining capacity always admits the
// record.
func MaxEncodedSize(fields []string) int {
	size := len(fields) + 1
	for _, f := range fields {
		size += 2*len(f) + 2
	}
	return size
}
