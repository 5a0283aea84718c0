package source

// readers.go holds the streaming transforms every source passes through
// before it reaches the parser:
//
//   - bomReader drops a leading UTF-8 byte order mark
//   - sanitizer replaces invalid UTF-8 with '?'
//   - Counter tracks bytes read for progress reporting
//
// Wrap applies all three in that order.

import (
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomReader skips a UTF-8 BOM at the start of the stream.
type bomReader struct {
	r       io.Reader
	checked bool
	head    []byte // bytes read while checking that were not a BOM
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{r: r}
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		var buf [3]byte
		n, err := io.ReadFull(b.r, buf[:])
		switch {
		case err == io.ErrUnexpectedEOF || err == io.EOF:
			b.head = buf[:n]
			if !bytes.Equal(b.head, utf8BOM) {
				break
			}
			b.head = nil
		case err != nil:
			return 0, err
		case bytes.Equal(buf[:], utf8BOM):
		default:
			b.head = buf[:n]
		}
	}

	if len(b.head) > 0 {
		n := copy(p, b.head)
		b.head = b.head[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// stagingSize is the sanitizer's read chunk.
const stagingSize = 4096

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

// sanitizer replaces invalid UTF-8 bytes with '?' without growing the data.
// It reads into its own staging buffer, so a multi-byte sequence split
// across upstream reads is held back in tail until it completes, whatever
// the size of the caller's slice.
type sanitizer struct {
	r     io.Reader
	buf   []byte
	ready []byte // sanitized bytes not yet returned
	tail  []byte // incomplete sequence carried into the next fill
	err   error
}

func newSanitizer(r io.Reader) *sanitizer {
	return &sanitizer{
		r:    r,
		buf:  make([]byte, stagingSize),
		tail: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.ready) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.ready)
	s.ready = s.ready[n:]
	return n, nil
}

// fill reads the next chunk behind the carried tail and sanitizes it into
// ready. Every call either reads at least one byte or records an error.
func (s *sanitizer) fill() {
	n := copy(s.buf, s.tail)
	s.tail = s.tail[:0]

	for empty := 0; ; {
		m, err := s.r.Read(s.buf[n:])
		n += m
		if err != nil {
			s.err = err
			break
		}
		if m > 0 {
			break
		}
		if empty++; empty >= maxEmptyReads {
			s.err = io.ErrNoProgress
			break
		}
	}

	data := s.buf[:n]
	if isASCII(data) {
		s.ready = data
		return
	}
	s.ready = data[:s.sanitize(data, s.err != nil)]
}

func isASCII(data []byte) bool {
	for _, c := range data {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns how many bytes are ready. An
// incomplete trailing sequence moves to tail unless atEOF.
func (s *sanitizer) sanitize(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		if !atEOF && !utf8.FullRune(data[r:]) {
			s.tail = append(s.tail, data[r:]...)
			return w
		}
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		w += copy(data[w:], data[r:r+size])
		r += size
	}
	return w
}

// Counter counts bytes read through it.
type Counter struct {
	r         io.Reader
	BytesRead int64
	Total     int64 // 0 when unknown
}

// NewCounter wraps r; total is the expected size, or 0.
func NewCounter(r io.Reader, total int64) *Counter {
	return &Counter{r: r, Total: total}
}

func (c *Counter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// Progress returns the percentage read, or 0 when the total is unknown.
func (c *Counter) Progress() int {
	if c.Total <= 0 {
		return 0
	}
	return int(min(c.BytesRead*100/c.Total, 100))
}

// Wrap strips a BOM, sanitizes UTF-8 and counts bytes.
func Wrap(r io.Reader, total int64) *Counter {
	return NewCounter(newSanitizer(newBOMReader(r)), total)
}
