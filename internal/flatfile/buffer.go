package flatfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// errBufferFull is raised by the buffer and turned into a positioned
// ErrFieldTooLarge by the parser.
var errBufferFull = errors.New("buffer full")

// buffer is a fixed-capacity window over the source. Everything before mark
// has been consumed and may be dropped on the next refill; [mark, fill) is
// the column under construction and is kept.
//
// Invariant: 0 <= mark <= pos <= fill <= len(data).
type buffer struct {
	src  io.Reader
	data []byte

	fill int // end of valid data
	pos  int // read cursor
	mark int // start of the current column

	eof bool
}

// maxEmptyReads bounds consecutive (0, nil) reads from the source.
const maxEmptyReads = 100

func newBuffer(src io.Reader, size int) *buffer {
	return &buffer{src: src, data: make([]byte, size)}
}

// available reports how many unread bytes are buffered.
func (b *buffer) available() int {
	return b.fill - b.pos
}

// refill moves [mark, fill) to the front and reads more data behind it. It
// reports false once the source is exhausted.
func (b *buffer) refill() (bool, error) {
	if b.eof {
		return false, nil
	}

	if offset := b.mark; offset > 0 {
		n := copy(b.data, b.data[offset:b.fill])
		b.fill = n
		b.pos -= offset
		b.mark = 0
	}

	if b.fill == len(b.data) {
		return false, errBufferFull
	}

	for range maxEmptyReads {
		n, err := b.src.Read(b.data[b.fill:])
		b.fill += n
		if err == io.EOF {
			b.eof = true
			return n > 0, nil
		}
		if err != nil {
			return n > 0, fmt.Errorf("read source: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, fmt.Errorf("read source: %w", io.ErrNoProgress)
}

// ensure makes at least n unread bytes available. It reports false when the
// source ends first; the bytes that are buffered stay readable.
func (b *buffer) ensure(n int) (bool, error) {
	for b.available() < n {
		ok, err := b.refill()
		if err != nil {
			return false, err
		}
		if !ok {
			return b.available() >= n, nil
		}
	}
	return true, nil
}

// next returns the byte at the read cursor and advances past it.
func (b *buffer) next() (byte, bool, error) {
	ok, err := b.ensure(1)
	if !ok || err != nil {
		return 0, false, err
	}
	c := b.data[b.pos]
	b.pos++
	return c, true, nil
}

// peek returns the byte at the read cursor without consuming it.
func (b *buffer) peek() (byte, bool, error) {
	ok, err := b.ensure(1)
	if !ok || err != nil {
		return 0, false, err
	}
	return b.data[b.pos], true, nil
}

// match reports whether token starts at the read cursor. It may refill.
func (b *buffer) match(token []byte) (bool, error) {
	if len(token) == 0 {
		return false, nil
	}
	ok, err := b.ensure(len(token))
	if !ok || err != nil {
		return false, err
	}
	return bytes.HasPrefix(b.data[b.pos:b.fill], token), nil
}

// skipChar advances past one UTF-8 encoded character.
func (b *buffer) skipChar() error {
	c, ok, err := b.peek()
	if !ok || err != nil {
		return err
	}
	n := charLen(c)
	if _, err := b.ensure(n); err != nil {
		return err
	}
	b.pos += min(n, b.available())
	return nil
}

// discard drops everything read so far; used for text that is never
// extracted, such as comment rows.
func (b *buffer) discard() {
	b.mark = b.pos
}

func (b *buffer) release() {
	b.src = nil
	b.data = nil
	b.fill, b.pos, b.mark = 0, 0, 0
}

// charLen returns the length of the UTF-8 sequence introduced by c. Stray
// continuation bytes count as one character.
func charLen(c byte) int {
	switch {
	case c < 0xC0:
		return 1
	case c < 0xE0:
		return 2
	case c < 0xF0:
		return 3
	default:
		return 4
	}
}
