package flatfile

import (
	"bytes"
	"errors"
)

// Read advances to the next data row. It returns false at the end of the
// input or once MaxRows rows have been returned. A parse error ends parsing:
// the parser moves to Finished and the source is released. Input that ends
// on the header row also returns false; check HeaderFound for the names.
func (p *Parser) Read() (bool, error) {
	if p.disposed.Load() {
		return false, ErrDisposed
	}

	switch p.state {
	case NoDataSource:
		return false, ErrNoDataSource
	case Finished:
		return false, nil
	case Ready:
		if err := p.start(); err != nil {
			return false, err
		}
	case Parsing:
		if p.cfg.MaxRows > 0 && p.dataRow >= p.cfg.SkipStartingDataRows+p.cfg.MaxRows {
			p.finish()
			return false, nil
		}
	}

	ok, err := p.scanRow()
	if err != nil {
		p.finish()
		return false, err
	}
	return ok, nil
}

// start moves Ready to Parsing with fresh counters.
func (p *Parser) start() error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}

	p.delim = []byte(p.cfg.ColumnDelimiter)
	p.quote = []byte(p.cfg.TextQualifier)
	p.escape = []byte(p.cfg.EscapeCharacter)
	p.comment = []byte(p.cfg.CommentLeader)

	p.buf = newBuffer(p.src, p.cfg.BufferSize)
	p.row = p.row[:0]
	p.names = nil
	p.headerFound = false
	p.currentEmpty = false
	p.expected = p.cfg.ExpectedColumnCount
	p.largest = 0
	p.fileRow = 0
	p.dataRow = 0
	p.state = Parsing
	return nil
}

func (p *Parser) beginRow() {
	p.kind = rowUnknown
	p.row = p.row[:0]
	p.rowEmpty = true
	p.col = 0
	p.field = fieldState{}
}

// scanRow scans physical rows until one yields a data row or the input ends.
func (p *Parser) scanRow() (bool, error) {
	p.beginRow()
	for {
		if p.kind == rowUnknown {
			ok, err := p.classify()
			if err != nil {
				return false, p.bufferError(err)
			}
			if !ok {
				return p.endOfInput()
			}
		}

		c, ok, err := p.buf.peek()
		if err != nil {
			return false, p.bufferError(err)
		}
		if !ok {
			return p.endOfInput()
		}

		if c == '\n' || c == '\r' {
			emitted, err := p.endRow(p.buf.pos)
			if err != nil {
				return false, err
			}
			p.buf.pos++
			if err := p.skipAlternate(c); err != nil {
				return false, p.bufferError(err)
			}
			if emitted {
				return true, nil
			}
			p.beginRow()
			continue
		}

		if p.cfg.FieldType == FixedWidth {
			err = p.scanFixed(c)
		} else {
			err = p.scanDelimited(c)
		}
		if err != nil {
			return false, err
		}
	}
}

// endOfInput finishes whatever row is pending when the source runs out.
func (p *Parser) endOfInput() (bool, error) {
	emitted := false
	if p.kind != rowUnknown && p.kind != rowComment {
		var err error
		if emitted, err = p.endRow(p.buf.pos); err != nil {
			return false, err
		}
	}
	p.finish()
	return emitted, nil
}

// scanDelimited consumes the token starting with c.
func (p *Parser) scanDelimited(c byte) error {
	b := p.buf

	if len(p.quote) > 0 && c == p.quote[0] && b.pos == b.mark {
		ok, err := b.match(p.quote)
		if err != nil {
			return p.bufferError(err)
		}
		if ok {
			b.pos += len(p.quote)
			p.field.quoted = true
			return p.bufferError(p.scanQualified())
		}
	}

	if len(p.escape) > 0 && c == p.escape[0] {
		ok, err := b.match(p.escape)
		if err != nil {
			return p.bufferError(err)
		}
		if ok {
			b.pos += len(p.escape)
			p.field.escaped = true
			return p.bufferError(b.skipChar())
		}
	}

	if c == p.delim[0] {
		ok, err := b.match(p.delim)
		if err != nil {
			return p.bufferError(err)
		}
		if ok {
			if err := p.boundary(b.pos); err != nil {
				return err
			}
			b.pos += len(p.delim)
			b.mark = b.pos
			return nil
		}
	}

	b.pos++
	return nil
}

// scanQualified consumes a qualified span up to and including its closing
// qualifier. Delimiters and terminators inside it are content.
func (p *Parser) scanQualified() error {
	b := p.buf
	sameMarker := bytes.Equal(p.escape, p.quote)
	for {
		c, ok, err := b.peek()
		if !ok || err != nil {
			return err
		}

		if len(p.escape) > 0 && !sameMarker && c == p.escape[0] {
			esc, err := b.match(p.escape)
			if err != nil {
				return err
			}
			if esc {
				b.pos += len(p.escape)
				p.field.escaped = true
				if err := b.skipChar(); err != nil {
					return err
				}
				continue
			}
		}

		if c == p.quote[0] {
			closing, err := b.match(p.quote)
			if err != nil {
				return err
			}
			if closing {
				b.pos += len(p.quote)
				doubled, err := b.match(p.quote)
				if err != nil {
					return err
				}
				if !doubled {
					return nil
				}
				b.pos += len(p.quote)
				p.field.escaped = true
				continue
			}
		}

		b.pos++
	}
}

// scanFixed consumes one byte in fixed-width mode, closing the column when
// its width in characters has been reached.
func (p *Parser) scanFixed(c byte) error {
	b := p.buf
	if c&0xC0 != 0x80 {
		widths := p.cfg.ColumnWidths
		if p.col < len(widths) && p.field.chars == widths[p.col] {
			if err := p.boundary(b.pos); err != nil {
				return err
			}
			b.mark = b.pos
		}
		p.field.chars++
	}
	b.pos++
	return nil
}

// boundary closes the field ending at end.
func (p *Parser) boundary(end int) error {
	if end > p.buf.mark {
		p.rowEmpty = false
	}
	if err := p.extract(p.buf.mark, end); err != nil {
		return err
	}
	p.col++
	p.field = fieldState{}
	return nil
}

// bufferError positions a buffer overflow at the column being built.
func (p *Parser) bufferError(err error) error {
	if errors.Is(err, errBufferFull) {
		return p.parseError(p.col+1, ErrFieldTooLarge)
	}
	return err
}
