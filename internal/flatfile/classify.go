package flatfile

// rowKind is the classification of the physical row being scanned.
type rowKind int

const (
	rowUnknown rowKind = iota
	rowComment
	rowHeader
	rowSkipped
	rowData
)

func (k rowKind) String() string {
	switch k {
	case rowUnknown:
		return "unknown"
	case rowComment:
		return "comment"
	case rowHeader:
		return "header"
	case rowSkipped:
		return "skipped"
	case rowData:
		return "data"
	default:
		return "invalid"
	}
}

// extracted reports whether fields of this kind of row are materialized.
func (k rowKind) extracted() bool {
	return k == rowHeader || k == rowData
}

// counted reports whether this kind of row advances DataRowNumber.
func (k rowKind) counted() bool {
	return k == rowData || k == rowSkipped
}

// classify decides the kind of the row starting at the read cursor, consuming
// any run of comment rows first. It reports false when the source ends
// before a row starts.
func (p *Parser) classify() (bool, error) {
	for {
		p.buf.discard()
		if _, ok, err := p.buf.peek(); !ok || err != nil {
			return false, err
		}
		comment, err := p.buf.match(p.comment)
		if err != nil {
			return false, err
		}
		if !comment {
			break
		}
		p.kind = rowComment
		if err := p.skipComment(); err != nil {
			return false, err
		}
	}

	switch {
	case p.cfg.FirstRowHasHeader && !p.headerFound:
		p.kind = rowHeader
	case p.dataRow < p.cfg.SkipStartingDataRows:
		p.kind = rowSkipped
	default:
		p.kind = rowData
	}
	return true, nil
}

// skipComment consumes one comment row including its terminator. Nothing of
// it is kept in the buffer.
func (p *Parser) skipComment() error {
	for {
		p.buf.discard()
		c, ok, err := p.buf.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if c == '\n' || c == '\r' {
			if err := p.skipAlternate(c); err != nil {
				return err
			}
			break
		}
	}
	p.buf.discard()
	p.fileRow++
	return nil
}

// skipAlternate consumes the other half of a two-byte terminator ("\r\n" or
// "\n\r") if it follows term.
func (p *Parser) skipAlternate(term byte) error {
	alt := byte('\r')
	if term == '\r' {
		alt = '\n'
	}
	p.buf.discard()
	c, ok, err := p.buf.peek()
	if err != nil {
		return err
	}
	if ok && c == alt {
		p.buf.pos++
		p.buf.discard()
	}
	return nil
}
