package flatfile

import (
	"bytes"
)

// fieldState holds the per-field flags gathered while scanning.
type fieldState struct {
	quoted  bool // the field opened with the text qualifier
	escaped bool // an escape marker or doubled qualifier was consumed
	chars   int  // characters seen, for fixed-width boundaries
}

// columnName is one slot of the name registry; unnamed slots come from rows
// wider than the header.
type columnName struct {
	name  string
	named bool
}

// extract materializes the field spanning [start, end) of the buffer and
// appends it to the current row.
func (p *Parser) extract(start, end int) error {
	if !p.kind.extracted() {
		return nil
	}
	if p.expected > 0 && len(p.row) >= p.expected {
		return p.parseError(len(p.row)+1, ErrTooManyColumns)
	}

	p.row = append(p.row, p.fieldValue(start, end))

	if len(p.row) > len(p.names) && p.kind != rowHeader {
		p.names = append(p.names, columnName{})
	}
	return nil
}

func (p *Parser) fieldValue(start, end int) string {
	if end <= start {
		return ""
	}
	data := p.buf.data

	qualified := p.qualified(data[start:end])
	if qualified {
		start += len(p.quote)
		end -= len(p.quote)
	}

	if p.cfg.StripControlChars || p.field.escaped {
		end = p.compact(start, end, qualified)
	}

	value := data[start:end]
	if !qualified && p.cfg.TrimResults {
		value = bytes.TrimSpace(value)
	}
	return string(value)
}

// qualified reports whether span is a complete qualified field: it opened
// with the qualifier and also ends with one.
func (p *Parser) qualified(span []byte) bool {
	if !p.field.quoted || len(p.quote) == 0 {
		return false
	}
	return len(span) >= 2*len(p.quote) &&
		bytes.HasPrefix(span, p.quote) &&
		bytes.HasSuffix(span, p.quote)
}

// compact rewrites [start, end) in place, dropping control characters (when
// stripping), escape markers and the first half of doubled qualifiers. It
// returns the new end of the span.
func (p *Parser) compact(start, end int, qualified bool) int {
	data := p.buf.data
	w := start
	for r := start; r < end; {
		switch {
		case p.field.escaped && hasAt(data[:end], r, p.escape):
			r += len(p.escape)
			if r < end {
				n := min(charLen(data[r]), end-r)
				w += copy(data[w:], data[r:r+n])
				r += n
			}
		case qualified && p.field.escaped && hasAt(data[:end], r, p.quote) &&
			hasAt(data[:end], r+len(p.quote), p.quote):
			r += len(p.quote)
			w += copy(data[w:], data[r:r+len(p.quote)])
			r += len(p.quote)
		case p.cfg.StripControlChars && controlLen(data[:end], r) > 0:
			r += controlLen(data[:end], r)
		default:
			data[w] = data[r]
			w++
			r++
		}
	}
	return w
}

func hasAt(data []byte, i int, token []byte) bool {
	return len(token) > 0 && i < len(data) && bytes.HasPrefix(data[i:], token)
}

// controlLen returns the encoded length of the control character at i, or
// zero. C0 controls, DEL and the UTF-8 encoded C1 range are recognized.
func controlLen(data []byte, i int) int {
	c := data[i]
	switch {
	case c < 0x20 || c == 0x7F:
		return 1
	case c == 0xC2 && i+1 < len(data) && data[i+1] >= 0x80 && data[i+1] <= 0x9F:
		return 2
	default:
		return 0
	}
}

// endRow finishes the physical row whose pending field ends at end. It
// reports whether the row is a data row to hand to the caller.
func (p *Parser) endRow(end int) (bool, error) {
	empty := p.rowEmpty && end <= p.buf.mark
	keep := !empty || !p.cfg.SkipEmptyRows

	if keep {
		if p.kind.counted() {
			p.dataRow++
		}
		if p.pendingField(end) {
			if err := p.extract(p.buf.mark, end); err != nil {
				return false, err
			}
		}
	} else {
		p.row = p.row[:0]
	}

	if n := len(p.row); n > 0 {
		if p.expected > 0 && n != p.expected {
			return false, p.parseError(n+1, ErrColumnCountMismatch)
		}
		if p.cfg.FirstRowSetsExpectedColumnCount && p.cfg.FieldType == Delimited && p.expected == 0 {
			p.expected = n
		}
		p.largest = max(p.largest, n)
		if p.kind == rowHeader {
			p.setHeader()
		}
	}

	p.fileRow++
	p.currentEmpty = empty
	return p.kind == rowData && keep, nil
}

// pendingField reports whether the row has an unfinished field at its end. In
// fixed-width mode an empty span past the last width is not a field.
func (p *Parser) pendingField(end int) bool {
	if p.cfg.FieldType != FixedWidth {
		return true
	}
	return p.col < len(p.cfg.ColumnWidths) || end > p.buf.mark
}

// setHeader moves the current row into the name registry.
func (p *Parser) setHeader() {
	p.names = p.names[:0]
	for _, f := range p.row {
		p.names = append(p.names, columnName{name: f, named: true})
	}
	p.headerFound = true
	p.row = p.row[:0]
}

func (p *Parser) parseError(column int, err error) error {
	return &ParseError{Row: p.fileRow + 1, Column: column, Err: err}
}
