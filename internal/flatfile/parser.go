// Package flatfile is a streaming parser for delimited and fixed-width text.
//
// A Parser reads its source through one fixed-size buffer, so memory use
// does not depend on the size of the input. The grammar (delimiter, text
// qualifier, escape marker, comment leader, fixed column widths, header and
// row limits) is a Config, assembled with a Builder:
//
//	cfg, err := flatfile.NewBuilder().
//	    ColumnDelimiter("|").
//	    FirstRowHasHeader(true).
//	    TrimResults(true).
//	    Build()
//	p, err := flatfile.New(cfg)
//	err = p.SetDataSource(r)
//	for {
//	    ok, err := p.Read()
//	    if err != nil || !ok {
//	        break
//	    }
//	    id, _ := p.FieldByName("id")
//	}
//
// A Parser is not safe for concurrent use; only Close and Dispose may race.
package flatfile

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/JonMunkholm/flatload/internal/source"
)

// State is the parser lifecycle.
type State int

const (
	NoDataSource State = iota
	Ready
	Parsing
	Finished
)

func (s State) String() string {
	switch s {
	case NoDataSource:
		return "no data source"
	case Ready:
		return "ready"
	case Parsing:
		return "parsing"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Parser turns a byte stream into rows of string fields.
type Parser struct {
	cfg   Config
	state State

	src    io.Reader
	closer io.Closer
	buf    *buffer

	// markers compiled from cfg when parsing starts
	delim   []byte
	quote   []byte
	escape  []byte
	comment []byte

	kind         rowKind
	row          []string
	names        []columnName
	headerFound  bool
	rowEmpty     bool
	currentEmpty bool
	col          int
	field        fieldState

	expected int
	largest  int
	fileRow  int
	dataRow  int

	mu        sync.Mutex
	disposed  atomic.Bool
	listeners []func() error
}

// New returns a parser with no data source attached.
func New(cfg Config) (*Parser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Parser{cfg: cfg.Clone(), state: NoDataSource}, nil
}

// NewDefault returns a parser using DefaultConfig.
func NewDefault() *Parser {
	return &Parser{cfg: DefaultConfig(), state: NoDataSource}
}

// Config returns a copy of the active configuration.
func (p *Parser) Config() Config {
	return p.cfg.Clone()
}

// Configure replaces the configuration. It fails while parsing.
func (p *Parser) Configure(cfg Config) error {
	if p.disposed.Load() {
		return ErrDisposed
	}
	if p.state == Parsing {
		return ErrConfigLocked
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.cfg = cfg.Clone()
	return nil
}

// Update applies fn to a Builder seeded with the current configuration and
// installs the result.
func (p *Parser) Update(fn func(*Builder)) error {
	if p.disposed.Load() {
		return ErrDisposed
	}
	if p.state == Parsing {
		return ErrConfigLocked
	}
	b := BuilderFrom(p.cfg)
	fn(b)
	cfg, err := b.Build()
	if err != nil {
		return err
	}
	return p.Configure(cfg)
}

// SetDataSource attaches r and makes the parser Ready. The parser owns r from
// now on: if r is an io.Closer it is closed when the parser releases it. Any
// previously attached source is released first.
func (p *Parser) SetDataSource(r io.Reader) error {
	if p.disposed.Load() {
		return ErrDisposed
	}
	if r == nil {
		return fmt.Errorf("%w: nil data source", ErrProtocol)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.releaseLocked(); err != nil {
		slog.Warn("closing previous data source", "component", "flatfile", "error", err)
	}
	p.src = r
	if c, ok := r.(io.Closer); ok {
		p.closer = c
	}
	p.row = p.row[:0]
	p.state = Ready
	return nil
}

// OpenFile attaches the file at path, decoded from the named text encoding
// ("" means UTF-8). Compressed files are decompressed by extension.
func (p *Parser) OpenFile(path, encoding string) error {
	if p.disposed.Load() {
		return ErrDisposed
	}
	rc, err := source.Open(path, source.Options{Encoding: encoding})
	if err != nil {
		return err
	}
	if err := p.SetDataSource(rc); err != nil {
		rc.Close()
		return err
	}
	return nil
}

// Close releases the buffer and the source and moves the parser to
// Finished. It is safe to call more than once; attaching a new source makes
// the parser usable again.
func (p *Parser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.releaseLocked()
	p.state = Finished
	return err
}

// OnDispose registers fn to run once when the parser is disposed. Errors and
// panics from fn are logged and do not affect Dispose.
func (p *Parser) OnDispose(fn func() error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed.Load() {
		return
	}
	p.listeners = append(p.listeners, fn)
}

// Dispose permanently tears the parser down. Only the first call has any
// effect; dispose listeners run exactly once.
func (p *Parser) Dispose() error {
	p.mu.Lock()
	if p.disposed.Swap(true) {
		p.mu.Unlock()
		return nil
	}
	err := p.releaseLocked()
	p.state = Finished
	p.row = nil
	p.names = nil
	listeners := p.listeners
	p.listeners = nil
	p.mu.Unlock()

	for _, fn := range listeners {
		if lerr := notify(fn); lerr != nil {
			slog.Warn("dispose listener failed", "component", "flatfile", "error", lerr)
		}
	}
	return err
}

func notify(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (p *Parser) releaseLocked() error {
	var err error
	if p.closer != nil {
		err = p.closer.Close()
		p.closer = nil
	}
	p.src = nil
	if p.buf != nil {
		p.buf.release()
		p.buf = nil
	}
	return err
}

// finish ends parsing after the last row or a failure.
func (p *Parser) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.releaseLocked(); err != nil {
		slog.Warn("closing data source", "component", "flatfile", "error", err)
	}
	p.state = Finished
}

// State returns the lifecycle state.
func (p *Parser) State() State { return p.state }

// FieldCount is the number of fields in the current row.
func (p *Parser) FieldCount() int { return len(p.row) }

// LargestColumnCount is the widest row seen so far, header included.
func (p *Parser) LargestColumnCount() int { return p.largest }

// DataRowNumber counts data rows parsed so far, skipped rows included.
func (p *Parser) DataRowNumber() int { return p.dataRow }

// FileRowNumber counts physical rows, comments and headers included.
func (p *Parser) FileRowNumber() int { return p.fileRow }

// IsCurrentRowEmpty reports whether every field of the last row was empty.
func (p *Parser) IsCurrentRowEmpty() bool { return p.currentEmpty }

// HeaderFound reports whether a header row has been read.
func (p *Parser) HeaderFound() bool { return p.headerFound }

// ExpectedColumnCount is the column count in force, including one adopted
// from the first row.
func (p *Parser) ExpectedColumnCount() int {
	if p.state == Parsing || p.state == Finished {
		return p.expected
	}
	return p.cfg.ExpectedColumnCount
}

// Field returns the i-th field of the current row.
func (p *Parser) Field(i int) (string, bool) {
	if i < 0 || i >= len(p.row) {
		return "", false
	}
	return p.row[i], true
}

// FieldByName returns the field under the named header column.
func (p *Parser) FieldByName(name string) (string, bool) {
	i, ok := p.ColumnIndex(name)
	if !ok {
		return "", false
	}
	return p.Field(i)
}

// Fields returns a copy of the current row.
func (p *Parser) Fields() []string {
	return slices.Clone(p.row)
}

// ColumnIndex finds a header column by name. An exact match wins over a
// case-insensitive one. It fails until a header row has been read.
func (p *Parser) ColumnIndex(name string) (int, bool) {
	if !p.headerFound {
		return 0, false
	}
	fold := -1
	for i, c := range p.names {
		if !c.named {
			continue
		}
		if c.name == name {
			return i, true
		}
		if fold < 0 && strings.EqualFold(c.name, name) {
			fold = i
		}
	}
	if fold >= 0 {
		return fold, true
	}
	return 0, false
}

// ColumnName returns the header name of column i. Columns beyond the header
// are unnamed.
func (p *Parser) ColumnName(i int) (string, bool) {
	if i < 0 || i >= len(p.names) || !p.names[i].named {
		return "", false
	}
	return p.names[i].name, true
}

// ColumnNames returns the registry, with "" for unnamed columns.
func (p *Parser) ColumnNames() []string {
	names := make([]string, len(p.names))
	for i, c := range p.names {
		names[i] = c.name
	}
	return names
}
