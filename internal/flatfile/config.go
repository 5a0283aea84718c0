package flatfile

import (
	"slices"
	"strings"
)

// FieldType selects how a row is split into fields.
type FieldType int

const (
	// Delimited splits fields on ColumnDelimiter.
	Delimited FieldType = iota
	// FixedWidth splits fields by ColumnWidths, counted in characters.
	FixedWidth
)

// String returns the lowercase name used in profiles and flags.
func (t FieldType) String() string {
	switch t {
	case Delimited:
		return "delimited"
	case FixedWidth:
		return "fixedwidth"
	default:
		return "unknown"
	}
}

// ParseFieldType is the inverse of FieldType.String.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delimited", "":
		return Delimited, nil
	case "fixedwidth", "fixed-width", "fixed":
		return FixedWidth, nil
	default:
		return Delimited, configError("unknown field type %q", s)
	}
}

// DefaultBufferSize is the buffer capacity used when none is configured.
const DefaultBufferSize = 4096

// Config is the parser grammar. Build it with a Builder so the mutual
// exclusion rules between delimiter, widths and column counts hold; a Config
// assembled by hand is checked by Validate when parsing starts.
type Config struct {
	FieldType    FieldType
	ColumnWidths []int

	// Markers are matched as byte sequences, so multi-character and
	// multi-byte values work. An empty marker disables the feature.
	ColumnDelimiter string
	TextQualifier   string
	EscapeCharacter string
	CommentLeader   string

	BufferSize           int
	MaxRows              int
	SkipStartingDataRows int
	ExpectedColumnCount  int

	FirstRowHasHeader               bool
	FirstRowSetsExpectedColumnCount bool
	TrimResults                     bool
	StripControlChars               bool
	SkipEmptyRows                   bool
}

// DefaultConfig returns a comma-delimited, double-quote qualified grammar.
func DefaultConfig() Config {
	return Config{
		FieldType:       Delimited,
		ColumnDelimiter: ",",
		TextQualifier:   `"`,
		BufferSize:      DefaultBufferSize,
		SkipEmptyRows:   true,
	}
}

// Clone returns a copy that shares no slices with c.
func (c Config) Clone() Config {
	c.ColumnWidths = slices.Clone(c.ColumnWidths)
	return c
}

// Validate checks every range rule and that the active field type has the
// setting it needs.
func (c Config) Validate() error {
	if c.BufferSize < 1 {
		return configError("buffer size must be at least 1, got %d", c.BufferSize)
	}
	if c.MaxRows < 0 {
		return configError("max rows must not be negative, got %d", c.MaxRows)
	}
	if c.SkipStartingDataRows < 0 {
		return configError("skip starting data rows must not be negative, got %d", c.SkipStartingDataRows)
	}
	if c.ExpectedColumnCount < 0 {
		return configError("expected column count must not be negative, got %d", c.ExpectedColumnCount)
	}
	if err := checkDelimiter(c.ColumnDelimiter); err != nil {
		return err
	}

	switch c.FieldType {
	case Delimited:
		if c.ColumnDelimiter == "" {
			return configError("delimited parsing requires a column delimiter")
		}
		if len(c.ColumnWidths) > 0 {
			return configError("column widths cannot be combined with delimited parsing")
		}
	case FixedWidth:
		if err := checkWidths(c.ColumnWidths); err != nil {
			return err
		}
		if c.ColumnDelimiter != "" {
			return configError("a column delimiter cannot be combined with fixed-width parsing")
		}
		if c.FirstRowSetsExpectedColumnCount {
			return configError("first row cannot set the column count in fixed-width parsing")
		}
		if c.ExpectedColumnCount != 0 && c.ExpectedColumnCount != len(c.ColumnWidths) {
			return configError("expected column count %d does not match %d column widths",
				c.ExpectedColumnCount, len(c.ColumnWidths))
		}
	default:
		return configError("unknown field type %d", int(c.FieldType))
	}
	return nil
}

func checkWidths(widths []int) error {
	if len(widths) == 0 {
		return configError("fixed-width parsing requires at least one column width")
	}
	for i, w := range widths {
		if w < 1 {
			return configError("column width %d must be at least 1, got %d", i+1, w)
		}
	}
	return nil
}

// A carriage return is always a row terminator, so it cannot also delimit
// columns.
func checkDelimiter(d string) error {
	if strings.ContainsAny(d, "\r\n") {
		return configError("column delimiter %q must not contain a row terminator", d)
	}
	return nil
}

// Builder assembles a Config. Setters validate their argument immediately and
// apply the cross-field rules; the first failure is kept and returned by
// Build.
type Builder struct {
	cfg Config
	err error
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// BuilderFrom starts from an existing configuration.
func BuilderFrom(cfg Config) *Builder {
	return &Builder{cfg: cfg.Clone()}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// ColumnWidths switches to fixed-width parsing. The delimiter is cleared and
// the expected column count follows the number of widths.
func (b *Builder) ColumnWidths(widths ...int) *Builder {
	if err := checkWidths(widths); err != nil {
		return b.fail(err)
	}
	b.cfg.FieldType = FixedWidth
	b.cfg.ColumnWidths = slices.Clone(widths)
	b.cfg.ColumnDelimiter = ""
	b.cfg.ExpectedColumnCount = len(widths)
	b.cfg.FirstRowSetsExpectedColumnCount = false
	return b
}

// ColumnDelimiter sets the delimiter. A non-empty value switches to delimited
// parsing and clears any column widths.
func (b *Builder) ColumnDelimiter(d string) *Builder {
	if err := checkDelimiter(d); err != nil {
		return b.fail(err)
	}
	b.cfg.ColumnDelimiter = d
	if d != "" {
		b.useDelimited()
	}
	return b
}

func (b *Builder) useDelimited() {
	if b.cfg.FieldType == FixedWidth {
		b.cfg.FieldType = Delimited
		b.cfg.ColumnWidths = nil
	}
}

// ExpectedColumnCount constrains every row to n fields; zero removes the
// constraint. A count that disagrees with the fixed widths falls back to
// delimited parsing.
func (b *Builder) ExpectedColumnCount(n int) *Builder {
	if n < 0 {
		return b.fail(configError("expected column count must not be negative, got %d", n))
	}
	if b.cfg.FieldType == FixedWidth && n != len(b.cfg.ColumnWidths) {
		b.useDelimited()
	}
	b.cfg.ExpectedColumnCount = n
	return b
}

// FirstRowSetsExpectedColumnCount adopts the first row's width as the
// expected column count. Enabling it forces delimited parsing.
func (b *Builder) FirstRowSetsExpectedColumnCount(on bool) *Builder {
	if on {
		b.useDelimited()
	}
	b.cfg.FirstRowSetsExpectedColumnCount = on
	return b
}

// TextQualifier sets the quoting marker; empty disables quoting.
func (b *Builder) TextQualifier(q string) *Builder {
	b.cfg.TextQualifier = q
	return b
}

// EscapeCharacter sets the escape marker; empty disables escaping.
func (b *Builder) EscapeCharacter(e string) *Builder {
	b.cfg.EscapeCharacter = e
	return b
}

// CommentLeader sets the marker that starts a comment row; empty disables comments.
func (b *Builder) CommentLeader(c string) *Builder {
	b.cfg.CommentLeader = c
	return b
}

// BufferSize sets the buffer capacity in bytes.
func (b *Builder) BufferSize(n int) *Builder {
	if n < 1 {
		return b.fail(configError("buffer size must be at least 1, got %d", n))
	}
	b.cfg.BufferSize = n
	return b
}

// MaxRows caps the number of data rows returned; zero means unbounded.
func (b *Builder) MaxRows(n int) *Builder {
	if n < 0 {
		return b.fail(configError("max rows must not be negative, got %d", n))
	}
	b.cfg.MaxRows = n
	return b
}

// SkipStartingDataRows skips the first n data rows.
func (b *Builder) SkipStartingDataRows(n int) *Builder {
	if n < 0 {
		return b.fail(configError("skip starting data rows must not be negative, got %d", n))
	}
	b.cfg.SkipStartingDataRows = n
	return b
}

func (b *Builder) FirstRowHasHeader(on bool) *Builder {
	b.cfg.FirstRowHasHeader = on
	return b
}

func (b *Builder) TrimResults(on bool) *Builder {
	b.cfg.TrimResults = on
	return b
}

func (b *Builder) StripControlChars(on bool) *Builder {
	b.cfg.StripControlChars = on
	return b
}

func (b *Builder) SkipEmptyRows(on bool) *Builder {
	b.cfg.SkipEmptyRows = on
	return b
}

// Build returns the assembled configuration or the first error.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	cfg := b.cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
