// Package profile stores parser configurations as YAML documents so a file
// layout can be described once and reused across runs.
//
// A profile looks like:
//
//	field_type: delimited
//	delimiter: "|"
//	qualifier: '"'
//	header: true
//	trim: true
//
// Omitted keys keep their defaults. Loading goes through flatfile.Builder,
// so a profile is subject to the same rules as code-built configurations.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/flatload/internal/flatfile"
)

// document is the on-disk shape. Pointers distinguish "absent" from zero.
type document struct {
	FieldType          string  `yaml:"field_type,omitempty"`
	ColumnWidths       []int   `yaml:"column_widths,omitempty,flow"`
	Delimiter          *string `yaml:"delimiter,omitempty"`
	Qualifier          *string `yaml:"qualifier,omitempty"`
	Escape             *string `yaml:"escape,omitempty"`
	Comment            *string `yaml:"comment,omitempty"`
	BufferSize         *int    `yaml:"buffer_size,omitempty"`
	MaxRows            *int    `yaml:"max_rows,omitempty"`
	SkipRows           *int    `yaml:"skip_rows,omitempty"`
	ExpectedColumns    *int    `yaml:"expected_columns,omitempty"`
	Header             *bool   `yaml:"header,omitempty"`
	FirstRowSetsColumn *bool   `yaml:"first_row_sets_columns,omitempty"`
	Trim               *bool   `yaml:"trim,omitempty"`
	StripControlChars  *bool   `yaml:"strip_control_chars,omitempty"`
	SkipEmptyRows      *bool   `yaml:"skip_empty_rows,omitempty"`
}

func fromConfig(cfg flatfile.Config) document {
	doc := document{
		FieldType:          cfg.FieldType.String(),
		BufferSize:         &cfg.BufferSize,
		MaxRows:            &cfg.MaxRows,
		SkipRows:           &cfg.SkipStartingDataRows,
		ExpectedColumns:    &cfg.ExpectedColumnCount,
		Header:             &cfg.FirstRowHasHeader,
		FirstRowSetsColumn: &cfg.FirstRowSetsExpectedColumnCount,
		Trim:               &cfg.TrimResults,
		StripControlChars:  &cfg.StripControlChars,
		SkipEmptyRows:      &cfg.SkipEmptyRows,
		Qualifier:          &cfg.TextQualifier,
		Escape:             &cfg.EscapeCharacter,
		Comment:            &cfg.CommentLeader,
	}
	if cfg.FieldType == flatfile.FixedWidth {
		doc.ColumnWidths = cfg.ColumnWidths
	} else {
		doc.Delimiter = &cfg.ColumnDelimiter
	}
	return doc
}

func (d document) config() (flatfile.Config, error) {
	ft, err := flatfile.ParseFieldType(d.FieldType)
	if err != nil {
		return flatfile.Config{}, err
	}

	b := flatfile.NewBuilder()
	switch ft {
	case flatfile.FixedWidth:
		if d.Delimiter != nil && *d.Delimiter != "" {
			return flatfile.Config{}, errors.New("delimiter cannot be set for fixed-width profiles")
		}
		b.ColumnWidths(d.ColumnWidths...)
	default:
		if len(d.ColumnWidths) > 0 {
			return flatfile.Config{}, errors.New("column_widths requires field_type fixedwidth")
		}
		if d.Delimiter != nil {
			b.ColumnDelimiter(*d.Delimiter)
		}
	}

	setString(d.Qualifier, b.TextQualifier)
	setString(d.Escape, b.EscapeCharacter)
	setString(d.Comment, b.CommentLeader)
	setInt(d.BufferSize, b.BufferSize)
	setInt(d.MaxRows, b.MaxRows)
	setInt(d.SkipRows, b.SkipStartingDataRows)
	setBool(d.Header, b.FirstRowHasHeader)
	setBool(d.Trim, b.TrimResults)
	setBool(d.StripControlChars, b.StripControlChars)
	setBool(d.SkipEmptyRows, b.SkipEmptyRows)
	if ft == flatfile.Delimited {
		setBool(d.FirstRowSetsColumn, b.FirstRowSetsExpectedColumnCount)
	}
	if d.ExpectedColumns != nil && (ft == flatfile.Delimited || *d.ExpectedColumns != 0) {
		b.ExpectedColumnCount(*d.ExpectedColumns)
	}
	return b.Build()
}

func setString(v *string, set func(string) *flatfile.Builder) {
	if v != nil {
		set(*v)
	}
}

func setInt(v *int, set func(int) *flatfile.Builder) {
	if v != nil {
		set(*v)
	}
}

func setBool(v *bool, set func(bool) *flatfile.Builder) {
	if v != nil {
		set(*v)
	}
}

// Save writes cfg to w as YAML.
func Save(w io.Writer, cfg flatfile.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fromConfig(cfg)); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return enc.Close()
}

// Load reads a profile. Unknown keys are rejected; an empty document yields
// flatfile.DefaultConfig.
func Load(r io.Reader) (flatfile.Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return flatfile.Config{}, fmt.Errorf("decode profile: %w", err)
	}

	cfg, err := doc.config()
	if err != nil {
		return flatfile.Config{}, fmt.Errorf("profile: %w", err)
	}
	return cfg, nil
}

// SaveFile writes cfg to path.
func SaveFile(path string, cfg flatfile.Config) error {
	var buf bytes.Buffer
	if err := Save(&buf, cfg); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// LoadFile reads the profile at path.
func LoadFile(path string) (flatfile.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return flatfile.Config{}, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	cfg, err := Load(f)
	if err != nil {
		return flatfile.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
