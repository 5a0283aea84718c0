package profile

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/flatload/internal/flatfile"
)

// Override names, shared by HTTP query parameters and CLI flags.
const (
	KeyDelimiter = "delimiter"
	KeyQualifier = "qualifier"
	KeyEscape    = "escape"
	KeyComment   = "comment"
	KeyWidths    = "widths"
	KeyHeader    = "header"
	KeyTrim      = "trim"
	KeyStrip     = "strip"
	KeySkipEmpty = "skip_empty"
	KeySkip      = "skip"
	KeyMax       = "max"
	KeyExpected  = "expected"
	KeyBuffer    = "buffer"
)

// Override applies the settings present in values over base. Markers accept
// the names "tab", "pipe", "space" and "none" for awkward characters.
func Override(base flatfile.Config, values url.Values) (flatfile.Config, error) {
	b := flatfile.BuilderFrom(base)

	if values.Has(KeyWidths) {
		if values.Has(KeyDelimiter) {
			return flatfile.Config{}, fmt.Errorf("%w: widths and delimiter are mutually exclusive", flatfile.ErrInvalidConfig)
		}
		widths, err := intList(values.Get(KeyWidths))
		if err != nil {
			return flatfile.Config{}, err
		}
		b.ColumnWidths(widths...)
	}

	markers := []struct {
		key string
		set func(string) *flatfile.Builder
	}{
		{KeyDelimiter, b.ColumnDelimiter},
		{KeyQualifier, b.TextQualifier},
		{KeyEscape, b.EscapeCharacter},
		{KeyComment, b.CommentLeader},
	}
	for _, m := range markers {
		if values.Has(m.key) {
			m.set(Marker(values.Get(m.key)))
		}
	}

	bools := []struct {
		key string
		set func(bool) *flatfile.Builder
	}{
		{KeyHeader, b.FirstRowHasHeader},
		{KeyTrim, b.TrimResults},
		{KeyStrip, b.StripControlChars},
		{KeySkipEmpty, b.SkipEmptyRows},
	}
	for _, o := range bools {
		if !values.Has(o.key) {
			continue
		}
		v, err := strconv.ParseBool(values.Get(o.key))
		if err != nil {
			return flatfile.Config{}, fmt.Errorf("%w: %s must be true or false", flatfile.ErrInvalidConfig, o.key)
		}
		o.set(v)
	}

	ints := []struct {
		key string
		set func(int) *flatfile.Builder
	}{
		{KeySkip, b.SkipStartingDataRows},
		{KeyMax, b.MaxRows},
		{KeyExpected, b.ExpectedColumnCount},
		{KeyBuffer, b.BufferSize},
	}
	for _, o := range ints {
		if !values.Has(o.key) {
			continue
		}
		v, err := strconv.Atoi(values.Get(o.key))
		if err != nil {
			return flatfile.Config{}, fmt.Errorf("%w: %s must be an integer", flatfile.ErrInvalidConfig, o.key)
		}
		o.set(v)
	}

	return b.Build()
}

// Marker maps a few names to characters that are awkward on a command line
// or in a URL.
func Marker(s string) string {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return "\t"
	case "pipe":
		return "|"
	case "space":
		return " "
	case "none":
		return ""
	}
	return s
}

func intList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: widths must be comma-separated integers", flatfile.ErrInvalidConfig)
		}
		out = append(out, n)
	}
	return out, nil
}
