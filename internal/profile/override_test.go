package profile

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flatload/internal/flatfile"
)

func TestOverride(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		check  func(t *testing.T, cfg flatfile.Config)
	}{
		{
			name:   "nothing set keeps base",
			values: url.Values{},
			check: func(t *testing.T, cfg flatfile.Config) {
				assert.Equal(t, flatfile.DefaultConfig(), cfg)
			},
		},
		{
			name:   "tab delimiter without quoting",
			values: url.Values{"delimiter": {"tab"}, "qualifier": {"none"}},
			check: func(t *testing.T, cfg flatfile.Config) {
				assert.Equal(t, "\t", cfg.ColumnDelimiter)
				assert.Empty(t, cfg.TextQualifier)
			},
		},
		{
			name:   "widths switch to fixed width",
			values: url.Values{"widths": {"3, 5,2"}},
			check: func(t *testing.T, cfg flatfile.Config) {
				assert.Equal(t, flatfile.FixedWidth, cfg.FieldType)
				assert.Equal(t, []int{3, 5, 2}, cfg.ColumnWidths)
				assert.Equal(t, 3, cfg.ExpectedColumnCount)
			},
		},
		{
			name: "flags and counts",
			values: url.Values{
				"header": {"true"}, "trim": {"1"}, "strip": {"true"}, "skip_empty": {"false"},
				"skip": {"2"}, "max": {"10"}, "expected": {"4"}, "buffer": {"128"},
				"escape": {`\`}, "comment": {"#"},
			},
			check: func(t *testing.T, cfg flatfile.Config) {
				assert.True(t, cfg.FirstRowHasHeader)
				assert.True(t, cfg.TrimResults)
				assert.True(t, cfg.StripControlChars)
				assert.False(t, cfg.SkipEmptyRows)
				assert.Equal(t, 2, cfg.SkipStartingDataRows)
				assert.Equal(t, 10, cfg.MaxRows)
				assert.Equal(t, 4, cfg.ExpectedColumnCount)
				assert.Equal(t, 128, cfg.BufferSize)
				assert.Equal(t, `\`, cfg.EscapeCharacter)
				assert.Equal(t, "#", cfg.CommentLeader)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Override(flatfile.DefaultConfig(), tt.values)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestOverride_Errors(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{"widths and delimiter", url.Values{"widths": {"2"}, "delimiter": {","}}},
		{"bad widths", url.Values{"widths": {"2,x"}}},
		{"zero width", url.Values{"widths": {"0"}}},
		{"bad bool", url.Values{"trim": {"yes please"}}},
		{"bad int", url.Values{"max": {"many"}}},
		{"negative skip", url.Values{"skip": {"-1"}}},
		{"zero buffer", url.Values{"buffer": {"0"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Override(flatfile.DefaultConfig(), tt.values)
			assert.ErrorIs(t, err, flatfile.ErrInvalidConfig)
		})
	}
}

func TestMarker(t *testing.T) {
	for in, want := range map[string]string{
		"tab": "\t", "TAB": "\t", `\t`: "\t", "pipe": "|", "space": " ", "none": "", ";": ";",
	} {
		assert.Equal(t, want, Marker(in), in)
	}
}
