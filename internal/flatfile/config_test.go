package flatfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_ModeRules(t *testing.T) {
	t.Run("widths switch to fixed width", func(t *testing.T) {
		cfg, err := NewBuilder().FirstRowSetsExpectedColumnCount(true).ColumnWidths(3, 5).Build()
		require.NoError(t, err)
		assert.Equal(t, FixedWidth, cfg.FieldType)
		assert.Empty(t, cfg.ColumnDelimiter)
		assert.Equal(t, 2, cfg.ExpectedColumnCount)
		assert.False(t, cfg.FirstRowSetsExpectedColumnCount)
	})

	t.Run("delimiter switches back to delimited", func(t *testing.T) {
		cfg, err := NewBuilder().ColumnWidths(3, 5).ColumnDelimiter("\t").Build()
		require.NoError(t, err)
		assert.Equal(t, Delimited, cfg.FieldType)
		assert.Nil(t, cfg.ColumnWidths)
		assert.Equal(t, "\t", cfg.ColumnDelimiter)
	})

	t.Run("matching expected count keeps fixed width", func(t *testing.T) {
		cfg, err := NewBuilder().ColumnWidths(3, 5).ExpectedColumnCount(2).Build()
		require.NoError(t, err)
		assert.Equal(t, FixedWidth, cfg.FieldType)
	})

	t.Run("mismatched expected count leaves fixed width", func(t *testing.T) {
		b := NewBuilder().ColumnWidths(3, 5).ExpectedColumnCount(4)
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrInvalidConfig, "no delimiter left for delimited mode")

		cfg, err := b.ColumnDelimiter(";").Build()
		require.NoError(t, err)
		assert.Equal(t, Delimited, cfg.FieldType)
		assert.Equal(t, 4, cfg.ExpectedColumnCount)
	})

	t.Run("first row sets count forces delimited", func(t *testing.T) {
		cfg, err := NewBuilder().ColumnWidths(2).FirstRowSetsExpectedColumnCount(true).ColumnDelimiter(",").Build()
		require.NoError(t, err)
		assert.Equal(t, Delimited, cfg.FieldType)
		assert.Nil(t, cfg.ColumnWidths)
	})
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Builder)
		want  string
	}{
		{"zero buffer", func(b *Builder) { b.BufferSize(0) }, "buffer size"},
		{"negative max rows", func(b *Builder) { b.MaxRows(-1) }, "max rows"},
		{"negative skip", func(b *Builder) { b.SkipStartingDataRows(-2) }, "skip starting"},
		{"negative expected", func(b *Builder) { b.ExpectedColumnCount(-1) }, "expected column count"},
		{"no widths", func(b *Builder) { b.ColumnWidths() }, "at least one column width"},
		{"zero width", func(b *Builder) { b.ColumnWidths(3, 0) }, "column width 2"},
		{"carriage return delimiter", func(b *Builder) { b.ColumnDelimiter("\r") }, "row terminator"},
		{"empty delimiter", func(b *Builder) { b.ColumnDelimiter("") }, "requires a column delimiter"},
		{"first error wins", func(b *Builder) { b.BufferSize(0).MaxRows(-1) }, "buffer size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			_, err := b.Build()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"fixed width without widths", func(c *Config) {
			c.FieldType = FixedWidth
			c.ColumnDelimiter = ""
		}, true},
		{"fixed width with delimiter", func(c *Config) {
			c.FieldType = FixedWidth
			c.ColumnWidths = []int{1}
		}, true},
		{"delimited with widths", func(c *Config) { c.ColumnWidths = []int{1} }, true},
		{"fixed width adopting count", func(c *Config) {
			c.FieldType = FixedWidth
			c.ColumnDelimiter = ""
			c.ColumnWidths = []int{1}
			c.FirstRowSetsExpectedColumnCount = true
		}, true},
		{"unknown field type", func(c *Config) { c.FieldType = FieldType(7) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_CloneIsIndependent(t *testing.T) {
	cfg, err := NewBuilder().ColumnWidths(1, 2).Build()
	require.NoError(t, err)

	c := cfg.Clone()
	c.ColumnWidths[0] = 9
	assert.Equal(t, []int{1, 2}, cfg.ColumnWidths)
}

func TestParseFieldType(t *testing.T) {
	tests := []struct {
		in      string
		want    FieldType
		wantErr bool
	}{
		{"", Delimited, false},
		{"Delimited", Delimited, false},
		{"fixed-width", FixedWidth, false},
		{FixedWidth.String(), FixedWidth, false},
		{"columns", Delimited, true},
	}
	for _, tt := range tests {
		got, err := ParseFieldType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFieldType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFieldType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
