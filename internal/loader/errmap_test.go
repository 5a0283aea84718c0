package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/source"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"too many columns", &flatfile.ParseError{Row: 3, Column: 4, Err: flatfile.ErrTooManyColumns}, "PARSE001"},
		{"column mismatch wrapped", fmt.Errorf("copy rows: %w", &flatfile.ParseError{Row: 2, Err: flatfile.ErrColumnCountMismatch}), "PARSE002"},
		{"field too large", &flatfile.ParseError{Row: 1, Err: flatfile.ErrFieldTooLarge}, "PARSE003"},
		{"protocol", flatfile.ErrNoDataSource, "PARSE004"},
		{"config", fmt.Errorf("%w: empty delimiter", flatfile.ErrInvalidConfig), "CFG001"},
		{"encoding", fmt.Errorf("%w: klingon", source.ErrUnknownEncoding), "SRC001"},
		{"compression", source.ErrUnknownCompression, "SRC002"},
		{"not found", &fs.PathError{Op: "open", Path: "x.csv", Err: fs.ErrNotExist}, "SRC003"},
		{"invalid table", ErrInvalidTable, "DB003"},
		{"no database", config.ErrNoDatabase, "DB007"},
		{"busy", ErrTooManyLoads, "LOAD001"},
		{"cancelled", fmt.Errorf("copy rows: %w", context.Canceled), "LOAD002"},
		{"deadline", context.DeadlineExceeded, "LOAD003"},
		{"no rows", ErrNoRows, "LOAD004"},
		{"unique violation", &pgconn.PgError{Code: "23505"}, "DB001"},
		{"undefined table", fmt.Errorf("create table: %w", &pgconn.PgError{Code: "42P01"}), "DB002"},
		{"syntax", &pgconn.PgError{Code: "42601"}, "DB003"},
		{"query cancelled by server", &pgconn.PgError{Code: "57014"}, "DB006"},
		{"connection class", &pgconn.PgError{Code: "08006"}, "DB005"},
		{"refused pattern", errors.New("dial tcp: Connection Refused"), "DB004"},
		{"duplicate pattern", errors.New("duplicate key value"), "DB001"},
		{"timeout pattern", errors.New("i/o timeout"), "DB006"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Equal(t, UserMessage{}, MapError(nil))
	assert.Empty(t, FormatUserError(nil))
	assert.False(t, IsUserFacing(nil))
	assert.Nil(t, NewUserError(nil))
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManyLoads)
	assert.Equal(t, "System is busy processing other loads (Code: LOAD001). Please wait a moment and try again", got)
}

func TestIsUserFacing(t *testing.T) {
	assert.True(t, IsUserFacing(ErrNoRows))
	assert.False(t, IsUserFacing(errors.New("boom")))
}

func TestUserError(t *testing.T) {
	cause := fmt.Errorf("read first row: %w", &flatfile.ParseError{Row: 1, Err: flatfile.ErrFieldTooLarge})
	ue := NewUserError(cause)

	assert.Equal(t, "PARSE003", ue.User.Code)
	assert.Equal(t, ue.User.Message, ue.Error())
	assert.ErrorIs(t, ue, flatfile.ErrFieldTooLarge)
}
