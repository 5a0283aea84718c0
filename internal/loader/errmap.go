package loader

// errmap.go turns technical errors into messages with a support code.
//
// Codes by category:
//
//	PARSE001 too many columns in a row
//	PARSE002 row has the wrong number of columns
//	PARSE003 field larger than the parser buffer
//	PARSE004 parser used out of order
//	CFG001   invalid parser configuration
//	SRC001   unknown text encoding
//	SRC002   unknown compression
//	SRC003   file not found
//	DB001    duplicate key / unique violation
//	DB002    table or column does not exist
//	DB003    invalid identifier or statement
//	DB004    connection refused
//	DB005    connection reset
//	DB006    database timeout
//	DB007    no database configured
//	LOAD001  too many concurrent loads
//	LOAD002  load cancelled
//	LOAD003  load timed out
//	LOAD004  input had no data rows
//	ERR000   anything else
//
// Errors are matched first by identity (errors.Is / errors.As), then by
// PostgreSQL SQLSTATE, then by case-insensitive substring. The first match
// wins.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/source"
)

// UserMessage is what a user sees for an error.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference
}

var (
	msgTooManyColumns = UserMessage{"A row has more columns than expected", "Check the delimiter and the expected column count", "PARSE001"}
	msgColumnCount    = UserMessage{"A row has the wrong number of columns", "Check for missing delimiters or unbalanced quotes near the reported row", "PARSE002"}
	msgFieldTooLarge  = UserMessage{"A field is larger than the parser buffer", "Increase the buffer size or check for an unterminated quote", "PARSE003"}
	msgProtocol       = UserMessage{"The parser was used out of order", "Please try again", "PARSE004"}
	msgConfig         = UserMessage{"The parser settings are invalid", "Review the delimiter, widths and other parser options", "CFG001"}
	msgEncoding       = UserMessage{"The text encoding is not recognized", "Use a standard label such as utf-8 or windows-1252", "SRC001"}
	msgCompression    = UserMessage{"The compression format is not supported", "Use gzip, bzip2, xz or zstd", "SRC002"}
	msgNotFound       = UserMessage{"The file was not found", "Check the path and try again", "SRC003"}
	msgDuplicate      = UserMessage{"A record with this key already exists", "Review the data for duplicate key values", "DB001"}
	msgUndefined      = UserMessage{"The table or column does not exist", "Verify the table name is correct", "DB002"}
	msgSyntax         = UserMessage{"The table name or statement is not valid", "Use letters, digits and underscores in table names", "DB003"}
	msgRefused        = UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}
	msgReset          = UserMessage{"Database connection was interrupted", "Please try again", "DB005"}
	msgDBTimeout      = UserMessage{"Database operation timed out", "Try a smaller file or try again later", "DB006"}
	msgNoDatabase     = UserMessage{"No database is configured", "Set DATABASE_URL and restart", "DB007"}
	msgBusy           = UserMessage{"System is busy processing other loads", "Please wait a moment and try again", "LOAD001"}
	msgCancelled      = UserMessage{"The load was cancelled", "Start a new load when ready", "LOAD002"}
	msgDeadline       = UserMessage{"The load timed out", "Try a smaller file or raise LOAD_TIMEOUT", "LOAD003"}
	msgNoRows         = UserMessage{"The input has no data rows", "Check the header and skip settings", "LOAD004"}
)

// defaultMessage is returned when nothing matches (ERR000). Support should
// check the logs for the technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

var sentinels = []struct {
	err error
	msg UserMessage
}{
	{flatfile.ErrTooManyColumns, msgTooManyColumns},
	{flatfile.ErrColumnCountMismatch, msgColumnCount},
	{flatfile.ErrFieldTooLarge, msgFieldTooLarge},
	{flatfile.ErrProtocol, msgProtocol},
	{flatfile.ErrInvalidConfig, msgConfig},
	{source.ErrUnknownEncoding, msgEncoding},
	{source.ErrUnknownCompression, msgCompression},
	{fs.ErrNotExist, msgNotFound},
	{config.ErrNoDatabase, msgNoDatabase},
	{ErrInvalidTable, msgSyntax},
	{ErrTooManyLoads, msgBusy},
	{ErrNoRows, msgNoRows},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgDeadline},
}

// sqlStates maps PostgreSQL error codes and classes.
var sqlStates = map[string]UserMessage{
	"23505": msgDuplicate,
	"42P01": msgUndefined,
	"42703": msgUndefined,
	"3F000": msgUndefined,
	"42601": msgSyntax,
	"42602": msgSyntax,
	"57014": msgDBTimeout,
	"08":    msgReset,
}

var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"duplicate key", msgDuplicate},
	{"violates unique", msgDuplicate},
	{"does not exist", msgUndefined},
	{"syntax error", msgSyntax},
	{"connection refused", msgRefused},
	{"connection reset", msgReset},
	{"timeout", msgDBTimeout},
}

// MapError converts a technical error to a user-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlStates[pgErr.Code]; ok {
			return msg
		}
		if len(pgErr.Code) >= 2 {
			if msg, ok := sqlStates[pgErr.Code[:2]]; ok {
				return msg
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err, or returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
