// Package loader streams parsed rows into PostgreSQL.
//
// Each load creates (if needed) a table with one text column per input
// column plus load_id and row_number, then pipes the parser through COPY.
// Memory use stays bounded by the parser buffer: rows are never collected.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/logging"
)

// ErrNoRows is returned when the input holds no data rows.
var ErrNoRows = errors.New("no data rows in input")

// ContextCheckInterval is how often (in rows) COPY checks for cancellation.
var ContextCheckInterval = 100

// DB starts transactions; *pgxpool.Pool satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Phase is the stage a load is in.
type Phase string

const (
	PhaseReading   Phase = "reading"
	PhaseCopying   Phase = "copying"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Progress is reported every batch of rows and when the load ends.
type Progress struct {
	LoadID string
	Table  string
	Phase  Phase
	Rows   int64
	Error  string
}

// ProgressFunc receives progress reports on the loading goroutine.
type ProgressFunc func(Progress)

// Result summarizes a finished load.
type Result struct {
	LoadID   string        `json:"load_id"`
	Table    string        `json:"table"`
	Columns  []string      `json:"columns"`
	Rows     int64         `json:"rows"`
	FileRows int           `json:"file_rows"`
	Duration time.Duration `json:"duration"`
}

// Loader copies parser output into tables under one schema.
type Loader struct {
	db        DB
	limiter   *Limiter
	schema    string
	batchSize int
}

// Options configure a Loader.
type Options struct {
	Schema        string
	BatchSize     int
	MaxConcurrent int
	MaxWait       time.Duration
}

// New returns a Loader. A zero Options uses the public schema, batches of
// 1000 rows and the default limiter.
func New(db DB, opts Options) *Loader {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	return &Loader{
		db:        db,
		limiter:   NewLimiter(opts.MaxConcurrent, opts.MaxWait),
		schema:    opts.Schema,
		batchSize: opts.BatchSize,
	}
}

// Limiter exposes the concurrency limiter, for status reporting and drain.
func (l *Loader) Limiter() *Limiter {
	return l.limiter
}

// Load reads every remaining row from p into table. The first data row fixes
// the column set: header names when the parser found a header, column_N
// otherwise. Rows narrower than that are padded with NULLs; wider rows fail.
// The load runs in one transaction, so a failure leaves no partial data.
func (l *Loader) Load(ctx context.Context, table string, p *flatfile.Parser, progress ProgressFunc) (*Result, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	if err := l.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer l.limiter.Release()

	start := time.Now()
	loadID := uuid.New()
	logger := logging.WithFields(ctx, "load_id", loadID.String(), "table", table)
	report := Progress{LoadID: loadID.String(), Table: table, Phase: PhaseReading}
	progress(report)

	fail := func(err error) (*Result, error) {
		report.Phase = PhaseFailed
		if errors.Is(err, context.Canceled) {
			report.Phase = PhaseCancelled
		}
		report.Error = err.Error()
		progress(report)
		logger.Error("load failed", "rows", report.Rows, "error", err)
		return nil, err
	}

	ok, err := p.Read()
	if err != nil {
		return fail(fmt.Errorf("read first row: %w", err))
	}
	if !ok {
		return fail(ErrNoRows)
	}

	count := max(p.FieldCount(), len(p.ColumnNames()))
	columns := ColumnNames(p.ColumnNames(), count)

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fail(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	ident := pgx.Identifier{l.schema, table}
	if _, err := tx.Exec(ctx, createTableSQL(ident, columns)); err != nil {
		return fail(fmt.Errorf("create table: %w", err))
	}

	report.Phase = PhaseCopying
	progress(report)

	src := &rowSource{
		ctx:      ctx,
		parser:   p,
		loadID:   loadID,
		columns:  len(columns),
		pending:  true,
		every:    l.batchSize,
		progress: progress,
		report:   &report,
	}
	copyCols := append([]string{"load_id", "row_number"}, columns...)
	n, err := tx.CopyFrom(ctx, ident, copyCols, src)
	if err != nil {
		return fail(fmt.Errorf("copy rows: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	report.Phase = PhaseComplete
	report.Rows = n
	progress(report)

	result := &Result{
		LoadID:   loadID.String(),
		Table:    table,
		Columns:  columns,
		Rows:     n,
		FileRows: p.FileRowNumber(),
		Duration: time.Since(start),
	}
	logger.Info("load complete", "rows", n, "columns", len(columns), "duration", result.Duration)
	return result, nil
}

func createTableSQL(ident pgx.Identifier, columns []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(ident.Sanitize())
	b.WriteString(" (load_id uuid NOT NULL, row_number bigint NOT NULL")
	for _, c := range columns {
		b.WriteString(", ")
		b.WriteString(pgx.Identifier{c}.Sanitize())
		b.WriteString(" text")
	}
	b.WriteString(")")
	return b.String()
}

// rowSource adapts a parser to pgx.CopyFromSource. The row already read by
// Load is pending and is emitted first.
type rowSource struct {
	ctx     context.Context
	parser  *flatfile.Parser
	loadID  uuid.UUID
	columns int
	pending bool

	rows     int
	every    int
	progress ProgressFunc
	report   *Progress

	err error
}

func (s *rowSource) Next() bool {
	if s.err != nil {
		return false
	}

	if s.rows%ContextCheckInterval == 0 {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return false
		}
	}
	if s.rows > 0 && s.rows%s.every == 0 {
		s.report.Rows = int64(s.rows)
		s.progress(*s.report)
	}

	if s.pending {
		s.pending = false
	} else {
		ok, err := s.parser.Read()
		if err != nil {
			s.err = err
			return false
		}
		if !ok {
			return false
		}
	}

	if n := s.parser.FieldCount(); n > s.columns {
		s.err = &flatfile.ParseError{
			Row:    s.parser.FileRowNumber(),
			Column: s.columns + 1,
			Err:    flatfile.ErrTooManyColumns,
		}
		return false
	}
	s.rows++
	return true
}

func (s *rowSource) Values() ([]any, error) {
	values := make([]any, 2+s.columns)
	values[0] = [16]byte(s.loadID)
	values[1] = int64(s.parser.DataRowNumber())
	for i := range s.columns {
		if v, ok := s.parser.Field(i); ok {
			values[2+i] = v
		}
	}
	return values, nil
}

func (s *rowSource) Err() error {
	return s.err
}
