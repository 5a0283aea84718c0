// Package export writes parsed rows to Apache Parquet.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/loader"
)

// DefaultBatchSize is the number of rows per Arrow record.
const DefaultBatchSize = 10000

// Options control the Parquet output.
type Options struct {
	BatchSize   int
	Compression compress.Compression
}

// DefaultOptions uses snappy compression.
func DefaultOptions() Options {
	return Options{BatchSize: DefaultBatchSize, Compression: compress.Codecs.Snappy}
}

// Schema returns one nullable string column per name, named as a load
// would name the table columns.
func Schema(names []string, count int) *arrow.Schema {
	cols := loader.ColumnNames(names, count)
	fields := make([]arrow.Field, len(cols))
	for i, name := range cols {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// WriteParquet reads every remaining row from p and writes it to w. The
// first row (or the header, for header-only input) fixes the columns;
// missing trailing fields are written as nulls and wider rows fail.
// It returns the number of rows written.
func WriteParquet(ctx context.Context, w io.Writer, p *flatfile.Parser, opts Options) (int64, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	ok, err := p.Read()
	if err != nil {
		return 0, fmt.Errorf("read first row: %w", err)
	}
	count := len(p.ColumnNames())
	if ok {
		count = max(count, p.FieldCount())
	}
	if count == 0 {
		return 0, loader.ErrNoRows
	}
	schema := Schema(p.ColumnNames(), count)

	mem := memory.NewGoAllocator()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(opts.Compression),
		parquet.WithAllocator(mem),
	)
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return 0, fmt.Errorf("create parquet writer: %w", err)
	}
	closed := false
	defer func() {
		if !closed {
			fw.Close()
		}
	}()

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	var rows int64
	pending := 0
	flush := func() error {
		if pending == 0 {
			return nil
		}
		rec := b.NewRecord()
		defer rec.Release()
		pending = 0
		if err := fw.Write(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		return nil
	}

	for ok {
		if n := p.FieldCount(); n > count {
			return rows, &flatfile.ParseError{Row: p.FileRowNumber(), Column: count + 1, Err: flatfile.ErrTooManyColumns}
		}
		for i := range count {
			sb := b.Field(i).(*array.StringBuilder)
			if v, present := p.Field(i); present {
				sb.Append(v)
			} else {
				sb.AppendNull()
			}
		}
		rows++
		pending++

		if pending == opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return rows, err
			}
			if err := flush(); err != nil {
				return rows, err
			}
		}

		if ok, err = p.Read(); err != nil {
			return rows, err
		}
	}

	if err := flush(); err != nil {
		return rows, err
	}
	closed = true
	if err := fw.Close(); err != nil {
		return rows, fmt.Errorf("close parquet writer: %w", err)
	}
	return rows, nil
}
