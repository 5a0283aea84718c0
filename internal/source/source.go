// Package source opens flat files for parsing: it decompresses, decodes the
// text encoding to UTF-8 and applies the streaming cleanups in readers.go.
package source

import (
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var (
	ErrUnknownEncoding    = errors.New("unknown text encoding")
	ErrUnknownCompression = errors.New("unknown compression")
)

// Compression names a stream compression format.
type Compression string

const (
	Auto  Compression = ""
	None  Compression = "none"
	Gzip  Compression = "gzip"
	Bzip2 Compression = "bzip2"
	XZ    Compression = "xz"
	Zstd  Compression = "zstd"
)

// ParseCompression accepts a format name or a file extension.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "auto":
		return Auto, nil
	case "none":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "bzip2", "bz2":
		return Bzip2, nil
	case "xz":
		return XZ, nil
	case "zstd", "zst":
		return Zstd, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// Detect picks the compression from the file extension.
func Detect(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".bz2":
		return Bzip2
	case ".xz":
		return XZ
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// Options control how a source is opened.
type Options struct {
	// Encoding is a WHATWG encoding label such as "windows-1252" or
	// "shift_jis". Empty means UTF-8.
	Encoding string

	// Compression of the raw bytes. Auto detects it from the file name and
	// means None for readers.
	Compression Compression

	// Total is the expected decoded size for progress reporting, if known.
	Total int64
}

// Reader is an opened source. Closing it closes every layer underneath.
type Reader struct {
	*Counter
	closers []func() error
}

// Close releases the decompressor and the underlying file.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Open opens the file at path with the given options.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}

	if opts.Compression == Auto {
		opts.Compression = Detect(path)
	}
	if opts.Compression == None && opts.Total == 0 {
		if info, err := f.Stat(); err == nil {
			opts.Total = info.Size()
		}
	}

	r, err := NewReader(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append([]func() error{f.Close}, r.closers...)
	return r, nil
}

// NewReader layers decompression, decoding and the UTF-8 cleanups over r.
// Closing the result does not close r unless r is passed through Open.
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	out := &Reader{}

	switch opts.Compression {
	case Auto, None:
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		out.closers = append(out.closers, gz.Close)
		r = gz
	case Bzip2:
		r = bzip2.NewReader(r)
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		r = xr
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		out.closers = append(out.closers, func() error {
			zr.Close()
			return nil
		})
		r = zr
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, opts.Compression)
	}

	decoded, err := decode(r, opts.Encoding)
	if err != nil {
		out.Close()
		return nil, err
	}

	out.Counter = Wrap(decoded, opts.Total)
	return out, nil
}

func decode(r io.Reader, label string) (io.Reader, error) {
	if label == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
