package source

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func TestBOMReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "id,name"...), "id,name"},
		{"without BOM", []byte("id,name"), "id,name"},
		{"empty", []byte{}, ""},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"short input", []byte("a"), "a"},
		{"partial BOM", []byte{0xEF, 0xBB, 'a', 'b'}, string([]byte{0xEF, 0xBB, 'a', 'b'})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newBOMReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"ascii", []byte("a,b"), "a,b"},
		{"multibyte", []byte("grüße"), "grüße"},
		{"invalid byte", []byte{'h', 'e', 0x80, 'l', 'o'}, "he?lo"},
		{"truncated sequence at end", []byte{'a', 0xE2, 0x82}, "a??"},
		{"empty", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newSanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizer_SplitSequence(t *testing.T) {
	// One byte per read splits every multi-byte character.
	r := newSanitizer(iotest.OneByteReader(strings.NewReader("a€b😀")))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a€b😀", string(got))
}

// readChunked reads r through a destination slice of the given size.
func readChunked(t *testing.T, r io.Reader, size int) string {
	t.Helper()
	var out []byte
	p := make([]byte, size)
	for range 1000 {
		n, err := r.Read(p)
		out = append(out, p[:n]...)
		if err == io.EOF {
			return string(out)
		}
		require.NoError(t, err)
		require.Positive(t, n, "empty read")
	}
	t.Fatal("reader did not reach EOF")
	return ""
}

func TestSanitizer_SmallDestination(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"two byte", "é", "é"},
		{"three byte then ascii", "€x", "€x"},
		{"mixed", "a€b😀c", "a€b😀c"},
		{"invalid byte", "a\x80é", "a?é"},
		{"truncated at end", "ab\xe2\x82", "ab??"},
	}

	for _, tt := range tests {
		for _, size := range []int{1, 2, 3} {
			t.Run(tt.name+"/"+strconv.Itoa(size), func(t *testing.T) {
				got := readChunked(t, Wrap(strings.NewReader(tt.input), 0), size)
				assert.Equal(t, tt.expected, got)
			})
			t.Run(tt.name+"/one byte upstream/"+strconv.Itoa(size), func(t *testing.T) {
				got := readChunked(t, newSanitizer(iotest.OneByteReader(strings.NewReader(tt.input))), size)
				assert.Equal(t, tt.expected, got)
			})
		}
	}
}

type stalledReader struct{}

func (stalledReader) Read([]byte) (int, error) { return 0, nil }

func TestSanitizer_NoProgress(t *testing.T) {
	_, err := newSanitizer(stalledReader{}).Read(make([]byte, 8))
	assert.ErrorIs(t, err, io.ErrNoProgress)
}

func TestCounter(t *testing.T) {
	input := strings.Repeat("x", 1000)
	c := NewCounter(strings.NewReader(input), int64(len(input)))

	n, err := io.Copy(io.Discard, c)
	require.NoError(t, err)
	assert.EqualValues(t, len(input), n)
	assert.EqualValues(t, len(input), c.BytesRead)
	assert.Equal(t, 100, c.Progress())

	assert.Equal(t, 0, NewCounter(strings.NewReader(""), 0).Progress())
}

func TestWrap(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, 'h', 'e', 0x80, 'l', 'o')

	r := Wrap(bytes.NewReader(input), int64(len(input)))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "he?lo", string(got))
	assert.Positive(t, r.BytesRead)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", Auto, false},
		{"gz", Gzip, false},
		{".BZ2", Bzip2, false},
		{"xz", XZ, false},
		{"zst", Zstd, false},
		{"none", None, false},
		{"rar", None, true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompression(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCompression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetect(t *testing.T) {
	assert.Equal(t, Gzip, Detect("rows.csv.gz"))
	assert.Equal(t, Zstd, Detect("/tmp/ROWS.ZST"))
	assert.Equal(t, None, Detect("rows.csv"))
}

func compressed(t *testing.T, c Compression, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch c {
	case Gzip:
		w = gzip.NewWriter(&buf)
	case XZ:
		w, err = xz.NewWriter(&buf)
	case Zstd:
		w, err = zstd.NewWriter(&buf)
	default:
		t.Fatalf("no writer for %q", c)
	}
	require.NoError(t, err)
	_, err = io.WriteString(w, text)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestOpen_Compressed(t *testing.T) {
	const text = "id,name\n1,alice\n"
	tests := []struct {
		file string
		c    Compression
	}{
		{"rows.csv.gz", Gzip},
		{"rows.csv.xz", XZ},
		{"rows.csv.zst", Zstd},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, compressed(t, tt.c, text), 0o600))

			r, err := Open(path, Options{})
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, text, string(got))
			assert.NoError(t, r.Close())
		})
	}
}

func TestOpen_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o600))

	r, err := Open(path, Options{})
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(got))
	assert.Equal(t, 100, r.Progress())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewReader_Encoding(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		input    []byte
		want     string
	}{
		{"windows-1252", "windows-1252", []byte("caf\xe9,\x80"), "café,€"},
		{"latin1 label", "latin1", []byte("na\xefve"), "naïve"},
		{"utf-8 passthrough", "utf-8", []byte("grüße"), "grüße"},
		{"shift_jis", "shift_jis", []byte{0x82, 0xa0}, "あ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(bytes.NewReader(tt.input), Options{Encoding: tt.encoding})
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestNewReader_Errors(t *testing.T) {
	_, err := NewReader(strings.NewReader(""), Options{Encoding: "klingon"})
	assert.ErrorIs(t, err, ErrUnknownEncoding)

	_, err = NewReader(strings.NewReader(""), Options{Compression: "rar"})
	assert.ErrorIs(t, err, ErrUnknownCompression)

	_, err = NewReader(strings.NewReader("not gzip"), Options{Compression: Gzip})
	assert.Error(t, err)
}
