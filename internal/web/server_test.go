package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/loader"
)

// copyTx accepts every statement and drains COPY sources.
type copyTx struct {
	pgx.Tx
	rows int
}

func (t *copyTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *copyTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	for src.Next() {
		if _, err := src.Values(); err != nil {
			return 0, err
		}
		t.rows++
	}
	return int64(t.rows), src.Err()
}

func (t *copyTx) Commit(context.Context) error   { return nil }
func (t *copyTx) Rollback(context.Context) error { return nil }

type copyDB struct{}

func (copyDB) Begin(context.Context) (pgx.Tx, error) { return &copyTx{}, nil }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Minute},
		Load: config.LoadConfig{
			Schema:        "public",
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			BatchSize:     100,
			Timeout:       time.Minute,
			MaxBodySize:   1 << 20,
		},
		Parser: config.ParserConfig{
			Delimiter:     ",",
			Qualifier:     `"`,
			BufferSize:    65536,
			Header:        true,
			SkipEmptyRows: true,
		},
	}
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := NewServer(testConfig(), nil)
	rec := do(t, s, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, false, got["database"])
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		want   PreviewResponse
	}{
		{
			name:   "header and limit",
			target: "/api/preview?limit=2",
			body:   "id,name\n1,a\n2,b\n3,c\n",
			want: PreviewResponse{
				Columns:            []string{"id", "name"},
				Rows:               [][]string{{"1", "a"}, {"2", "b"}},
				HeaderFound:        true,
				LargestColumnCount: 2,
				FileRows:           4,
				Truncated:          true,
			},
		},
		{
			name:   "pipe delimited without header",
			target: "/api/preview?header=false&delimiter=pipe",
			body:   "a|b\nc\n",
			want: PreviewResponse{
				Columns:            []string{"column_1", "column_2"},
				Rows:               [][]string{{"a", "b"}, {"c"}},
				LargestColumnCount: 2,
				FileRows:           2,
			},
		},
		{
			name:   "fixed width",
			target: "/api/preview?header=false&widths=2,3",
			body:   "abcde\nfghij\n",
			want: PreviewResponse{
				Columns:            []string{"column_1", "column_2"},
				Rows:               [][]string{{"ab", "cde"}, {"fg", "hij"}},
				LargestColumnCount: 2,
				FileRows:           2,
			},
		},
		{
			name:   "skip and trim",
			target: "/api/preview?skip=1&trim=true",
			body:   "h\n x \n y \n",
			want: PreviewResponse{
				Columns:            []string{"h"},
				Rows:               [][]string{{"y"}},
				HeaderFound:        true,
				LargestColumnCount: 1,
				FileRows:           3,
			},
		},
		{
			name:   "windows-1252",
			target: "/api/preview?header=false&encoding=windows-1252",
			body:   "caf\xe9\n",
			want: PreviewResponse{
				Columns:            []string{"column_1"},
				Rows:               [][]string{{"café"}},
				LargestColumnCount: 1,
				FileRows:           1,
			},
		},
	}

	s := NewServer(testConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode[PreviewResponse](t, rec))
		})
	}
}

func TestPreview_HTML(t *testing.T) {
	s := NewServer(testConfig(), nil)
	rec := do(t, s, http.MethodPost, "/api/preview?format=html", "col\n<b>x</b>\n")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "<th>col</th>")
	assert.Contains(t, body, "&lt;b&gt;x&lt;/b&gt;")
	assert.NotContains(t, body, "<b>x</b>")
}

func TestPreview_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantCode   string
		wantRow    int
	}{
		{"widths with delimiter", "/api/preview?widths=2&delimiter=,", "ab\n", http.StatusBadRequest, "CFG001", 0},
		{"bad boolean", "/api/preview?header=maybe", "a\n", http.StatusBadRequest, "CFG001", 0},
		{"bad integer", "/api/preview?max=lots", "a\n", http.StatusBadRequest, "CFG001", 0},
		{"unknown encoding", "/api/preview?encoding=klingon", "a\n", http.StatusBadRequest, "SRC001", 0},
		{"unknown compression", "/api/preview?compression=rar", "a\n", http.StatusBadRequest, "SRC002", 0},
		{"column mismatch", "/api/preview?header=false&expected=2", "a,b\nc\n", http.StatusUnprocessableEntity, "PARSE002", 2},
		{"field too large", "/api/preview?header=false&buffer=4", `"abcdefgh"`, http.StatusUnprocessableEntity, "PARSE003", 1},
	}

	s := NewServer(testConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			got := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantRow, got.Row)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestPreview_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Load.MaxBodySize = 8
	s := NewServer(cfg, nil)

	rec := do(t, s, http.MethodPost, "/api/preview", strings.Repeat("a,b\n", 10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPreview_HTMLError(t *testing.T) {
	s := NewServer(testConfig(), nil)
	rec := do(t, s, http.MethodPost, "/api/preview?format=html&encoding=klingon", "a\n")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "SRC001")
}

func TestLoad(t *testing.T) {
	ld := loader.New(copyDB{}, loader.Options{})
	s := NewServer(testConfig(), ld)

	rec := do(t, s, http.MethodPost, "/api/load/orders", "id,name\n1,a\n2,b\n")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[loader.Result](t, rec)
	assert.Equal(t, "orders", got.Table)
	assert.Equal(t, []string{"id", "name"}, got.Columns)
	assert.EqualValues(t, 2, got.Rows)
	assert.NotEmpty(t, got.LoadID)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		s := NewServer(testConfig(), nil)
		rec := do(t, s, http.MethodPost, "/api/load/orders", "a\n1\n")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "DB007", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("invalid table", func(t *testing.T) {
		s := NewServer(testConfig(), loader.New(copyDB{}, loader.Options{}))
		rec := do(t, s, http.MethodPost, "/api/load/bad-name", "a\n1\n")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "DB003", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("no rows", func(t *testing.T) {
		s := NewServer(testConfig(), loader.New(copyDB{}, loader.Options{}))
		rec := do(t, s, http.MethodPost, "/api/load/orders", "a\n")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "LOAD004", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("busy", func(t *testing.T) {
		ld := loader.New(copyDB{}, loader.Options{MaxConcurrent: 1, MaxWait: time.Millisecond})
		require.True(t, ld.Limiter().TryAcquire())
		defer ld.Limiter().Release()

		s := NewServer(testConfig(), ld)
		rec := do(t, s, http.MethodPost, "/api/load/orders", "a\n1\n")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		assert.Equal(t, "LOAD001", decode[ErrorResponse](t, rec).Code)
	})
}

func TestLoadStatus(t *testing.T) {
	s := NewServer(testConfig(), loader.New(copyDB{}, loader.Options{MaxConcurrent: 3}))
	rec := do(t, s, http.MethodGet, "/api/load/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[loader.LimiterStatus](t, rec)
	assert.Equal(t, 3, got.MaxConcurrent)
	assert.Equal(t, 3, got.Available)
}
