package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/source"
	"github.com/JonMunkholm/flatload/internal/web/templates"
)

// PreviewResponse is the first rows of an uploaded file as the parser sees them.
type PreviewResponse struct {
	Columns            []string   `json:"columns"`
	Rows               [][]string `json:"rows"`
	HeaderFound        bool       `json:"header_found"`
	LargestColumnCount int        `json:"largest_column_count"`
	FileRows           int        `json:"file_rows"`
	Truncated          bool       `json:"truncated"`
}

// handlePreview parses the request body with the grammar from the query
// string and returns up to limit rows.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.openParser(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer p.Dispose()

	limit := min(parseIntParam(r, "limit", defaultPreviewRows), maxPreviewRows)
	resp := PreviewResponse{Rows: [][]string{}}
	for {
		ok, err := p.Read()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if !ok {
			break
		}
		if len(resp.Rows) == limit {
			resp.Truncated = true
			break
		}
		resp.Rows = append(resp.Rows, p.Fields())
	}

	resp.HeaderFound = p.HeaderFound()
	resp.LargestColumnCount = p.LargestColumnCount()
	resp.FileRows = p.FileRowNumber()
	resp.Columns = columnLabels(p.ColumnNames(), resp.LargestColumnCount)

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.PreviewTable(resp.Columns, resp.Rows, resp.Truncated).Render(r.Context(), w); err != nil {
			s.respondError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// openParser builds a parser over the request body.
func (s *Server) openParser(w http.ResponseWriter, r *http.Request) (*flatfile.Parser, error) {
	q := r.URL.Query()
	cfg, err := parserConfig(&s.cfg.Parser, q)
	if err != nil {
		return nil, err
	}
	opts, err := sourceOptions(&s.cfg.Parser, q)
	if err != nil {
		return nil, err
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.Load.MaxBodySize)
	src, err := source.NewReader(body, opts)
	if err != nil {
		return nil, err
	}

	p, err := flatfile.New(cfg)
	if err != nil {
		src.Close()
		return nil, err
	}
	if err := p.SetDataSource(src); err != nil {
		src.Close()
		return nil, err
	}
	return p, nil
}

// columnLabels names every column, numbering those without a header name.
func columnLabels(names []string, count int) []string {
	labels := make([]string, max(len(names), count))
	for i := range labels {
		if i < len(names) && names[i] != "" {
			labels[i] = names[i]
		} else {
			labels[i] = "column_" + strconv.Itoa(i+1)
		}
	}
	return labels
}
