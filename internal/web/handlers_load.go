package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/loader"
	"github.com/JonMunkholm/flatload/internal/logging"
)

// handleLoad streams the request body into the table named in the path.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		s.respondError(w, r, config.ErrNoDatabase)
		return
	}
	table := chi.URLParam(r, "table")

	ctx := r.Context()
	if s.cfg.Load.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Load.Timeout)
		defer cancel()
	}

	p, err := s.openParser(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer p.Dispose()

	logger := logging.FromContext(ctx)
	result, err := s.loader.Load(ctx, table, p, func(pr loader.Progress) {
		logger.Debug("load progress", "load_id", pr.LoadID, "phase", pr.Phase, "rows", pr.Rows)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleLoadStatus reports limiter occupancy.
func (s *Server) handleLoadStatus(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		s.respondError(w, r, config.ErrNoDatabase)
		return
	}
	writeJSON(w, http.StatusOK, s.loader.Limiter().Status())
}
