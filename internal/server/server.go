// Package server exposes the photo list over HTTP.
//
// Endpoints:
//
//	GET /health              liveness
//	GET /photos              render state of every row
//	GET /photos/{row}        render state of one row
//	GET /photos/{row}/image  current image of a row as JPEG
//	GET /viewport            current visible window
//	PUT /viewport            move the window; {"first","count","dragging"}
//	GET /metrics             Prometheus metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-photo-pipeline/internal/coordinator"
	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
	"github.com/tendant/simple-photo-pipeline/pkg/pipeline"
)

// Options tunes the HTTP server
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	JPEGQuality  int
}

// Server holds the dependencies shared across HTTP handlers.
type Server struct {
	coord    *coordinator.Coordinator
	view     *coordinator.ListView
	rows     *RowTracker
	gatherer prometheus.Gatherer
	logger   logging.Logger
	opts     Options
	mux      *http.ServeMux
}

// New creates a Server for coord. rows must be the presenter coord was built
// with so responses can report per-row revisions.
func New(coord *coordinator.Coordinator, view *coordinator.ListView, rows *RowTracker, gatherer prometheus.Gatherer, logger logging.Logger, opts Options) *Server {
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 80
	}

	s := &Server{
		coord:    coord,
		view:     view,
		rows:     rows,
		gatherer: gatherer,
		logger:   logger,
		opts:     opts,
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /photos", s.handleListPhotos)
	s.mux.HandleFunc("GET /photos/{row}", s.handleGetPhoto)
	s.mux.HandleFunc("GET /photos/{row}/image", s.handleGetImage)
	s.mux.HandleFunc("GET /viewport", s.handleGetViewport)
	s.mux.HandleFunc("PUT /viewport", s.handlePutViewport)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.mux,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pipeline.Health{
		Status:  "healthy",
		Rows:    s.coord.Len(),
		Settled: s.coord.Settled(),
	})
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	photos := make([]pipeline.Photo, 0, s.coord.Len())
	for row := range s.coord.Len() {
		snap, err := s.coord.Snapshot(row)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		photos = append(photos, s.photo(row, snap))
	}
	writeJSON(w, http.StatusOK, photos)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	row, snap, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.photo(row, snap))
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := s.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	if err := imaging.Encode(w, snap.Render().Image, imaging.JPEG, imaging.JPEGQuality(s.opts.JPEGQuality)); err != nil {
		s.logger.Warn("Failed to encode image", "error", err)
	}
}

func (s *Server) handleGetViewport(w http.ResponseWriter, r *http.Request) {
	s.writeViewport(w)
}

func (s *Server) handlePutViewport(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	first, count := s.view.Window()
	if req.First != nil {
		first = *req.First
	}
	if req.Count != nil {
		if *req.Count < 0 {
			writeError(w, http.StatusBadRequest, "count must not be negative")
			return
		}
		count = *req.Count
	}

	// A moving list suspends work until a request reports it has stopped.
	if req.Dragging {
		if err := s.coord.BeginDrag(); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.view.SetWindow(first, count)
	} else {
		s.view.SetWindow(first, count)
		if err := s.coord.EndDrag(false); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}

	s.logger.Debug("Viewport updated", "first", first, "count", count, "dragging", req.Dragging)
	s.writeViewport(w)
}

func (s *Server) writeViewport(w http.ResponseWriter) {
	inFlight, err := s.coord.InFlight()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if inFlight == nil {
		inFlight = []int{}
	}

	first, count := s.view.Window()
	writeJSON(w, http.StatusOK, pipeline.Viewport{
		First:    first,
		Count:    count,
		Rows:     s.view.Rows(),
		Visible:  s.view.VisibleRows(),
		InFlight: inFlight,
		Settled:  s.coord.Settled(),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (int, photo.Snapshot, bool) {
	row, err := strconv.Atoi(r.PathValue("row"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid row %q", r.PathValue("row")))
		return 0, photo.Snapshot{}, false
	}

	snap, err := s.coord.Snapshot(row)
	if errors.Is(err, coordinator.ErrRowOutOfRange) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("row %d not found", row))
		return 0, photo.Snapshot{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return 0, photo.Snapshot{}, false
	}
	return row, snap, true
}

func (s *Server) photo(row int, snap photo.Snapshot) pipeline.Photo {
	render := snap.Render()
	return pipeline.Photo{
		Row:          row,
		Name:         snap.Name,
		Title:        render.Title,
		State:        snap.State.String(),
		Busy:         render.Busy,
		Failed:       render.Failed,
		FilterFailed: snap.FilterFailed,
		Revision:     s.rows.Revision(row),
		ImageURL:     fmt.Sprintf("/photos/%d/image", row),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, pipeline.ErrorResponse{Error: msg})
}
