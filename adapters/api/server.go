// Package api exposes batch correlation sweeps over HTTP.
package api

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"genecorr/adapters/excel"
	"genecorr/adapters/matrix"
	"genecorr/adapters/report"
	"genecorr/app"
	"genecorr/ports"
)

// Server wires the batch service and result repository into a chi router.
type Server struct {
	router  *chi.Mux
	service *app.BatchService
	results ports.ResultRepositoryPort
	reports *report.Builder
}

// NewServer creates an HTTP server. The result repository may be nil; the
// run-history routes then return 503.
func NewServer(service *app.BatchService, results ports.ResultRepositoryPort) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		results: results,
		reports: report.NewBuilder(25),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Router returns the configured router for mounting or serving.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Post("/api/batches", s.handleCreateBatch)
	s.router.Get("/api/batches", s.handleListBatches)
	s.router.Get("/api/batches/{id}", s.handleGetBatch)
	s.router.Get("/api/batches/{id}/results", s.handleGetResults)
	s.router.Get("/api/batches/{id}/report", s.handleGetReport)
}

// ListenAndServe blocks serving HTTP on addr.
func (s *Server) ListenAndServe(addr string) error {
	log.Printf("[APIServer] listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// matrixReader picks a reader by file extension.
func matrixReader(path string) (ports.MatrixReaderPort, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return matrix.NewCSVReader(), nil
	case ".xlsx":
		return excel.NewReader(), nil
	default:
		return nil, fmt.Errorf("unsupported matrix format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}
