package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"genecorr/adapters/matrix"
	"genecorr/app"
	"genecorr/domain/core"
	"genecorr/domain/corr"
	"genecorr/internal/design"
)

// batchRequest is the JSON body of POST /api/batches.
type batchRequest struct {
	MatrixPath  string     `json:"matrix_path"`
	DesignPath  string     `json:"design_path,omitempty"`
	Pairs       [][]string `json:"pairs,omitempty"`
	Iterations  int        `json:"iterations,omitempty"`
	Seed        int64      `json:"seed,omitempty"`
	Floor       bool       `json:"floor,omitempty"`
	Alternative string     `json:"alternative,omitempty"`
	AdjustP     bool       `json:"adjust_p,omitempty"`
}

// batchResponse is returned by POST /api/batches.
type batchResponse struct {
	Run     *corr.BatchRun           `json:"run"`
	Results []corr.CorrelationResult `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.MatrixPath == "" {
		writeError(w, http.StatusBadRequest, "matrix_path is required")
		return
	}

	reader, err := matrixReader(req.MatrixPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := reader.ReadMatrix(r.Context(), req.MatrixPath)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "read matrix: "+err.Error())
		return
	}

	var d *design.Design
	if req.DesignPath != "" {
		rows, err := matrix.ReadDesign(req.DesignPath)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "read design: "+err.Error())
			return
		}
		d, err = design.New(rows)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "build design: "+err.Error())
			return
		}
	}

	cfg := app.BatchConfig{
		Iterations:  req.Iterations,
		Seed:        req.Seed,
		Floor:       req.Floor,
		Alternative: corr.Alternative(req.Alternative),
		AdjustP:     req.AdjustP,
	}
	for _, p := range req.Pairs {
		if len(p) != 2 {
			writeError(w, http.StatusBadRequest, "each pair must name exactly two genes")
			return
		}
		cfg.Pairs = append(cfg.Pairs, [2]core.GeneKey{core.GeneKey(p[0]), core.GeneKey(p[1])})
	}

	run, results, err := s.service.Run(r.Context(), m, d, cfg)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case core.IsConfigurationError(err):
			status = http.StatusBadRequest
		case core.IsNotFoundError(err):
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, batchResponse{Run: run, Results: results})
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeError(w, http.StatusServiceUnavailable, "run persistence is not configured")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := s.results.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	run, ok := s.fetchRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	run, ok := s.fetchRun(w, r)
	if !ok {
		return
	}
	results, err := s.results.ResultsByRun(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.fetchRun(w, r)
	if !ok {
		return
	}
	results, err := s.results.ResultsByRun(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(s.reports.HTML(run, run.NullSummary, results))
}

// fetchRun resolves the {id} URL parameter to a stored run, writing the
// error response itself on failure.
func (s *Server) fetchRun(w http.ResponseWriter, r *http.Request) (*corr.BatchRun, bool) {
	if s.results == nil {
		writeError(w, http.StatusServiceUnavailable, "run persistence is not configured")
		return nil, false
	}
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return nil, false
	}
	run, err := s.results.Run(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
