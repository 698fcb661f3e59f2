package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/report"
)

const maxBodyBytes = 1 << 20

// CompareRequest is the body of POST /api/v1/comparisons.
type CompareRequest struct {
	OriginalFolder  string `json:"original_folder"`
	AmendmentFolder string `json:"amendment_folder"`
	ContractID      string `json:"contract_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string       `json:"error"`
	Stage domain.Stage `json:"stage,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CompareRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OriginalFolder == "" || req.AmendmentFolder == "" || req.ContractID == "" {
		writeError(w, http.StatusBadRequest, "original_folder, amendment_folder and contract_id are required")
		return
	}
	original, err := s.resolve(req.OriginalFolder)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amendment, err := s.resolve(req.AmendmentFolder)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.comparer.CompareReport(r.Context(), original, amendment, req.ContractID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeReport(w, format, rep)
}

func (s *Server) handleListComparisons(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "comparison history requires temporal mode")
		return
	}
	pageSize := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		pageSize = n
	}
	list, err := s.history.List(r.Context(), pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "comparison history requires temporal mode")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "contract id required")
		return
	}
	result, err := s.history.State(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolve cleans a request folder and checks it against the data root.
func (s *Server) resolve(folder string) (string, error) {
	if s.dataRoot == "" {
		return filepath.Clean(folder), nil
	}
	p := folder
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.dataRoot, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.dataRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("folder " + folder + " is outside the data root")
	}
	return p, nil
}

// StatusFor maps a comparison failure to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoImagesFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidStructuredOutput), errors.Is(err, domain.ErrValidation):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrAllCandidatesExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if stage, ok := domain.FailedStage(err); ok {
		resp.Stage = stage
	}
	writeJSON(w, StatusFor(err), resp)
}

func writeReport(w http.ResponseWriter, format report.Format, rep report.Report) {
	switch format {
	case report.FormatMarkdown:
		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(report.Markdown(rep)))
	case report.FormatHTML:
		body, err := report.HTML(rep)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
