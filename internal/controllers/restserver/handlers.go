package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/chrissnell/iopestimator/internal/archive"
	"github.com/chrissnell/iopestimator/pkg/estimate"
	"github.com/chrissnell/iopestimator/pkg/responseformat"
	"github.com/gorilla/mux"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 20
	maxListLimit     = 500
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// EstimateRequest is the JSON body accepted by POST /estimate
type EstimateRequest struct {
	Readings []float64 `json:"readings"`
}

// EstimateResponse wraps a report with its archive id, if it was archived
type EstimateResponse struct {
	ID     string           `json:"id,omitempty"`
	Report *estimate.Report `json:"report"`
}

// MethodsResponse lists the available estimators in report order
type MethodsResponse struct {
	Methods []estimate.Estimator `json:"methods"`
}

// ReportsResponse is the body of GET /reports
type ReportsResponse struct {
	Reports []archive.Record `json:"reports"`
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	if err := h.formatter.WriteError(w, req, status, msg); err != nil {
		h.controller.logger.Errorw("failed to write error response", "status", status, "error", err)
	}
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteResponse(w, req, status, data); err != nil {
		h.controller.logger.Errorw("failed to write response", "path", req.URL.Path, "error", err)
	}
}

// readReadings accepts either a JSON body or plain text readings
func readReadings(req *http.Request) ([]float64, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		return estimate.ParseReadings(string(body))
	}

	var er EstimateRequest
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return er.Readings, nil
}

// PostEstimate handles POST /estimate
func (h *Handlers) PostEstimate(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)

	readings, err := readReadings(req)
	var verr *estimate.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, req, http.StatusUnprocessableEntity, verr.Error())
		return
	case err != nil:
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.controller.engine.Estimate(readings)
	if errors.As(err, &verr) {
		h.writeError(w, req, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	if err != nil {
		h.controller.logger.Errorw("estimation failed", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "estimation failed")
		return
	}

	resp := EstimateResponse{Report: report}
	status := http.StatusOK

	if h.controller.store != nil {
		rec, err := h.controller.store.Save(req.Context(), readings, report)
		if err != nil {
			h.controller.logger.Errorw("failed to archive report", "error", err)
			h.writeError(w, req, http.StatusInternalServerError, "failed to archive report")
			return
		}
		resp.ID = rec.ID
		status = http.StatusCreated
		w.Header().Set("Location", "/reports/"+rec.ID)
	}

	h.write(w, req, status, resp)
}

// GetMethods handles GET /methods
func (h *Handlers) GetMethods(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, MethodsResponse{Methods: estimate.Estimators()})
}

// GetReport handles GET /reports/{id}
func (h *Handlers) GetReport(w http.ResponseWriter, req *http.Request) {
	if h.controller.store == nil {
		h.writeError(w, req, http.StatusServiceUnavailable, "report archive is not enabled")
		return
	}

	id := mux.Vars(req)["id"]
	rec, err := h.controller.store.Get(req.Context(), id)
	if errors.Is(err, archive.ErrNotFound) {
		h.writeError(w, req, http.StatusNotFound, fmt.Sprintf("report %s not found", id))
		return
	}
	if err != nil {
		h.controller.logger.Errorw("failed to load report", "id", id, "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "failed to load report")
		return
	}

	h.write(w, req, http.StatusOK, rec)
}

// ListReports handles GET /reports?limit=N
func (h *Handlers) ListReports(w http.ResponseWriter, req *http.Request) {
	if h.controller.store == nil {
		h.writeError(w, req, http.StatusServiceUnavailable, "report archive is not enabled")
		return
	}

	limit := defaultListLimit
	if s := req.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxListLimit {
			h.writeError(w, req, http.StatusBadRequest, fmt.Sprintf("limit must be an integer between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}

	records, err := h.controller.store.List(req.Context(), limit)
	if err != nil {
		h.controller.logger.Errorw("failed to list reports", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "failed to list reports")
		return
	}

	h.write(w, req, http.StatusOK, ReportsResponse{Reports: records})
}

// GetHealth handles GET /healthz
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, map[string]any{
		"status":  "ok",
		"archive": h.controller.store != nil,
	})
}

// NotFound answers unknown routes with a JSON error
func (h *Handlers) NotFound(w http.ResponseWriter, req *http.Request) {
	h.writeError(w, req, http.StatusNotFound, "not found")
}

// MethodNotAllowed answers known routes requested with the wrong method
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, req *http.Request) {
	h.writeError(w, req, http.StatusMethodNotAllowed, "method not allowed")
}
