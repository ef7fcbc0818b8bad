// Package handler exposes discovery over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"guestmap/internal/discovery"
	"guestmap/internal/domain"
	"guestmap/internal/service"
)

// DiscoveryHandler handles discovery API requests
type DiscoveryHandler struct {
	svc *service.DiscoveryService
	// defaults holds the configured targets and credentials; a run
	// request may override the target list, never the credentials
	defaults discovery.Request
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(svc *service.DiscoveryService, defaults discovery.Request) *DiscoveryHandler {
	return &DiscoveryHandler{svc: svc, defaults: defaults}
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RunRequest optionally narrows a run to an explicit target list
type RunRequest struct {
	Targets []domain.VMTarget `json:"targets"`
}

// StartRun launches an asynchronous discovery run
func (h *DiscoveryHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	req := h.defaults

	if r.ContentLength != 0 {
		var body RunRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
		if len(body.Targets) > 0 {
			req.Targets = body.Targets
		}
	}

	if len(req.Targets) == 0 {
		h.writeError(w, "No targets", "no VM targets configured or supplied", http.StatusBadRequest)
		return
	}

	if err := h.svc.StartRun(req); err != nil {
		if errors.Is(err, service.ErrRunActive) {
			h.writeError(w, "Run already active", err.Error(), http.StatusConflict)
			return
		}
		h.writeError(w, "Failed to start run", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"status":  "started",
		"targets": len(req.Targets),
	}, http.StatusAccepted)
}

// GetProgress returns a progress snapshot of the current run
func (h *DiscoveryHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Progress(), http.StatusOK)
}

// GetResult returns the most recent completed result
func (h *DiscoveryHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.LatestResult(r.Context())
	if err != nil {
		log.Printf("Failed to load result: %v", err)
		h.writeError(w, "Failed to load result", err.Error(), http.StatusInternalServerError)
		return
	}
	if result == nil {
		h.writeError(w, "No result", "no discovery run has completed yet", http.StatusNotFound)
		return
	}

	h.writeJSON(w, result, http.StatusOK)
}

// ListRuns returns run history summaries, newest first
func (h *DiscoveryHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			h.writeError(w, "Invalid limit", "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to list runs: %v", err)
		h.writeError(w, "Failed to list runs", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{"runs": runs}, http.StatusOK)
}

// ProbeRequest asks for a standalone deep probe of one host. It
// carries secrets inbound; domain credentials never serialize them
// outbound, so the request body gets its own shape.
type ProbeRequest struct {
	Host        string            `json:"host"`
	Credentials []ProbeCredential `json:"credentials"`
}

// ProbeCredential is one database login in a ProbeRequest
type ProbeCredential struct {
	Engine   string `json:"engine"`
	Username string `json:"username"`
	Password string `json:"password"`
	Port     int    `json:"port"`
	Host     string `json:"host"`
}

// ProbeDatabases deep-probes explicit database targets with no guest login
func (h *DiscoveryHandler) ProbeDatabases(w http.ResponseWriter, r *http.Request) {
	var req ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	creds := make([]domain.DatabaseCredential, 0, len(req.Credentials))
	for _, c := range req.Credentials {
		creds = append(creds, domain.DatabaseCredential{
			Engine:   domain.DatabaseEngine(c.Engine),
			Username: c.Username,
			Password: c.Password,
			Port:     c.Port,
			Host:     c.Host,
		})
	}

	databases, err := h.svc.ProbeDatabases(r.Context(), req.Host, creds)
	if err != nil {
		h.writeError(w, "Probe failed", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"host":      req.Host,
		"databases": databases,
	}, http.StatusOK)
}

// Helper methods

func (h *DiscoveryHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *DiscoveryHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
