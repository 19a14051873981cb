package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/store"
)

// HistoryHandler serves the stored calibration history.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a new HistoryHandler with the given store.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type calibrationResponse struct {
	ID          string       `json:"id"`
	Offset      cursor.Point `json:"offset"`
	Samples     int          `json:"samples"`
	DurationMs  float64      `json:"duration_ms"`
	LockedRoles []string     `json:"locked_roles"`
	CreatedAt   string       `json:"created_at"`
}

type listCalibrationsResponse struct {
	Calibrations []calibrationResponse `json:"calibrations"`
}

func toCalibrationResponse(c *store.Calibration) calibrationResponse {
	roles := c.LockedRoles
	if roles == nil {
		roles = []string{}
	}
	return calibrationResponse{
		ID:          c.ID,
		Offset:      cursor.Point{X: c.OffsetX, Y: c.OffsetY},
		Samples:     c.Samples,
		DurationMs:  c.DurationMs,
		LockedRoles: roles,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

// ServeHTTP routes /api/calibrations (GET, optional ?limit=N) and
// /api/calibrations/{id} (GET, DELETE).
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/calibrations")
	id = strings.TrimPrefix(id, "/")

	if id == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	calibrations, err := h.store.Calibrations().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calibrations")
		return
	}

	response := listCalibrationsResponse{
		Calibrations: make([]calibrationResponse, 0, len(calibrations)),
	}
	for _, c := range calibrations {
		response.Calibrations = append(response.Calibrations, toCalibrationResponse(c))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *HistoryHandler) get(w http.ResponseWriter, id string) {
	c, err := h.store.Calibrations().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Calibration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get calibration")
		return
	}
	writeJSON(w, http.StatusOK, toCalibrationResponse(c))
}

func (h *HistoryHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Calibrations().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Calibration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete calibration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
