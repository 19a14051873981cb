// Package api provides HTTP API handlers for the mudra application.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/app"
)

// Controller is the part of the application the calibration API drives.
type Controller interface {
	Status() app.Status
	Recalibrate()
	ClearSignatureLock()
}

// CalibrationHandler handles HTTP requests for the live calibration.
type CalibrationHandler struct {
	ctrl Controller
}

// NewCalibrationHandler creates a new CalibrationHandler driving ctrl.
func NewCalibrationHandler(ctrl Controller) *CalibrationHandler {
	return &CalibrationHandler{ctrl: ctrl}
}

// ServeHTTP routes requests under /api/calibration.
//
// Routes:
//
//	GET    /api/calibration             current status
//	POST   /api/calibration/reset       restart calibration
//	DELETE /api/calibration/signatures  clear the signature lock
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/calibration")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.ctrl.Status())

	case "reset":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ctrl.Recalibrate()
		writeJSON(w, http.StatusOK, h.ctrl.Status())

	case "signatures":
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ctrl.ClearSignatureLock()
		writeJSON(w, http.StatusOK, h.ctrl.Status())

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
