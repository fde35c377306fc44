package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/df07/go-interactive-raytracer/pkg/renderer"
)

// handleInspect reports what the ray through a pixel hits with the current
// camera and scene
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	// Parse pixel coordinates
	pixelX, err := strconv.Atoi(r.URL.Query().Get("x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid x coordinate")
		return
	}

	pixelY, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid y coordinate")
		return
	}

	result, err := s.engine.Inspect(pixelX, pixelY)
	if errors.Is(err, renderer.ErrOutOfRange) {
		writeError(w, http.StatusBadRequest, "Pixel coordinates out of bounds")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}
