package http

import (
	"net/http"
	"time"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(r.Context()); err != nil {
			logOperationFailure(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", "not ready", err)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "Service indisponible")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success": false,
		"code":    "NOT_FOUND",
		"message": "Route non trouvée",
		"path":    r.URL.Path,
		"method":  r.Method,
	})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Méthode non autorisée")
}
