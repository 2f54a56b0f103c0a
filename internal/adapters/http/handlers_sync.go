package http

import (
	"fmt"
	"net/http"
)

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "", h.service.SyncStatus(r.Context()))
}

func (h *Handler) syncAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.SyncAll(r.Context())
	if err != nil {
		h.writeMappedError(r.Context(), w, "sync_all", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Synchronisation terminée avec succès", res)
}

func (h *Handler) syncSignalements(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.SyncSignalements(r.Context())
	if err != nil {
		h.writeMappedError(r.Context(), w, "sync_signalements", err)
		return
	}
	writeSuccess(w, http.StatusOK, fmt.Sprintf("%d signalement(s) synchronisé(s)", res.SyncCount), res)
}

func (h *Handler) syncUsers(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.SyncUsers(r.Context())
	if err != nil {
		h.writeMappedError(r.Context(), w, "sync_users", err)
		return
	}
	writeSuccess(w, http.StatusOK, fmt.Sprintf("%d utilisateur(s) synchronisé(s)", res.SyncCount), res)
}
