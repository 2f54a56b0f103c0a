package http

import (
	"net/http"

	"github.com/viralforge/roadworks/internal/application"
	"github.com/viralforge/roadworks/internal/domain"
)

func (h *Handler) listSignalements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.service.ListSignalements(r.Context(), application.ListSignalementsQuery{
		Statut: q.Get("statut"),
		UserID: int64(parseIntDefault(q.Get("userId"), 0)),
		Limit:  parseIntDefault(q.Get("limit"), 0),
		Offset: parseIntDefault(q.Get("offset"), 0),
	})
	if err != nil {
		h.writeMappedError(r.Context(), w, "list_signalements", err)
		return
	}
	writeList(w, res, len(res))
}

func (h *Handler) getSignalement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidIDError(r.Context(), w, "get_signalement")
		return
	}
	res, err := h.service.GetSignalement(r.Context(), id)
	if err != nil {
		h.writeMappedError(r.Context(), w, "get_signalement", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", res)
}

func (h *Handler) createSignalement(w http.ResponseWriter, r *http.Request) {
	var req application.CreateSignalementRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_signalement", err)
		return
	}
	var caller *domain.AuthContext
	if auth, ok := authFromContext(r.Context()); ok {
		caller = &auth
	}
	res, err := h.service.CreateSignalement(r.Context(), caller, req)
	if err != nil {
		h.writeMappedError(r.Context(), w, "create_signalement", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Signalement créé avec succès", res)
}

func (h *Handler) updateSignalement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidIDError(r.Context(), w, "update_signalement")
		return
	}
	var req application.UpdateSignalementRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "update_signalement", err)
		return
	}
	res, err := h.service.UpdateSignalement(r.Context(), id, req)
	if err != nil {
		h.writeMappedError(r.Context(), w, "update_signalement", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Signalement mis à jour avec succès", res)
}

func (h *Handler) deleteSignalement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidIDError(r.Context(), w, "delete_signalement")
		return
	}
	if err := h.service.DeleteSignalement(r.Context(), id); err != nil {
		h.writeMappedError(r.Context(), w, "delete_signalement", err)
		return
	}
	writeMessage(w, http.StatusOK, "Signalement supprimé avec succès")
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeMappedError(r.Context(), w, "stats", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", res)
}

func (h *Handler) entreprises(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Entreprises(r.Context())
	if err != nil {
		h.writeMappedError(r.Context(), w, "entreprises", err)
		return
	}
	writeList(w, res, len(res))
}

func (h *Handler) adminUsers(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeMappedError(r.Context(), w, "admin_users", err)
		return
	}
	writeList(w, res, len(res))
}
