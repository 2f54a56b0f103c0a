package http

import (
	"net/http"

	"github.com/viralforge/roadworks/internal/application"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register", err)
		return
	}
	req.IPAddress = readIP(r)

	res, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Inscription réussie", res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Connexion réussie", res)
}

// logout answers 200 even when the session store write fails; the failure is logged.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r.Context())
	if ok {
		if err := h.service.Logout(r.Context(), token); err != nil {
			logOperationFailure(r.Context(), "logout", http.StatusOK, "LOGOUT_FAILED", "session not deactivated", err)
		}
	}
	writeMessage(w, http.StatusOK, "Déconnexion réussie")
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "me")
		return
	}
	res, err := h.service.Me(r.Context(), auth)
	if err != nil {
		h.writeMappedError(r.Context(), w, "me", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", res)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "update_me")
		return
	}
	var req application.UpdateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "update_me", err)
		return
	}
	res, err := h.service.UpdateMe(r.Context(), auth, req)
	if err != nil {
		h.writeMappedError(r.Context(), w, "update_me", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Informations mises à jour avec succès", res)
}

func (h *Handler) unblock(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userId")
	if !ok {
		writeInvalidIDError(r.Context(), w, "unblock")
		return
	}
	res, err := h.service.Unblock(r.Context(), userID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "unblock", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Utilisateur débloqué avec succès", res)
}

func (h *Handler) blockedUsers(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.BlockedUsers(r.Context())
	if err != nil {
		h.writeMappedError(r.Context(), w, "blocked_users", err)
		return
	}
	writeList(w, res, len(res))
}
