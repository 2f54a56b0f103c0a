package http

import (
	"encoding/json"
	"net/http"
)

type apiError struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	body := map[string]any{
		"success": true,
		"data":    data,
	}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, statusCode, body)
}

// writeList adds the item count next to the data array.
func writeList(w http.ResponseWriter, data any, count int) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"count":   count,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"success": true,
		"message": message,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Code:    code,
		Message: message,
	})
}

func writeErrorDetail(w http.ResponseWriter, statusCode int, code, message, detail string) {
	writeJSON(w, statusCode, apiError{
		Code:    code,
		Message: message,
		Error:   detail,
	})
}
