package api

import (
	"encoding/json"
	"net/http"
)

// Error codes of the uniform failure envelope.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeDBError      = "DB_ERROR"
	CodeServerError  = "SERVER_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope is the uniform failure shape: { ok: false, error: { code, message } }.
type ErrorEnvelope struct {
	OK    bool      `json:"ok"`
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorEnvelope{
		OK:    false,
		Error: errorBody{Code: code, Message: message},
	})
}
