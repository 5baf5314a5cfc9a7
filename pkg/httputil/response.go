package httputil

import (
	"encoding/json"
	"net/http"
)

// DetailResponse is the error envelope used by the auth service
type DetailResponse struct {
	Detail string `json:"detail"`
}

// FieldErrors maps request fields to their validation messages
type FieldErrors map[string][]string

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteDetail writes a {"detail": message} error response
func WriteDetail(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, DetailResponse{Detail: message})
}

// WriteError writes the error's message as a detail response
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteDetail(w, status, err.Error())
}

// WriteFieldErrors writes a 400 response keyed by field name
func WriteFieldErrors(w http.ResponseWriter, errs FieldErrors) {
	_ = WriteJSON(w, http.StatusBadRequest, errs)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteDetail(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteDetail(w, http.StatusUnauthorized, message)
}

// WriteInternalError writes an internal server error response (500)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}
