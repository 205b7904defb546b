package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/psd401/toolhub/internal/model"
	"github.com/psd401/toolhub/internal/storage"
)

func responseMeta(r *http.Request) model.ResponseMeta {
	return model.ResponseMeta{
		RequestID: RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// writeJSON writes a success response in the standard envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		IsSuccess: true,
		Data:      data,
		Meta:      responseMeta(r),
	})
}

// writeError writes an error response in the standard envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Message: message,
		Error:   &model.ErrorDetail{Code: code},
		Meta:    responseMeta(r),
	})
}

// writeFieldError writes a 400 validation error naming the offending field.
func writeFieldError(w http.ResponseWriter, r *http.Request, field, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Message: message,
		Error:   &model.ErrorDetail{Code: model.ErrCodeValidation, Field: field},
		Meta:    responseMeta(r),
	})
}

// writeInternalError logs the underlying error and returns a generic 500.
// The error detail never reaches the client.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "internal server error")
}

// writeStorageError maps storage sentinel errors onto the status table.
func (h *Handlers) writeStorageError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	switch {
	case isNotFoundError(err):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, notFoundMsg)
	case errors.Is(err, storage.ErrConflict):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "resource conflict")
	default:
		h.writeInternalError(w, r, "storage operation failed", err)
	}
}

func isNotFoundError(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// decodeJSON decodes a JSON request body into the target struct, bounding
// the body size and rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// handleDecodeError writes the 400 for a body that failed to decode.
func handleDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, r, http.StatusRequestEntityTooLarge, model.ErrCodeValidation, "request body too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
}
