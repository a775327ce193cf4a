package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"eventify/internal/apperr"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WriteError maps err's kind to a status and writes the error envelope.
func WriteError(w http.ResponseWriter, err error) int {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()
	_ = WriteJSON(w, status, ErrorResponse(kind.String(), apperr.PublicMessage(err)))
	return status
}
