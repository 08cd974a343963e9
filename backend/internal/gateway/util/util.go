package util

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gradepulse/backend/internal/api"
)

// JSONResponse structure for successful responses
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// JSONError structure for error responses
type JSONError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON is a helper to write JSON responses
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var response interface{}

	// If payload is already a map with a "success" key, use it directly (custom format)
	if responseMap, ok := payload.(map[string]interface{}); ok && responseMap["success"] != nil {
		response = payload
	} else if status >= 200 && status < 300 {
		response = JSONResponse{Success: true, Data: payload}
	} else {
		response = JSONError{Success: false, Message: "Unknown error"}
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// WriteJSONError is a helper to write standardized error JSON responses
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResponse := JSONError{
		Success: false,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Printf("Error writing JSON error response: %v", err)
	}
}

// WriteValidationError writes the inline field-level message for a rejected
// mutation.
func WriteValidationError(w http.ResponseWriter, vf *api.ValidationFailure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	errorResponse := JSONError{
		Success: false,
		Message: vf.Message,
		Field:   vf.Field,
	}

	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Printf("Error writing JSON error response: %v", err)
	}
}

// HandleUpstreamError translates client errors to appropriate HTTP responses.
// This is the error mapping boundary between the upstream school platform API
// and the gateway's own surface.
func HandleUpstreamError(w http.ResponseWriter, err error) {
	var vf *api.ValidationFailure
	if errors.As(err, &vf) {
		WriteValidationError(w, vf)
		return
	}

	var ff *api.FetchFailure
	if errors.As(err, &ff) {
		switch {
		case errors.Is(ff.Err, context.DeadlineExceeded):
			WriteJSONError(w, http.StatusGatewayTimeout, "Upstream timeout: the school platform API took too long to respond.")
		case ff.StatusCode == http.StatusNotFound:
			WriteJSONError(w, http.StatusNotFound, ff.Error())
		default:
			WriteJSONError(w, http.StatusBadGateway, "Upstream unavailable: "+ff.Error())
		}
		return
	}

	WriteJSONError(w, http.StatusInternalServerError, err.Error())
}
