package jules

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Status     string `json:"status"`
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("jules API error %d %s: %s", e.HTTPStatus, e.Status, e.Message)
	}
	return fmt.Sprintf("jules API error %d: %s", e.HTTPStatus, e.Message)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.HTTPStatus == http.StatusTooManyRequests ||
		e.HTTPStatus == http.StatusRequestTimeout ||
		e.HTTPStatus >= 500
}

// NotFound reports whether the resource does not exist.
func (e *APIError) NotFound() bool {
	return e.HTTPStatus == http.StatusNotFound
}

// parseAPIError builds an APIError from a response body of the form
// {"error": {"code": ..., "message": ..., "status": ...}}. Other bodies are
// kept as the message.
func parseAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.HTTPStatus = status
		return envelope.Error
	}
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{HTTPStatus: status, Code: status, Message: msg}
}
