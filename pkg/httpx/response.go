package httpx

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/nicktill/tinyqp/pkg/qp"
	"github.com/nicktill/tinyqp/pkg/status"
)

// RespondJSON writes a JSON response with the given status code and data.
func RespondJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	QueryID string `json:"query_id,omitempty"`
}

// RespondError writes an error response with the given status code and error message.
func RespondError(w http.ResponseWriter, code int, err error) {
	RespondErrorString(w, code, err.Error())
}

// RespondErrorString writes an error response with the given status code and error message string.
func RespondErrorString(w http.ResponseWriter, code int, message string) {
	RespondJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}

// RespondQueryError writes err with the HTTP status StatusCode picks for it
func RespondQueryError(w http.ResponseWriter, queryID string, err error) {
	code := StatusCode(err)
	RespondJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: err.Error(),
		QueryID: queryID,
	})
}

// StatusCode maps a query error to an HTTP status code.
// Rejected queries are client errors, execution failures map by status.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if qp.IsRejected(err) {
		return http.StatusBadRequest
	}

	switch status.FromError(err) {
	case status.BadArg, status.QueryParsingError:
		return http.StatusBadRequest
	case status.NotFound, status.NoData:
		return http.StatusNotFound
	case status.NotPermitted:
		return http.StatusForbidden
	case status.Busy, status.Overflow:
		return http.StatusServiceUnavailable
	case status.Timeout:
		return http.StatusGatewayTimeout
	case status.Closed:
		// client went away
		return 499
	default:
		return http.StatusInternalServerError
	}
}
