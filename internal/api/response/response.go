// Package response writes the JSON envelopes used by the panel API.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/dispersion/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, SuccessResponse{Data: data, Meta: Meta{Timestamp: time.Now().UTC()}})
}

// JSONWithRun writes a success response tagged with a submission id.
func JSONWithRun(w http.ResponseWriter, status int, runID string, data any) {
	write(w, status, SuccessResponse{Data: data, Meta: Meta{Timestamp: time.Now().UTC(), RunID: runID}})
}

// Error writes an error response. Non-core errors are reported as
// INTERNAL_ERROR without their text.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	write(w, status, ErrorResponse{Error: detail})
}

// Fail writes err with the status StatusFor picks.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}

// StatusFor maps a core error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownField), errors.Is(err, core.ErrConfigInvalid),
		errors.Is(err, core.ErrConfigMissing), errors.Is(err, core.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, core.ErrTransportTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrTransportFailed), errors.Is(err, core.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrRenderFailed):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
