// Package responseutils maps service errors onto HTTP responses with a
// consistent JSON envelope.
package responseutils

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	apperrors "github.com/chrscato/cdx-billreview/billreview/errors"
	"github.com/chrscato/cdx-billreview/log"
)

// Machine-readable codes carried in error envelopes.
const (
	CodeMalformedRequest = "MALFORMED_REQUEST"
	CodeInvalidRate      = "INVALID_RATE"
	CodeEmptySubmission  = "EMPTY_SUBMISSION"
	CodeNotFound         = "NOT_FOUND"
	CodeApplyFailed      = "APPLY_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON envelope for every error the API returns.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`

	// Field names the offending procedure code or category, when one
	// exists.
	Field string `json:"field,omitempty"`
}

// WriteError classifies err against the service error taxonomy and writes
// the matching status and envelope. Unclassified errors become opaque 500s;
// their details go to the log, not the caller.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		malformed *apperrors.MalformedRequestError
		invalid   *apperrors.InvalidRateError
		empty     *apperrors.EmptySubmissionError
		notFound  *apperrors.EntityNotFoundError
		apply     *apperrors.ApplyFailedError
	)

	switch {
	case errors.As(err, &malformed):
		writeResponse(w, r, http.StatusBadRequest, ErrorResponse{Code: CodeMalformedRequest, Error: malformed.Error()})
	case errors.As(err, &invalid):
		writeResponse(w, r, http.StatusBadRequest, ErrorResponse{Code: CodeInvalidRate, Error: invalid.Error(), Field: invalid.Field})
	case errors.As(err, &empty):
		writeResponse(w, r, http.StatusBadRequest, ErrorResponse{Code: CodeEmptySubmission, Error: empty.Error()})
	case errors.As(err, &notFound):
		writeResponse(w, r, http.StatusNotFound, ErrorResponse{Code: CodeNotFound, Error: notFound.Error()})
	case errors.As(err, &apply):
		writeResponse(w, r, http.StatusInternalServerError, ErrorResponse{Code: CodeApplyFailed, Error: apply.Error()})
	default:
		log.API.Error(err)
		writeResponse(w, r, http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Error: "internal server error"})
	}
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse) {
	render.Status(r, status)
	render.JSON(w, r, body)
}
