package responseutils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chrscato/cdx-billreview/billreview/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		expStatus int
		expCode   string
		expField  string
	}{
		{"malformed request", &apperrors.MalformedRequestError{Msg: "unknown rate type"}, http.StatusBadRequest, CodeMalformedRequest, ""},
		{"invalid rate", &apperrors.InvalidRateError{Field: "70551"}, http.StatusBadRequest, CodeInvalidRate, "70551"},
		{"empty submission", &apperrors.EmptySubmissionError{}, http.StatusBadRequest, CodeEmptySubmission, ""},
		{"not found", &apperrors.EntityNotFoundError{Err: errors.New("gone"), Filename: "bill_001.json"}, http.StatusNotFound, CodeNotFound, ""},
		{"apply failed", &apperrors.ApplyFailedError{Msg: "category map changed"}, http.StatusInternalServerError, CodeApplyFailed, ""},
		{"unclassified", errors.New("connection refused"), http.StatusInternalServerError, CodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(sub *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/fails", nil)
			rr := httptest.NewRecorder()

			WriteError(rr, req, tt.err)

			assert.Equal(sub, tt.expStatus, rr.Code)

			var body ErrorResponse
			require.NoError(sub, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(sub, tt.expCode, body.Code)
			assert.Equal(sub, tt.expField, body.Field)
			assert.NotEmpty(sub, body.Error)
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/fails", nil)
	rr := httptest.NewRecorder()

	WriteError(rr, req, errors.New("pq: password authentication failed"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestWriteErrorWrappedErrors(t *testing.T) {
	// Service-layer wrapping must not defeat classification.
	wrapped := &apperrors.EntityNotFoundError{Err: errors.New("bill not in failed set"), Filename: "bill_001.json"}

	req := httptest.NewRequest("GET", "/api/v1/fails/bill_001.json", nil)
	rr := httptest.NewRecorder()
	WriteError(rr, req, wrapped)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
