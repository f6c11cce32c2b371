package httpclient

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/petcare-user/pkg/errors"
)

func makeResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantKind   error
	}{
		{"envelope not found", 404, `{"success":false,"message":"pet missing","code":"NOT_FOUND"}`, 404, apperrors.ErrNotFound},
		{"detail bad request", 400, `{"detail":"top_n must be positive"}`, 400, apperrors.ErrInvalidInput},
		{"unprocessable", 422, `{"detail":[{"loc":["body"],"msg":"field required"}]}`, 400, apperrors.ErrInvalidInput},
		{"conflict", 409, `{"message":"busy"}`, 409, apperrors.ErrConflict},
		{"unauthorized", 401, `{"message":"no"}`, 401, apperrors.ErrUnauthorized},
		{"forbidden", 403, `{"message":"no"}`, 403, apperrors.ErrForbidden},
		{"throttled", 429, `{"message":"slow down"}`, 429, apperrors.ErrTooManyRequests},
		{"unavailable", 503, `{"detail":"model loading"}`, 503, apperrors.ErrServiceUnavail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(makeResponse(tt.status, tt.body), "matching-service")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Equal(t, tt.wantStatus, apperrors.HTTPStatus(err))
		})
	}
}

func TestParseResponseError_DetailTextIsPreserved(t *testing.T) {
	err := ParseResponseError(makeResponse(400, `{"detail":"top_n must be positive"}`), "matching-service")
	assert.Contains(t, err.Error(), "matching-service: top_n must be positive")
}

func TestParseResponseError_ServerError(t *testing.T) {
	err := ParseResponseError(makeResponse(500, `{"detail":"boom"}`), "matching-service")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error (500")

	var appErr *apperrors.AppError
	assert.NotErrorAs(t, err, &appErr)
}

func TestParseResponseError_Unstructured(t *testing.T) {
	for _, body := range []string{"", "<html>bad gateway</html>", `{"unrelated":true}`} {
		err := ParseResponseError(makeResponse(502, body), "matching-service")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "returned status 502")
	}
}

func TestParseResponseError_OtherStatusKeepsCode(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusTeapot, `{"message":"short and stout","code":"TEAPOT"}`), "matching-service")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TEAPOT", appErr.Code)
	assert.Equal(t, http.StatusTeapot, appErr.Status)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(400))
	assert.True(t, IsClientError(499))
	assert.False(t, IsClientError(399))
	assert.False(t, IsClientError(500))
}
