package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/petcare-user/pkg/errors"
)

// downstreamError covers both error shapes seen from internal services: the
// platform envelope {"success":false,"message","code"} and the
// {"detail": "..."} body produced by Python services.
type downstreamError struct {
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Detail  json.RawMessage `json:"detail"`
}

func (d downstreamError) text() string {
	if d.Message != "" {
		return d.Message
	}
	var s string
	if json.Unmarshal(d.Detail, &s) == nil {
		return s
	}
	return string(d.Detail)
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// maps it to an AppError that keeps the downstream semantics.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var downstream downstreamError
	if json.Unmarshal(body, &downstream) != nil || downstream.text() == "" {
		return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, body)
	}
	return mapDownstreamError(resp.StatusCode, downstream.Code, downstream.text(), serviceName)
}

func mapDownstreamError(status int, code, message, serviceName string) error {
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusTooManyRequests:
		return apperrors.TooManyRequests(qualified)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualified)
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, status, code, message)
	default:
		if code == "" {
			code = "DOWNSTREAM_ERROR"
		}
		return apperrors.New(code, qualified, status, nil)
	}
}

// IsClientError reports whether status is a 4xx code.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
