package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// UpstreamError reports a non-2xx response from a provider's OAuth or API
// endpoint. Body is populated only for the schema endpoints, whose responses
// carry validation detail.
type UpstreamError struct {
	Op         string
	StatusCode int
	Reason     string
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider: %s: [%d] %s: %s", e.Op, e.StatusCode, e.Reason, e.Body)
	}
	return fmt.Sprintf("provider: %s: [%d] %s", e.Op, e.StatusCode, e.Reason)
}

// newUpstreamError extracts the provider-supplied reason from an error
// response body, falling back to the HTTP status text.
func newUpstreamError(op string, statusCode int, body []byte, keepBody bool) *UpstreamError {
	e := &UpstreamError{
		Op:         op,
		StatusCode: statusCode,
		Reason:     reasonFromBody(body),
	}
	if e.Reason == "" {
		e.Reason = http.StatusText(statusCode)
	}
	if keepBody {
		e.Body = strings.TrimSpace(string(body))
	}
	return e
}

func reasonFromBody(body []byte) string {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Err              string `json:"error"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, candidate := range []string{payload.ErrorDescription, payload.Err, payload.Message} {
		if strings.TrimSpace(candidate) != "" {
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}
