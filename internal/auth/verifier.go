package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrVerificationFailed is returned when the identity service rejects a token
// or replies with something that does not identify a principal.
var ErrVerificationFailed = errors.New("user verification failed")

const maxVerifyResponseBytes = 64 << 10

// Principal is the identity behind a verified request.
type Principal struct {
	ID   string `json:"id,omitempty"`
	Role Role   `json:"role"`
}

// Verifier resolves an Authorization header value to a Principal.
type Verifier interface {
	Verify(ctx context.Context, authorization string) (Principal, error)
}

// HTTPVerifier forwards the Authorization header to an identity service.
// Behavior:
// - 2xx with a role: verified
// - any other status: ErrVerificationFailed
// - timeout/network: wrapped transport error
type HTTPVerifier struct {
	url    string
	client *http.Client
}

// NewHTTPVerifier creates a verifier posting to url.
func NewHTTPVerifier(url string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

// verifyResponse is the subset of the identity service reply we read.
type verifyResponse struct {
	Valid *bool           `json:"valid"`
	ID    json.RawMessage `json:"id"`
	Role  Role            `json:"role"`
}

// Verify posts to the identity service with the header forwarded verbatim.
func (v *HTTPVerifier) Verify(ctx context.Context, authorization string) (Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(nil))
	if err != nil {
		return Principal{}, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := v.client.Do(req)
	if err != nil {
		return Principal{}, fmt.Errorf("failed to reach identity service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVerifyResponseBytes))
	if err != nil {
		return Principal{}, fmt.Errorf("failed to read verify response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Principal{}, fmt.Errorf("%w: identity service returned %d", ErrVerificationFailed, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Principal{}, fmt.Errorf("%w: malformed verify response", ErrVerificationFailed)
	}
	if out.Valid != nil && !*out.Valid {
		return Principal{}, fmt.Errorf("%w: token reported invalid", ErrVerificationFailed)
	}
	if out.Role == "" {
		return Principal{}, fmt.Errorf("%w: verify response has no role", ErrVerificationFailed)
	}

	return Principal{ID: rawID(out.ID), Role: out.Role}, nil
}

// rawID renders a JSON string or number id as text.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
