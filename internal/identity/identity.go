package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"donation-service/internal/apperr"
)

// Verifier resolves a bearer credential to a stable caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Caller, error)
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// HTTPVerifier verifies tokens against the identity provider's
// introspection endpoint.
type HTTPVerifier struct {
	verifyURL  string
	httpClient *http.Client
}

func NewHTTPVerifier(verifyURL string) *HTTPVerifier {
	return &HTTPVerifier{
		verifyURL: verifyURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*Caller, error) {
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.verifyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, apperr.ErrUpstreamFailure.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperr.ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.ErrUpstreamFailure.WithMessage(
			fmt.Sprintf("identity provider returned status %d", resp.StatusCode))
	}

	var caller Caller
	if err := json.NewDecoder(resp.Body).Decode(&caller); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if caller.UserID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return &caller, nil
}
