package oauth2client

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// token returns a dispatch-ready token, refreshing through the single-flight
// group when the stored one is past its margin.
func (m *CredentialManager) token(ctx context.Context) (Token, error) {
	tok, ok := m.store.current()
	if !ok {
		return Token{}, ErrNotInitialized
	}
	if tok.Valid(m.margin) {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return Token{}, ErrTokenExpired
	}
	return m.refresh(ctx)
}

// refresh performs the refresh_token grant. Concurrent callers observing an
// expired token collapse into one exchange: the single-flight group
// serializes them and the winner's result is shared. The store is re-read
// inside the group so late arrivals use a token refreshed while they
// waited instead of going to the network again.
func (m *CredentialManager) refresh(ctx context.Context) (Token, error) {
	result, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		current, ok := m.store.current()
		if !ok {
			return Token{}, ErrNotInitialized
		}
		if current.Valid(m.margin) {
			return current, nil
		}
		if current.RefreshToken == "" {
			return Token{}, ErrTokenExpired
		}

		tok, err := m.exchange(ctx, m.refreshParams(current.RefreshToken))
		if err != nil {
			return Token{}, &RefreshError{Err: err}
		}
		if tok.RefreshToken == "" {
			tok.RefreshToken = current.RefreshToken
		}
		if err := m.storeToken(tok); err != nil {
			return Token{}, &RefreshError{Err: err}
		}
		return tok, nil
	})
	if err != nil {
		return Token{}, err
	}
	return result.(Token), nil
}

// AccessToken returns a valid access token for the Authorization header,
// refreshing it first when needed. Transports and interceptors build on
// this.
func (m *CredentialManager) AccessToken(ctx context.Context) (string, error) {
	tok, err := m.token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Do dispatches req with a bearer Authorization header attached, refreshing
// the token first when it is past its margin. The request is cloned, never
// mutated in place. Responses from the resource server pass through
// unmodified, with one side effect: a 401 observed for a token that carried
// no lifetime marks that token expired, so the next dispatch refreshes. The
// 401 itself is still returned and never retried.
func (m *CredentialManager) Do(req *http.Request) (*http.Response, error) {
	tok, err := m.token(req.Context())
	if err != nil {
		return nil, err
	}

	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := m.client.Do(reqClone)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && tok.Expiry.IsZero() {
		m.store.markExpired(tok.AccessToken)
		if m.logger != nil {
			m.logger.Printf("oauth2client: received 401 for a token with no expiry, marking it expired")
		}
	}

	return resp, nil
}

// Get issues an authenticated GET request.
func (m *CredentialManager) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth2client: failed to build request: %w", err)
	}
	return m.Do(req)
}

// Post issues an authenticated POST request.
func (m *CredentialManager) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	return m.bodyRequest(ctx, http.MethodPost, url, contentType, body)
}

// Put issues an authenticated PUT request.
func (m *CredentialManager) Put(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	return m.bodyRequest(ctx, http.MethodPut, url, contentType, body)
}

// Patch issues an authenticated PATCH request.
func (m *CredentialManager) Patch(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	return m.bodyRequest(ctx, http.MethodPatch, url, contentType, body)
}

// Delete issues an authenticated DELETE request.
func (m *CredentialManager) Delete(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth2client: failed to build request: %w", err)
	}
	return m.Do(req)
}

func (m *CredentialManager) bodyRequest(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("oauth2client: failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return m.Do(req)
}
