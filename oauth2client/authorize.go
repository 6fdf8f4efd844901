package oauth2client

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// PendingAuthorization tracks one running authorization code process: the
// expected state nonce, the redirect URI handed to the server, and the
// listener waiting for the redirect. It is destroyed when the listener
// terminates.
type PendingAuthorization struct {
	State       string
	RedirectURI string

	listener     *CallbackListener
	pkceVerifier string
}

// AuthorizeURL builds the browser-facing authorization URL for the given
// redirect URI and state, with optional extra query parameters. Callers
// driving the redirect capture themselves use this directly; the
// authorization code process builds its URL through it.
func (m *CredentialManager) AuthorizeURL(redirectURI, state string, extras url.Values) (string, error) {
	if m.info.AuthorizeURL == "" {
		return "", &ConfigurationError{Reason: "authorize URL is required"}
	}
	endpoint, err := url.Parse(m.info.AuthorizeURL)
	if err != nil {
		return "", &ConfigurationError{Reason: "authorize URL is not a valid URL: " + err.Error()}
	}

	query := endpoint.Query()
	query.Set("response_type", "code")
	query.Set("client_id", m.info.ClientID)
	query.Set("redirect_uri", redirectURI)
	if m.scopeParam != "" {
		query.Set("scope", m.scopeParam)
	}
	query.Set("state", state)
	for key, values := range extras {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	endpoint.RawQuery = query.Encode()

	return endpoint.String(), nil
}

// InitAuthorizeCodeProcess validates the redirect URI, starts a callback
// listener on its port, and returns the authorization URL to direct the end
// user to. An empty state is replaced with a generated random nonce,
// retrievable through PendingState. A process still pending from an earlier
// call is terminated first.
func (m *CredentialManager) InitAuthorizeCodeProcess(redirectURI, state string) (string, error) {
	bindAddr, err := callbackBindAddr(redirectURI, m.logger)
	if err != nil {
		return "", err
	}

	if state == "" {
		state, err = generateState()
		if err != nil {
			return "", err
		}
	}

	extras := url.Values{}
	var verifier string
	if m.usePKCE {
		var challenge string
		verifier, challenge, err = generatePKCE()
		if err != nil {
			return "", err
		}
		extras.Set("code_challenge", challenge)
		extras.Set("code_challenge_method", "S256")
	}

	authorizeURL, err := m.AuthorizeURL(redirectURI, state, extras)
	if err != nil {
		return "", err
	}

	listener := NewCallbackListener(bindAddr, m.logger)
	if err := listener.Start(); err != nil {
		return "", err
	}

	m.mu.Lock()
	previous := m.pending
	m.pending = &PendingAuthorization{
		State:        state,
		RedirectURI:  redirectURI,
		listener:     listener,
		pkceVerifier: verifier,
	}
	m.mu.Unlock()

	if previous != nil {
		if m.logger != nil {
			m.logger.Printf("oauth2client: terminating previous authorization process")
		}
		previous.listener.Stop()
	}

	return authorizeURL, nil
}

// PendingState returns the state nonce of the pending authorization
// process, or an empty string when none is pending.
func (m *CredentialManager) PendingState() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return ""
	}
	return m.pending.State
}

// WaitAndTerminateAuthorizeCodeProcess blocks until the pending listener
// receives the authorization redirect or the timeout elapses, then stops
// the listener. The bound port is released on every exit path before this
// method returns.
//
// A state mismatch returns a SecurityError and discards the code. An error
// response from the server returns an AuthorizationDeniedError. A timeout
// returns ErrCallbackTimeout.
func (m *CredentialManager) WaitAndTerminateAuthorizeCodeProcess(timeout time.Duration) (string, error) {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()
	if pending == nil {
		return "", ErrNoPendingProcess
	}

	defer func() {
		pending.listener.Stop()
		m.mu.Lock()
		if m.pending == pending {
			m.pending = nil
		}
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := pending.listener.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrCallbackTimeout
		}
		return "", err
	}

	if result.State != pending.State {
		if m.logger != nil {
			m.logger.Printf("oauth2client: state parameter mismatch on authorization callback")
		}
		return "", &SecurityError{Reason: "state parameter mismatch, possible CSRF"}
	}
	if result.IsError() {
		return "", &AuthorizationDeniedError{ErrorCode: result.Error, Description: result.ErrorDescription}
	}
	if result.Code == "" {
		return "", &AuthorizationDeniedError{ErrorCode: "no_code", Description: "authorization response did not include a code"}
	}

	if pending.pkceVerifier != "" {
		m.mu.Lock()
		m.pkceVerifier = pending.pkceVerifier
		m.mu.Unlock()
	}

	return result.Code, nil
}

// callbackBindAddr validates the redirect URI for the callback listener and
// returns the address to bind: the URI's own host and port. The redirect
// must be plain http with an explicit port, since the listener terminates
// it locally. Non-loopback hosts are accepted with a warning; they must
// resolve to the local machine for the redirect to arrive.
func callbackBindAddr(redirectURI string, logger Logger) (string, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return "", &ConfigurationError{Reason: "redirect URI is not a valid URL: " + err.Error()}
	}
	if parsed.Scheme != "http" {
		return "", &ConfigurationError{Reason: fmt.Sprintf("redirect URI must use http, got %q", parsed.Scheme)}
	}
	port := parsed.Port()
	if port == "" {
		return "", &ConfigurationError{Reason: "redirect URI must carry an explicit port"}
	}

	host := parsed.Hostname()
	if !isLoopbackHost(host) && logger != nil {
		logger.Printf("oauth2client: redirect host %s is not a loopback address, make sure it resolves to this machine", host)
	}

	return net.JoinHostPort(host, port), nil
}

// isLoopbackHost reports whether host names the local loopback interface.
func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// generateState returns a 256-bit random URL-safe nonce for the state
// parameter.
func generateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("oauth2client: failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// generatePKCE returns a PKCE code verifier and its S256 challenge
// (RFC 7636 §4.1, §4.2).
func generatePKCE() (verifier, challenge string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("oauth2client: failed to generate PKCE verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}
