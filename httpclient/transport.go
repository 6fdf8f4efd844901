package httpclient

import (
	"fmt"
	"net/http"

	"github.com/Cyb3r-Jak3/OAuth2Client/oauth2client"
)

// OAuth2Transport is an http.RoundTripper that automatically adds OAuth2
// Bearer tokens to outgoing HTTP requests.
//
// It wraps an existing transport (typically http.DefaultTransport) and
// injects the Authorization header before each request. Tokens come from
// a CredentialManager, so they are refreshed before they expire.
type OAuth2Transport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Manager provides OAuth2 access tokens. It must have completed an init
	// flow before the first request goes out.
	Manager *oauth2client.CredentialManager
}

// RoundTrip implements the http.RoundTripper interface.
// It obtains a valid OAuth2 token and adds it as "Authorization: Bearer <token>"
// to the request headers before delegating to the base transport.
// Token refresh respects the request context's cancellation and deadline.
func (t *OAuth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Manager == nil {
		return nil, fmt.Errorf("httpclient: credential manager is nil")
	}

	token, err := t.Manager.AccessToken(req.Context())
	if err != nil {
		return nil, fmt.Errorf("httpclient: failed to get token: %w", err)
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+token)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(reqClone)
}

// NewOAuth2Transport creates a new OAuth2Transport backed by the given
// credential manager. The base transport defaults to http.DefaultTransport
// if not specified.
func NewOAuth2Transport(manager *oauth2client.CredentialManager, base http.RoundTripper) *OAuth2Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &OAuth2Transport{
		Base:    base,
		Manager: manager,
	}
}
