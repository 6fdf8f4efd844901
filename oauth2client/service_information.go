package oauth2client

import (
	"strings"

	"github.com/Cyb3r-Jak3/OAuth2Client/internal/scope"
)

// ServiceInformation describes an OAuth2 authorization provider and the
// client registered with it. Treat values as immutable once handed to a
// CredentialManager.
type ServiceInformation struct {
	// AuthorizeURL is the authorization endpoint. Required only for the
	// authorization code flow.
	AuthorizeURL string
	// TokenURL is the token endpoint. Required for every flow that performs
	// an exchange.
	TokenURL string
	// ClientID and ClientSecret identify the client. The secret may be empty
	// for public clients using the authorization code flow.
	ClientID     string
	ClientSecret string
	// Scopes are the scopes requested on every grant, joined with spaces on
	// the wire.
	Scopes []string
	// SkipTLSVerify disables certificate verification on the transport the
	// manager builds for itself. Ignored when a custom HTTP client is
	// injected. Never enable this outside of tests.
	SkipTLSVerify bool
}

// Validate reports whether the configuration can support a token exchange.
func (s ServiceInformation) Validate() error {
	if strings.TrimSpace(s.TokenURL) == "" {
		return &ConfigurationError{Reason: "token URL is required"}
	}
	if strings.TrimSpace(s.ClientID) == "" {
		return &ConfigurationError{Reason: "client ID is required"}
	}
	return nil
}

// normalizedScopes returns a defensive, normalized copy of the scope list.
func (s ServiceInformation) normalizedScopes() []string {
	return scope.Normalize(s.Scopes)
}
