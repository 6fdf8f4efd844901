package oauth2client

import (
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Token is an OAuth2 token as held by a CredentialManager.
//
// Expiry is absolute, computed from the issuance instant plus the lifetime
// reported by the server. A zero Expiry means the server reported no
// lifetime; such a token is treated as valid until a 401 response is
// observed on a dispatched request.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	// Scope is the granted scope as reported by the server, which may be
	// narrower than the requested set. Empty when the server omitted it.
	Scope string
	// IDToken is the raw OpenID Connect ID token, when the server issued one.
	IDToken string
}

// Valid reports whether the token carries an access token that has not
// passed its expiry. The margin is subtracted from the expiry to guard
// against clock drift between client and server.
func (t Token) Valid(margin time.Duration) bool {
	if t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(margin).Before(t.Expiry)
}

// OAuth2Token converts to the golang.org/x/oauth2 representation. The ID
// token, when present, is attached as the "id_token" extra field, matching
// the x/oauth2 convention.
func (t Token) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
	if t.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": t.IDToken})
	}
	return tok
}

// TokenFromOAuth2 converts a golang.org/x/oauth2 token, preserving the
// "id_token" extra field when present.
func TokenFromOAuth2(tok *oauth2.Token) Token {
	if tok == nil {
		return Token{}
	}
	converted := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		converted.IDToken = idToken
	}
	return converted
}

// tokenResponse is the JSON document returned by the token endpoint
// (RFC 6749 §5.1).
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`
}

// parseTokenResponse turns a raw token-endpoint response into a Token.
// Non-2xx statuses and bodies without an access token produce an
// AuthServerError carrying the raw status and body.
func parseTokenResponse(issuedAt time.Time, statusCode int, body []byte) (Token, error) {
	if statusCode < 200 || statusCode > 299 {
		return Token{}, newAuthServerError(statusCode, body)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return Token{}, newAuthServerError(statusCode, body)
	}

	tok := Token{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		TokenType:    parsed.TokenType,
		Scope:        parsed.Scope,
		IDToken:      parsed.IDToken,
	}
	if parsed.ExpiresIn > 0 {
		tok.Expiry = issuedAt.Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}

	return tok, nil
}

// tokenStore holds a manager's current token. It is replaced wholesale by
// successful exchanges and never partially updated.
type tokenStore struct {
	mu  sync.RWMutex
	tok Token
}

// current returns the stored token and whether one has been set.
func (s *tokenStore) current() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok, s.tok.AccessToken != ""
}

// replace swaps in a new token.
func (s *tokenStore) replace(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = tok
}

// clear empties the store.
func (s *tokenStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = Token{}
}

// markExpired forces the stored token to be treated as expired, provided the
// store still holds the token the caller observed. Used when a 401 response
// is seen for a token that carried no lifetime.
func (s *tokenStore) markExpired(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok.AccessToken != accessToken {
		return
	}
	s.tok.Expiry = time.Now().Add(-time.Second)
}
