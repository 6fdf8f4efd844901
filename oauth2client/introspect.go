package oauth2client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenIntrospection is the authorization server's view of a token
// (RFC 7662 §2.2). Active is the only member a server must send; every
// other field holds the zero value when the server omits the claim.
type TokenIntrospection struct {
	Active    bool
	Scope     string
	ClientID  string
	Username  string
	TokenType string
	Subject   string
	Audience  []string
	Issuer    string
	Expiry    time.Time
	IssuedAt  time.Time
}

// introspectionResponse is the wire format of the introspection endpoint.
// The aud member is decoded separately because servers send it either as a
// single string or as an array of strings.
type introspectionResponse struct {
	Active    bool            `json:"active"`
	Scope     string          `json:"scope"`
	ClientID  string          `json:"client_id"`
	Username  string          `json:"username"`
	TokenType string          `json:"token_type"`
	Subject   string          `json:"sub"`
	Audience  json.RawMessage `json:"aud"`
	Issuer    string          `json:"iss"`
	ExpiresAt int64           `json:"exp"`
	IssuedAt  int64           `json:"iat"`
}

// IntrospectToken asks the configured introspection endpoint about a token
// (RFC 7662). The hint tells the server which kind of token it is and may
// be empty. An inactive token is not an error; callers check the Active
// field. Requires WithIntrospectionURL.
func (m *CredentialManager) IntrospectToken(ctx context.Context, token, tokenTypeHint string) (TokenIntrospection, error) {
	if m.introspectionURL == "" {
		return TokenIntrospection{}, &ConfigurationError{Reason: "introspection URL is required"}
	}
	if token == "" {
		return TokenIntrospection{}, &ConfigurationError{Reason: "token to introspect is required"}
	}

	params := url.Values{}
	params.Set("token", token)
	if tokenTypeHint != "" {
		params.Set("token_type_hint", tokenTypeHint)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.introspectionURL, strings.NewReader(params.Encode()))
	if err != nil {
		return TokenIntrospection{}, fmt.Errorf("oauth2client: failed to build introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(m.info.ClientID, m.info.ClientSecret)

	resp, err := m.httpClient(ctx).Do(req)
	if err != nil {
		return TokenIntrospection{}, fmt.Errorf("oauth2client: introspection request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenIntrospection{}, fmt.Errorf("oauth2client: failed to read introspection response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return TokenIntrospection{}, newAuthServerError(resp.StatusCode, body)
	}

	var parsed introspectionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return TokenIntrospection{}, fmt.Errorf("oauth2client: invalid introspection response: %w", err)
	}

	info := TokenIntrospection{
		Active:    parsed.Active,
		Scope:     parsed.Scope,
		ClientID:  parsed.ClientID,
		Username:  parsed.Username,
		TokenType: parsed.TokenType,
		Subject:   parsed.Subject,
		Audience:  decodeAudience(parsed.Audience),
		Issuer:    parsed.Issuer,
	}
	if parsed.ExpiresAt > 0 {
		info.Expiry = time.Unix(parsed.ExpiresAt, 0)
	}
	if parsed.IssuedAt > 0 {
		info.IssuedAt = time.Unix(parsed.IssuedAt, 0)
	}

	if m.logger != nil {
		m.logger.Printf("oauth2client: introspected token, active=%t", info.Active)
	}

	return info, nil
}

// IntrospectCurrentToken introspects the stored access token.
func (m *CredentialManager) IntrospectCurrentToken(ctx context.Context) (TokenIntrospection, error) {
	tok, ok := m.store.current()
	if !ok {
		return TokenIntrospection{}, ErrNotInitialized
	}
	return m.IntrospectToken(ctx, tok.AccessToken, TokenTypeHintAccessToken)
}

// decodeAudience accepts both shapes of the aud member.
func decodeAudience(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}
