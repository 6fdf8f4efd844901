package oauth2client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Token type hints for RevokeToken (RFC 7009 §2.1).
const (
	TokenTypeHintAccessToken  = "access_token"
	TokenTypeHintRefreshToken = "refresh_token"
)

// RevokeToken revokes a single token at the configured revocation endpoint
// (RFC 7009). The hint tells the server which kind of token it is and may
// be empty. Requires WithRevocationURL.
func (m *CredentialManager) RevokeToken(ctx context.Context, token, tokenTypeHint string) error {
	if m.revocationURL == "" {
		return &ConfigurationError{Reason: "revocation URL is required"}
	}
	if token == "" {
		return &ConfigurationError{Reason: "token to revoke is required"}
	}

	params := url.Values{}
	params.Set("token", token)
	if tokenTypeHint != "" {
		params.Set("token_type_hint", tokenTypeHint)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revocationURL, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("oauth2client: failed to build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.info.ClientID, m.info.ClientSecret)

	resp, err := m.httpClient(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("oauth2client: revocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return newAuthServerError(resp.StatusCode, body)
	}

	return nil
}

// RevokeCurrentTokens revokes the stored refresh token and access token,
// then clears the store. Missing tokens are skipped; the store is cleared
// only when every present token was revoked.
func (m *CredentialManager) RevokeCurrentTokens(ctx context.Context) error {
	tok, ok := m.store.current()
	if !ok {
		return ErrNotInitialized
	}

	if tok.RefreshToken != "" {
		if err := m.RevokeToken(ctx, tok.RefreshToken, TokenTypeHintRefreshToken); err != nil {
			return err
		}
	}
	if err := m.RevokeToken(ctx, tok.AccessToken, TokenTypeHintAccessToken); err != nil {
		return err
	}

	m.store.clear()
	return nil
}
