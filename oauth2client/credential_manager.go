package oauth2client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/Cyb3r-Jak3/OAuth2Client/internal/oidc"
	"github.com/Cyb3r-Jak3/OAuth2Client/internal/scope"
)

// Logger is the minimal logging interface used by this package.
// log.Default() satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

const (
	// defaultTimeout bounds every token-endpoint exchange.
	defaultTimeout = 30 * time.Second
	// defaultExpiryMargin is subtracted from the token expiry so a refresh
	// happens before the server-side deadline.
	defaultExpiryMargin = time.Minute
)

// Option configures a CredentialManager.
type Option func(*CredentialManager)

// WithLogger sets a custom logger. The default is no logging.
func WithLogger(logger Logger) Option {
	return func(m *CredentialManager) {
		m.logger = logger
	}
}

// WithLoggingEnabled enables logging to the standard library default logger.
func WithLoggingEnabled() Option {
	return func(m *CredentialManager) {
		m.logger = log.Default()
	}
}

// WithHTTPClient injects the HTTP client used for token-endpoint exchanges
// and authenticated dispatch. It overrides the proxy and TLS settings the
// manager would otherwise apply.
func WithHTTPClient(client *http.Client) Option {
	return func(m *CredentialManager) {
		m.client = client
	}
}

// WithTimeout sets the network timeout applied to every token-endpoint
// exchange. The default is 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(m *CredentialManager) {
		m.timeout = timeout
	}
}

// WithProxies routes outgoing requests through a proxy per URL scheme
// ("http", "https"). Schemes without an entry connect directly.
func WithProxies(proxies map[string]*url.URL) Option {
	return func(m *CredentialManager) {
		m.proxies = proxies
	}
}

// WithExpiryMargin overrides the safety margin used for expiry checks.
func WithExpiryMargin(margin time.Duration) Option {
	return func(m *CredentialManager) {
		m.margin = margin
	}
}

// WithPKCE enables Proof Key for Code Exchange (RFC 7636, S256) on the
// authorization code flow.
func WithPKCE() Option {
	return func(m *CredentialManager) {
		m.usePKCE = true
	}
}

// WithRevocationURL sets the RFC 7009 token revocation endpoint used by
// RevokeToken and RevokeCurrentTokens.
func WithRevocationURL(revocationURL string) Option {
	return func(m *CredentialManager) {
		m.revocationURL = revocationURL
	}
}

// WithIntrospectionURL sets the RFC 7662 token introspection endpoint used
// by IntrospectToken and IntrospectCurrentToken.
func WithIntrospectionURL(introspectionURL string) Option {
	return func(m *CredentialManager) {
		m.introspectionURL = introspectionURL
	}
}

// WithIDTokenVerification verifies OpenID Connect ID tokens returned by the
// token endpoint before a token is stored. Keys are fetched from jwksURL;
// the issuer claim must equal issuer and the audience must contain the
// client ID.
func WithIDTokenVerification(jwksURL, issuer string) Option {
	return func(m *CredentialManager) {
		m.oidcJWKSURL = jwksURL
		m.oidcIssuer = issuer
	}
}

// CredentialManager drives OAuth2 grant flows against one authorization
// provider, stores the resulting token, refreshes it when it expires, and
// attaches it to outgoing requests.
//
// A manager is safe for concurrent use. The authorization code process is an
// exception: at most one process may be pending per manager at a time.
type CredentialManager struct {
	info       ServiceInformation
	scopes     []string
	scopeParam string

	client           *http.Client
	timeout          time.Duration
	margin           time.Duration
	proxies          map[string]*url.URL
	logger           Logger
	usePKCE          bool
	revocationURL    string
	introspectionURL string

	oidcJWKSURL string
	oidcIssuer  string
	verifier    *oidc.Verifier

	store        tokenStore
	refreshGroup singleflight.Group

	mu           sync.Mutex
	pending      *PendingAuthorization
	pkceVerifier string
}

// NewCredentialManager validates the service information and constructs a
// manager. No network traffic happens at construction unless ID-token
// verification is configured, which fetches the provider JWKS eagerly.
func NewCredentialManager(info ServiceInformation, opts ...Option) (*CredentialManager, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	scopes := info.normalizedScopes()
	info.Scopes = scopes

	m := &CredentialManager{
		info:       info,
		scopes:     scopes,
		scopeParam: scope.Join(scopes),
		timeout:    defaultTimeout,
		margin:     defaultExpiryMargin,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.client == nil {
		m.client = m.buildHTTPClient()
	}

	if m.oidcJWKSURL != "" {
		verifier, err := oidc.NewVerifier(m.oidcJWKSURL, m.oidcIssuer, m.info.ClientID, m.client, 0, m.logger)
		if err != nil {
			return nil, fmt.Errorf("oauth2client: failed to configure ID token verification: %w", err)
		}
		m.verifier = verifier
	}

	return m, nil
}

// Close releases resources held by the manager: a pending authorization
// process and the background JWKS refresh, when configured.
func (m *CredentialManager) Close() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if pending != nil {
		pending.listener.Stop()
	}
	if m.verifier != nil {
		m.verifier.Close()
	}
}

// CurrentToken returns the stored token and whether one is present. Callers
// that persist credentials read them here and later seed a new manager via
// InitWithToken.
func (m *CredentialManager) CurrentToken() (Token, bool) {
	return m.store.current()
}

// InitWithClientCredentials performs the client credentials grant
// (RFC 6749 §4.4) and stores the resulting token.
func (m *CredentialManager) InitWithClientCredentials(ctx context.Context) error {
	if strings.TrimSpace(m.info.ClientSecret) == "" {
		return &ConfigurationError{Reason: "client secret is required for the client credentials grant"}
	}

	params := url.Values{}
	params.Set("grant_type", "client_credentials")
	if m.scopeParam != "" {
		params.Set("scope", m.scopeParam)
	}

	tok, err := m.exchange(ctx, params)
	if err != nil {
		return err
	}
	return m.storeToken(tok)
}

// InitWithUserCredentials performs the resource owner password grant
// (RFC 6749 §4.3) and stores the resulting token. The returned error
// matches ErrInvalidCredentials when the server rejects the credentials.
func (m *CredentialManager) InitWithUserCredentials(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return &ConfigurationError{Reason: "username and password are required for the password grant"}
	}

	params := url.Values{}
	params.Set("grant_type", "password")
	params.Set("username", username)
	params.Set("password", password)
	if m.scopeParam != "" {
		params.Set("scope", m.scopeParam)
	}

	tok, err := m.exchange(ctx, params)
	if err != nil {
		return err
	}
	return m.storeToken(tok)
}

// InitWithAuthorizeCode exchanges an authorization code (RFC 6749 §4.1.3)
// obtained through the callback process, or externally, and stores the
// resulting token. The redirect URI must match the one used to obtain the
// code. When PKCE is enabled the verifier captured by the last completed
// authorization process is sent along and consumed.
func (m *CredentialManager) InitWithAuthorizeCode(ctx context.Context, redirectURI, code string) error {
	if code == "" {
		return &ConfigurationError{Reason: "authorization code is required"}
	}

	params := url.Values{}
	params.Set("grant_type", "authorization_code")
	params.Set("code", code)
	params.Set("redirect_uri", redirectURI)
	if m.scopeParam != "" {
		params.Set("scope", m.scopeParam)
	}

	m.mu.Lock()
	verifier := m.pkceVerifier
	m.pkceVerifier = ""
	m.mu.Unlock()
	if verifier != "" {
		params.Set("code_verifier", verifier)
	}

	tok, err := m.exchange(ctx, params)
	if err != nil {
		return err
	}
	return m.storeToken(tok)
}

// InitWithToken seeds the store directly with a caller-supplied token. No
// exchange is performed; an empty expiry means the token is treated as
// valid until a 401 is observed.
func (m *CredentialManager) InitWithToken(tok Token) error {
	if tok.AccessToken == "" {
		return &ConfigurationError{Reason: "access token is required"}
	}
	m.store.replace(tok)
	return nil
}

// InitWithRefreshToken exchanges a previously persisted refresh token
// (RFC 6749 §6) and stores the resulting token. When the response omits a
// new refresh token the supplied one is retained, so the caller can keep
// refreshing.
func (m *CredentialManager) InitWithRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return &ConfigurationError{Reason: "refresh token is required"}
	}

	tok, err := m.exchange(ctx, m.refreshParams(refreshToken))
	if err != nil {
		return err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return m.storeToken(tok)
}

// refreshParams builds the refresh_token grant body.
func (m *CredentialManager) refreshParams(refreshToken string) url.Values {
	params := url.Values{}
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", refreshToken)
	if m.scopeParam != "" {
		params.Set("scope", m.scopeParam)
	}
	return params
}

// exchange performs one token-endpoint POST (form-encoded body, HTTP Basic
// client authentication) and parses the response.
func (m *CredentialManager) exchange(ctx context.Context, params url.Values) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.info.TokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("oauth2client: failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(m.info.ClientID, m.info.ClientSecret)

	resp, err := m.httpClient(ctx).Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("oauth2client: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("oauth2client: failed to read token response: %w", err)
	}

	tok, err := parseTokenResponse(time.Now(), resp.StatusCode, body)
	if err != nil {
		return Token{}, err
	}

	if tok.Scope != "" {
		if missing := scope.Missing(m.scopes, scope.Parse(tok.Scope)); len(missing) > 0 && m.logger != nil {
			m.logger.Printf("oauth2client: server granted narrower scope than requested, missing %v", missing)
		}
	}
	if m.logger != nil {
		if tok.Expiry.IsZero() {
			m.logger.Printf("oauth2client: fetched new token with no expiry")
		} else {
			m.logger.Printf("oauth2client: fetched new token, expires at %s", tok.Expiry.Format(time.RFC3339))
		}
	}

	return tok, nil
}

// storeToken verifies the ID token when verification is configured, then
// replaces the store. A failed verification leaves the store untouched.
func (m *CredentialManager) storeToken(tok Token) error {
	if m.verifier != nil && tok.IDToken != "" {
		if _, err := m.verifier.Verify(tok.IDToken); err != nil {
			return fmt.Errorf("oauth2client: ID token rejected: %w", err)
		}
	}
	m.store.replace(tok)
	return nil
}

// httpClient returns the client for a token-endpoint call. A client stored
// under the oauth2.HTTPClient context key overrides the configured one for
// that call, matching the x/oauth2 convention.
func (m *CredentialManager) httpClient(ctx context.Context) *http.Client {
	if client, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && client != nil {
		return client
	}
	return m.client
}

// buildHTTPClient constructs the manager's own transport from the
// configured proxy map and TLS settings.
func (m *CredentialManager) buildHTTPClient() *http.Client {
	transport := &http.Transport{}

	if len(m.proxies) > 0 {
		proxies := m.proxies
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			if proxyURL, ok := proxies[req.URL.Scheme]; ok {
				return proxyURL, nil
			}
			return nil, nil
		}
	}

	if m.info.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   m.timeout,
	}
}
