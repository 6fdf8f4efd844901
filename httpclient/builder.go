package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Cyb3r-Jak3/OAuth2Client/oauth2client"
)

// Builder provides a fluent interface for constructing HTTP clients
// with optional OAuth2 authentication, TLS/mTLS support, and proxy routing.
type Builder struct {
	// OAuth2 configuration
	manager         *oauth2client.CredentialManager
	credentialsCtx  context.Context
	credentialsInfo oauth2client.ServiceInformation
	credentialsOpts []oauth2client.Option
	useCredentials  bool

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	proxies         map[string]*url.URL
	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         30 * time.Second, // Default 30s timeout
		followRedirects: true,
	}
}

// WithCredentialManager sets the credential manager for automatic authentication.
// The manager must have completed an init flow before the built client is used;
// the transport only reads tokens, it never starts a flow on its own.
func (b *Builder) WithCredentialManager(manager *oauth2client.CredentialManager) *Builder {
	b.manager = manager
	b.useCredentials = false
	return b
}

// WithClientCredentials enables OAuth2 client credentials authentication.
// Build constructs a credential manager from info and opts and performs the
// initial token exchange, so Build fails if the credentials are rejected.
//
// Parameters:
//   - ctx: Context for the initial token exchange
//   - info: OAuth2 service configuration (token URL, client ID, client secret, scopes)
//   - opts: Optional credential manager options such as oauth2client.WithLogger
//
// Use WithCredentialManager instead when the caller needs the manager handle,
// for example to revoke tokens on shutdown.
func (b *Builder) WithClientCredentials(ctx context.Context, info oauth2client.ServiceInformation, opts ...oauth2client.Option) *Builder {
	b.credentialsCtx = ctx
	b.credentialsInfo = info
	b.credentialsOpts = opts
	b.useCredentials = true
	b.manager = nil
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
// This should only be used for testing or development purposes.
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithProxies routes outgoing requests through a proxy per URL scheme
// ("http", "https"). Schemes without an entry connect directly.
func (b *Builder) WithProxies(proxies map[string]*url.URL) *Builder {
	b.proxies = proxies
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is 30 seconds if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithBaseTransport sets a custom base transport.
// This is useful for adding custom middleware or using a custom connection pool.
// TLS and proxy options are ignored when a base transport is provided.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
// By default, the client follows up to 10 redirects.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the HTTP client with the configured options.
//
// When WithClientCredentials was used, Build also performs the initial token
// exchange and returns the exchange error verbatim, so callers can match it
// with errors.Is against oauth2client.ErrInvalidCredentials.
func (b *Builder) Build() (*http.Client, error) {
	// Build base transport
	transport := b.baseTransport
	if transport == nil {
		if httpTransport, ok := http.DefaultTransport.(*http.Transport); ok {
			httpTransport = httpTransport.Clone()

			if b.tlsEnabled || b.tlsSkipVerify {
				tlsConfig, err := b.buildTLSConfig()
				if err != nil {
					return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
				}
				httpTransport.TLSClientConfig = tlsConfig
			} else {
				// Set secure TLS defaults even when TLS is not explicitly configured
				httpTransport.TLSClientConfig = &tls.Config{
					MinVersion: tls.VersionTLS12,
				}
			}

			if len(b.proxies) > 0 {
				httpTransport.Proxy = b.proxyFunc()
			}

			transport = httpTransport
		} else {
			// Fallback to whatever default transport is configured (e.g., a test stub)
			transport = http.DefaultTransport
			if b.tlsEnabled || b.tlsSkipVerify || len(b.proxies) > 0 {
				if base, ok := transport.(*http.Transport); ok {
					cloned := base.Clone()
					if b.tlsEnabled || b.tlsSkipVerify {
						tlsConfig, err := b.buildTLSConfig()
						if err != nil {
							return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
						}
						cloned.TLSClientConfig = tlsConfig
					}
					if len(b.proxies) > 0 {
						cloned.Proxy = b.proxyFunc()
					}
					transport = cloned
				}
			}
		}
	}

	// Resolve the credential manager, constructing one for the client
	// credentials grant if requested
	manager := b.manager
	if b.useCredentials {
		m, err := oauth2client.NewCredentialManager(b.credentialsInfo, b.credentialsOpts...)
		if err != nil {
			return nil, fmt.Errorf("httpclient: credential manager failed: %w", err)
		}
		if err := m.InitWithClientCredentials(b.credentialsCtx); err != nil {
			return nil, err
		}
		manager = m
	}

	// Wrap with OAuth2 transport if a manager is set
	if manager != nil {
		transport = NewOAuth2Transport(manager, transport)
	}

	// Build HTTP client
	client := &http.Client{
		Transport: transport,
		Timeout:   b.timeout,
	}

	// Configure redirect policy
	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// proxyFunc builds the per-scheme proxy selector for the transport.
func (b *Builder) proxyFunc() func(*http.Request) (*url.URL, error) {
	proxies := b.proxies
	return func(req *http.Request) (*url.URL, error) {
		if proxyURL, ok := proxies[req.URL.Scheme]; ok {
			return proxyURL, nil
		}
		return nil, nil
	}
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	// Load CA certificate for server verification
	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	// Load client certificate for mTLS (if both cert and key are provided)
	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}

// NewHTTPClient is a convenience function that creates a simple HTTP client
// that authenticates every request with tokens from the credential manager.
// For more configuration options, use Builder instead.
//
// Example:
//
//	manager, err := oauth2client.NewCredentialManager(info)
//	// ... run an init flow ...
//	client := httpclient.NewHTTPClient(manager)
//	resp, err := client.Get("https://api.example.com/data")
func NewHTTPClient(manager *oauth2client.CredentialManager) *http.Client {
	transport := NewOAuth2Transport(manager, nil)
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}
