package grpcclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/Cyb3r-Jak3/OAuth2Client/oauth2client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Builder provides a fluent interface for constructing gRPC client connections
// with optional OAuth2 authentication and TLS/mTLS support.
type Builder struct {
	address string

	// OAuth2 configuration
	manager         *oauth2client.CredentialManager
	credentialsInfo oauth2client.ServiceInformation
	credentialsOpts []oauth2client.Option
	useCredentials  bool

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsServerName string

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "server.example.com:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithCredentialManager attaches an existing credential manager whose
// tokens authenticate every call on the connection. The manager must have
// completed an init flow before the first call goes out.
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
//   - info: OAuth2 service configuration (token URL, client ID, client secret, scopes)
//   - opts: Optional credential manager options such as oauth2client.WithLogger
func (b *Builder) WithClientCredentials(info oauth2client.ServiceInformation, opts ...oauth2client.Option) *Builder {
	b.credentialsInfo = info
	b.credentialsOpts = opts
	b.useCredentials = true
	b.manager = nil
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (required)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	b.tlsServerName = serverName
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after OAuth2 and TLS options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build constructs the gRPC client connection with the configured options.
//
// When WithClientCredentials was used, Build also performs the initial token
// exchange with ctx and returns the exchange error verbatim, so callers can
// match it with errors.Is against oauth2client.ErrInvalidCredentials.
func (b *Builder) Build(ctx context.Context) (*grpc.ClientConn, error) {
	if b.address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}

	var opts []grpc.DialOption

	// Resolve the credential manager, constructing one for the client
	// credentials grant if requested
	manager := b.manager
	if b.useCredentials {
		m, err := oauth2client.NewCredentialManager(b.credentialsInfo, b.credentialsOpts...)
		if err != nil {
			return nil, fmt.Errorf("grpcclient: credential manager failed: %w", err)
		}
		if err := m.InitWithClientCredentials(ctx); err != nil {
			return nil, err
		}
		manager = m
	}

	// Add OAuth2 interceptors if a manager is set
	if manager != nil {
		opts = append(opts,
			grpc.WithUnaryInterceptor(manager.UnaryClientInterceptor()),
			grpc.WithStreamInterceptor(manager.StreamClientInterceptor()),
		)
	}

	// Add TLS credentials if enabled
	if b.tlsEnabled {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		// Default to TLS with system roots to avoid accidental plaintext connections.
		// Set MinVersion to TLS 1.2 for secure defaults.
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	// Add custom dial options
	opts = append(opts, b.dialOpts...)

	// Create connection
	conn, err := grpc.NewClient(b.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}

// buildTLSConfig constructs the TLS configuration for the gRPC connection.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
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

	// Set server name override if provided
	if b.tlsServerName != "" {
		tlsConfig.ServerName = b.tlsServerName
	}

	return tlsConfig, nil
}
