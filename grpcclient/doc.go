// Package grpcclient provides a fluent builder for secure gRPC client connections with optional
// OAuth2 client-credentials authentication.
//
// It defaults to TLS 1.2+ using system roots to avoid accidental plaintext connections. Optional
// methods let you add OAuth2 interceptors backed by an oauth2client.CredentialManager, custom CA
// or mTLS credentials, and extra dial options.
//
// # Features
//
//   - Fluent builder for gRPC clients
//   - OAuth2 client-credentials bootstrap via WithClientCredentials
//   - Interceptors from an existing CredentialManager via WithCredentialManager
//   - Secure-by-default TLS; optional custom CA and mTLS
//   - Additional dial options via WithDialOptions
//
// # Quick Start
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("server.example.com:9090").
//	    WithClientCredentials(oauth2client.ServiceInformation{
//	        TokenURL:     "https://auth.example.com/oauth/token",
//	        ClientID:     "client-id",
//	        ClientSecret: "client-secret",
//	        Scopes:       []string{"openid", "profile"},
//	    }).
//	    WithTLS("/path/to/ca.crt", "", "", "server.example.com").
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	client := pb.NewYourServiceClient(conn)
//
// WithClientCredentials performs the token exchange inside Build, so a bad
// client secret surfaces there instead of on the first call.
//
// # TLS Behavior
//
// TLS is enabled by default with system CAs and TLS 1.2 minimum. WithTLS allows supplying a custom
// root CA and optional client cert/key for mTLS; both cert and key must be provided together.
package grpcclient
