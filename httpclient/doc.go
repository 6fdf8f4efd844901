// Package httpclient offers HTTP client construction helpers with OAuth2 authentication and TLS/mTLS options.
//
// It provides a fluent Builder that can create an http.Client with automatic Bearer token injection using
// oauth2client.CredentialManager, configurable TLS (custom CA, mTLS, insecure for tests), per-scheme proxies,
// timeouts, base transports, and redirect handling. OAuth2Transport can wrap any RoundTripper.
//
// # Features
//
//   - Fluent builder for http.Client with optional OAuth2 token injection
//   - One-call client credentials bootstrap via WithClientCredentials
//   - TLS 1.2+ by default, with custom CA/mTLS and optional InsecureSkipVerify
//   - Per-scheme proxy routing, custom timeouts, base transport override, and redirect disabling
//   - Reusable OAuth2Transport for manual composition
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    WithClientCredentials(ctx, oauth2client.ServiceInformation{
//	        TokenURL:     "https://auth.example.com/oauth/token",
//	        ClientID:     "client-id",
//	        ClientSecret: "client-secret",
//	        Scopes:       []string{"openid", "profile"},
//	    }).
//	    WithTLS("/path/to/ca.crt", "", "").
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get("https://api.example.com/data")
//
// # Manual Transport Wrapping
//
//	transport := httpclient.NewOAuth2Transport(manager, nil)
//	client := &http.Client{Transport: transport}
//
// All components are safe for concurrent use.
package httpclient
