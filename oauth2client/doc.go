// Package oauth2client obtains, stores, and refreshes OAuth2 tokens on
// behalf of an application and attaches them to outgoing requests.
//
// A CredentialManager drives one of four grant flows against an
// authorization provider: authorization code (with a local callback
// listener capturing the redirect), resource owner password, client
// credentials, and reuse of a previously persisted token. Tokens are held
// in memory only; expiry is tracked from the issuance instant and an
// expired token is refreshed transparently before dispatch.
//
// # Features
//
//   - Four grant flows behind one manager: InitWithClientCredentials,
//     InitWithUserCredentials, InitWithAuthorizeCode, InitWithToken (plus
//     InitWithRefreshToken for persisted refresh tokens)
//   - Local single-request callback listener for the authorization code
//     flow, with an explicit start / wait-and-terminate API and guaranteed
//     port release on every exit path
//   - Automatic single-flight refresh: concurrent callers observing an
//     expired token share one exchange
//   - Token-aware dispatch (Do, Get, Post, Put, Patch, Delete) plus gRPC
//     client interceptors and an x/oauth2 TokenSource adapter
//   - Optional PKCE (S256), ID-token verification, RFC 7009 revocation,
//     and RFC 7662 introspection
//   - Optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	manager, err := oauth2client.NewCredentialManager(oauth2client.ServiceInformation{
//	    TokenURL:     "https://auth.example.com/oauth/v2/token",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    Scopes:       []string{"openid", "profile"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := manager.InitWithClientCredentials(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := manager.Get(ctx, "https://api.example.com/users")
//
// For the authorization code flow, direct the end user to the returned URL
// and wait for the redirect:
//
//	authorizeURL, err := manager.InitAuthorizeCodeProcess("http://localhost:8080/callback", "")
//	// open authorizeURL in the user's browser
//	code, err := manager.WaitAndTerminateAuthorizeCodeProcess(2 * time.Minute)
//	err = manager.InitWithAuthorizeCode(ctx, "http://localhost:8080/callback", code)
//
// # Notes
//
//   - A CredentialManager is safe for concurrent use; at most one
//     authorization code process may be pending per manager.
//   - The manager never persists tokens. Read CurrentToken to persist
//     credentials and seed a later manager via InitWithToken.
//   - Every failure surfaces as a distinct error kind so callers can decide
//     whether to re-run a flow, surface to the end user, or abort.
package oauth2client
