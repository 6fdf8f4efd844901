// Package testutil provides ID token test helpers for internal packages.
//
// It generates RSA key pairs, signs OpenID Connect ID tokens with a claims
// builder, and serves the matching public keys from mock JWKS endpoints.
//
// # Utilities
//
//   - GenerateTestKeyPair: create an RSA key pair for signing
//   - CreateJWKSServer / CreateFailingJWKSServer: serve JWKS documents over httptest
//   - NewIDTokenSetup: bundle key pair, JWKS server, issuer and client ID
//   - IDTokenClaims: build and sign tokens with customized claims
//
// These helpers are for tests only.
package testutil
