package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestKeyPair holds an RSA key pair for ID token signing in tests.
type TestKeyPair struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// GenerateTestKeyPair generates a new RSA key pair for testing.
func GenerateTestKeyPair(tb testing.TB) *TestKeyPair {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate RSA key pair: %v", err)
	}

	return &TestKeyPair{
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}
}

// CreateJWKSServer creates a mock JWKS endpoint serving the given RSA public key.
func CreateJWKSServer(tb testing.TB, publicKey *rsa.PublicKey) *httptest.Server {
	tb.Helper()

	nBytes := publicKey.N.Bytes()
	eBytes := big.NewInt(int64(publicKey.E)).Bytes()

	jwks := map[string]interface{}{
		"keys": []map[string]interface{}{
			{
				"kty": "RSA",
				"kid": "test-key-1",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(nBytes),
				"e":   base64.RawURLEncoding.EncodeToString(eBytes),
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jwks); err != nil {
			tb.Fatalf("failed to encode JWKS: %v", err)
		}
	}))

	return server
}

// CreateFailingJWKSServer creates a JWKS endpoint that always returns the
// given status code and body.
func CreateFailingJWKSServer(tb testing.TB, statusCode int, body string) *httptest.Server {
	tb.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(body)) // Error intentionally ignored in test helper
	}))

	return server
}

// IDTokenSetup contains all components needed for ID token verification tests.
type IDTokenSetup struct {
	KeyPair    *TestKeyPair
	JWKSServer *httptest.Server
	Issuer     string
	ClientID   string
}

// NewIDTokenSetup creates a complete test setup with a JWKS server and key pair.
func NewIDTokenSetup(tb testing.TB) *IDTokenSetup {
	tb.Helper()

	keyPair := GenerateTestKeyPair(tb)
	jwksServer := CreateJWKSServer(tb, keyPair.PublicKey)

	tb.Cleanup(func() {
		jwksServer.Close()
	})

	return &IDTokenSetup{
		KeyPair:    keyPair,
		JWKSServer: jwksServer,
		Issuer:     "https://auth.example.com",
		ClientID:   "my-client",
	}
}

// SignedIDToken builds and signs an ID token with default valid claims for
// the setup's issuer and client.
func (s *IDTokenSetup) SignedIDToken(tb testing.TB) string {
	tb.Helper()

	return NewIDTokenClaims(s.Issuer, s.ClientID, "user-123").
		SignToken(tb, s.KeyPair.PrivateKey)
}

// IDTokenClaims provides a builder pattern for creating test ID token claims.
type IDTokenClaims struct {
	claims jwt.MapClaims
}

// NewIDTokenClaims creates a new IDTokenClaims builder with default valid claims.
func NewIDTokenClaims(issuer, clientID, subject string) *IDTokenClaims {
	return &IDTokenClaims{
		claims: jwt.MapClaims{
			"iss": issuer,
			"aud": []string{clientID},
			"sub": subject,
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Add(-time.Minute).Unix(),
		},
	}
}

// WithExpiry sets a custom expiry time.
func (c *IDTokenClaims) WithExpiry(exp time.Time) *IDTokenClaims {
	c.claims["exp"] = exp.Unix()
	return c
}

// WithIssuedAt sets a custom issued at time.
func (c *IDTokenClaims) WithIssuedAt(iat time.Time) *IDTokenClaims {
	c.claims["iat"] = iat.Unix()
	return c
}

// WithEmail sets the email claim.
func (c *IDTokenClaims) WithEmail(email string) *IDTokenClaims {
	c.claims["email"] = email
	return c
}

// WithIssuer overrides the issuer.
func (c *IDTokenClaims) WithIssuer(issuer string) *IDTokenClaims {
	c.claims["iss"] = issuer
	return c
}

// WithAudience overrides the audience.
func (c *IDTokenClaims) WithAudience(audience []string) *IDTokenClaims {
	c.claims["aud"] = audience
	return c
}

// WithSubject overrides the subject.
func (c *IDTokenClaims) WithSubject(subject string) *IDTokenClaims {
	c.claims["sub"] = subject
	return c
}

// WithoutClaim removes a specific claim.
func (c *IDTokenClaims) WithoutClaim(key string) *IDTokenClaims {
	delete(c.claims, key)
	return c
}

// WithCustomClaim adds a custom claim.
func (c *IDTokenClaims) WithCustomClaim(key string, value interface{}) *IDTokenClaims {
	c.claims[key] = value
	return c
}

// SignToken signs the claims with the given private key and returns the token string.
func (c *IDTokenClaims) SignToken(tb testing.TB, privateKey *rsa.PrivateKey) string {
	tb.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c.claims)
	token.Header["kid"] = "test-key-1"

	tokenString, err := token.SignedString(privateKey)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}

	return tokenString
}
