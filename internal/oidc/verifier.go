// Package oidc verifies OpenID Connect ID tokens issued to this client.
//
// An ID token arrives alongside the access token when the openid scope was
// requested. Verification checks the signature against the provider's JWKS
// and the standard claims: the issuer must match, the audience must contain
// this client's ID, and the token must not be expired.
package oidc

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Logger is the minimal logging interface used by this package.
type Logger interface {
	Printf(format string, args ...any)
}

// Claims carries the verified ID-token claims a client typically consumes.
type Claims struct {
	Subject  string
	Issuer   string
	Audience []string
	Expiry   time.Time
	IssuedAt time.Time
	Email    string
}

// Verifier checks ID tokens against the provider's JWKS. Keys are cached
// and refreshed in the background until Close is called.
type Verifier struct {
	jwks     *keyfunc.JWKS
	issuer   string
	clientID string
	logger   Logger
}

// NewVerifier fetches the JWKS at jwksURL and constructs a verifier.
//
// The issuer is compared against the iss claim; clientID must appear in the
// aud claim. A zero refreshInterval defaults to one hour. The HTTP client
// may be nil, in which case http.DefaultClient fetches the JWKS.
func NewVerifier(jwksURL, issuer, clientID string, httpClient *http.Client, refreshInterval time.Duration, logger Logger) (*Verifier, error) {
	if jwksURL == "" {
		return nil, errors.New("oidc: JWKS URL is required")
	}
	if issuer == "" {
		return nil, errors.New("oidc: issuer is required")
	}
	if clientID == "" {
		return nil, errors.New("oidc: client ID is required")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if refreshInterval == 0 {
		refreshInterval = time.Hour
	}

	options := keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			if logger != nil {
				logger.Printf("oidc: JWKS refresh error: %v", err)
			}
		},
		RefreshInterval:   refreshInterval,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
		Client:            httpClient,
	}

	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, fmt.Errorf("oidc: failed to initialize JWKS: %w", err)
	}

	return &Verifier{
		jwks:     jwks,
		issuer:   issuer,
		clientID: clientID,
		logger:   logger,
	}, nil
}

// Verify validates the ID token's signature and standard claims and
// returns the extracted claims.
func (v *Verifier) Verify(idToken string) (*Claims, error) {
	token, err := jwt.Parse(idToken, v.jwks.Keyfunc, jwt.WithValidMethods([]string{
		jwt.SigningMethodRS256.Name,
		jwt.SigningMethodRS384.Name,
		jwt.SigningMethodRS512.Name,
		jwt.SigningMethodES256.Name,
		jwt.SigningMethodES384.Name,
		jwt.SigningMethodES512.Name,
	}))
	if err != nil {
		return nil, fmt.Errorf("oidc: ID token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("oidc: ID token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("oidc: failed to extract ID token claims")
	}

	iss, err := claims.GetIssuer()
	if err != nil || iss != v.issuer {
		return nil, fmt.Errorf("oidc: invalid issuer: expected %s, got %s", v.issuer, iss)
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("oidc: invalid audience claim: %w", err)
	}
	if !contains(aud, v.clientID) {
		return nil, fmt.Errorf("oidc: ID token not issued for this client: %s not in %v", v.clientID, aud)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("oidc: invalid subject claim")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("oidc: invalid expiry claim")
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, errors.New("oidc: invalid issued at claim")
	}

	verified := &Claims{
		Subject:  sub,
		Issuer:   iss,
		Audience: aud,
		Expiry:   exp.Time,
		IssuedAt: iat.Time,
	}
	if email, ok := claims["email"].(string); ok {
		verified.Email = email
	}

	if v.logger != nil {
		v.logger.Printf("oidc: verified ID token for subject %s", sub)
	}

	return verified, nil
}

// Close stops the background JWKS refresh. Call it when the verifier is no
// longer needed.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func contains(values []string, value string) bool {
	for _, item := range values {
		if item == value {
			return true
		}
	}
	return false
}
