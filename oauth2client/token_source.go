package oauth2client

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts the manager to golang.org/x/oauth2.TokenSource so it
// plugs into APIs built on that package. Tokens returned by the source go
// through the same expiry check and single-flight refresh as dispatched
// requests. The context is used for refresh exchanges triggered by Token.
func (m *CredentialManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, manager: m}
}

type managerTokenSource struct {
	ctx     context.Context
	manager *CredentialManager
}

// Token returns the current token, refreshing it first when needed.
func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.manager.token(s.ctx)
	if err != nil {
		return nil, err
	}
	return tok.OAuth2Token(), nil
}
