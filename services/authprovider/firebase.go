// Package authprovider turns auth provider tokens into session provider states.
package authprovider

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core/session"
)

var ErrInvalidToken = errors.New("invalid provider token")

// TokenVerifier is implemented by *auth.Client.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

var _ TokenVerifier = (*auth.Client)(nil)

type Firebase struct {
	verifier TokenVerifier
}

func NewFirebase(verifier TokenVerifier) *Firebase {
	return &Firebase{verifier: verifier}
}

// State resolves the provider state reported by a client.
// An empty token means the client is signed out of the provider.
func (p *Firebase) State(ctx context.Context, idToken string) (session.ProviderState, error) {
	if idToken == "" {
		return session.ProviderState{}, nil
	}
	tok, err := p.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return session.ProviderState{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	email, _ := tok.Claims["email"].(string)
	return session.ProviderState{Principal: &session.Principal{UID: tok.UID, Email: email}}, nil
}
