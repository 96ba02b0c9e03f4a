package auth

import (
	"context"
	"fmt"

	"attendance-cloud/internal/model"
	"github.com/google/uuid"
)

// LocalProvider signs in without a network hop, using the shared token secret.
// It backs the identity endpoints and clients that talk to a backend directly.
type LocalProvider struct {
	StateNotifier
	cfg TokenConfig
}

func NewLocalProvider(cfg TokenConfig) *LocalProvider {
	return &LocalProvider{cfg: cfg}
}

func (p *LocalProvider) SignInAnonymously(ctx context.Context) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := IssueAnonymousSession(p.cfg)
	if err != nil {
		return nil, err
	}
	p.SetSession(sess)
	return sess, nil
}

func (p *LocalProvider) SignInWithCustomToken(ctx context.Context, token string) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := ExchangeCustomToken(token, p.cfg)
	if err != nil {
		return nil, err
	}
	p.SetSession(sess)
	return sess, nil
}

func (p *LocalProvider) SignOut() {
	p.SetSession(nil)
}

// IssueAnonymousSession creates a fresh anonymous identity.
func IssueAnonymousSession(cfg TokenConfig) (*model.Session, error) {
	uid := uuid.NewString()
	token, err := CreateSessionToken(uid, true, cfg)
	if err != nil {
		return nil, err
	}
	return &model.Session{UID: uid, Anonymous: true, Token: token}, nil
}

// ExchangeCustomToken verifies a custom sign-in token and returns the session it grants.
func ExchangeCustomToken(customToken string, cfg TokenConfig) (*model.Session, error) {
	claims, err := VerifyCustomToken(customToken, cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid custom token: %w", err)
	}
	token, err := CreateSessionToken(claims.UserID, false, cfg)
	if err != nil {
		return nil, err
	}
	return &model.Session{UID: claims.UserID, Token: token}, nil
}
