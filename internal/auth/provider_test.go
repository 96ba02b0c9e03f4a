package auth

import (
	"context"
	"testing"
	"time"

	"attendance-cloud/internal/model"
)

func TestLocalProvider_AnonymousSignIn(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	p := NewLocalProvider(cfg)

	var seen []*model.Session
	p.OnAuthStateChanged(func(s *model.Session) { seen = append(seen, s) })

	sess, err := p.SignInAnonymously(context.Background())
	if err != nil {
		t.Fatalf("SignInAnonymously: %v", err)
	}
	if !sess.Anonymous || sess.UID == "" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if len(seen) != 1 || seen[0].UID != sess.UID {
		t.Fatalf("expected one auth-state notification, got %v", seen)
	}
	if cur := p.CurrentUser(); cur == nil || cur.UID != sess.UID {
		t.Fatalf("expected current user %q, got %+v", sess.UID, cur)
	}

	claims, err := VerifySessionToken(sess.Token, cfg)
	if err != nil {
		t.Fatalf("VerifySessionToken: %v", err)
	}
	if claims.UserID != sess.UID || !claims.Anonymous {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLocalProvider_CustomToken(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	p := NewLocalProvider(cfg)

	custom, err := CreateCustomToken("staff-1", cfg)
	if err != nil {
		t.Fatalf("CreateCustomToken: %v", err)
	}
	sess, err := p.SignInWithCustomToken(context.Background(), custom)
	if err != nil {
		t.Fatalf("SignInWithCustomToken: %v", err)
	}
	if sess.UID != "staff-1" || sess.Anonymous {
		t.Fatalf("unexpected session %+v", sess)
	}

	if _, err := p.SignInWithCustomToken(context.Background(), "garbage"); err == nil {
		t.Fatalf("expected error for garbage token")
	}
	if cur := p.CurrentUser(); cur == nil || cur.UID != "staff-1" {
		t.Fatalf("failed sign-in must keep the previous session, got %+v", cur)
	}
}

func TestStateNotifier_LateListenerSeesCurrentSession(t *testing.T) {
	var n StateNotifier
	n.SetSession(&model.Session{UID: "u1"})

	var got string
	n.OnAuthStateChanged(func(s *model.Session) { got = s.UID })
	if got != "u1" {
		t.Fatalf("expected immediate callback with u1, got %q", got)
	}

	var signedOut bool
	n.OnAuthStateChanged(func(s *model.Session) { signedOut = s == nil })
	n.SetSession(nil)
	if !signedOut || n.CurrentUser() != nil {
		t.Fatalf("expected sign-out to be broadcast")
	}
}
