package auth_test

import (
	"testing"
	"time"

	"github.com/arvend/tokengate/adapters/auth"
	"github.com/arvend/tokengate/domain/access"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := auth.NewTokenService("test-secret", time.Hour)

	id := access.Identity{UserID: "u-123", Email: "user@example.com"}
	token, expiresAt, err := svc.GenerateToken(id)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("expiresAt should be in the future")
	}

	got, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if got != id {
		t.Errorf("identity = %+v, want %+v", got, id)
	}
}

func TestTokenService_WrongSecret(t *testing.T) {
	minter := auth.NewTokenService("secret-a", time.Hour)
	verifier := auth.NewTokenService("secret-b", time.Hour)

	token, _, err := minter.GenerateToken(access.Identity{UserID: "u-1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := verifier.VerifyToken(token); err == nil {
		t.Error("expected verification to fail with wrong secret")
	}
}

func TestTokenService_Expired(t *testing.T) {
	svc := auth.NewTokenService("test-secret", -time.Hour)

	token, _, err := svc.GenerateToken(access.Identity{UserID: "u-1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := svc.VerifyToken(token); err == nil {
		t.Error("expected verification to fail for expired token")
	}
}

func TestTokenService_Garbage(t *testing.T) {
	svc := auth.NewTokenService("test-secret", time.Hour)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.VerifyToken(tok); err == nil {
			t.Errorf("VerifyToken(%q) should fail", tok)
		}
	}
}

func TestTokenService_RandomSecretRejectsEverything(t *testing.T) {
	// Empty secret means a random one: tokens from any other service
	// must not verify.
	minter := auth.NewTokenService("known", time.Hour)
	verifier := auth.NewTokenService("", time.Hour)

	token, _, _ := minter.GenerateToken(access.Identity{UserID: "u-1"})
	if _, err := verifier.VerifyToken(token); err == nil {
		t.Error("random-secret service should reject foreign tokens")
	}
}
