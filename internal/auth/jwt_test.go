package auth

import (
	"testing"
	"time"
)

func TestNewManagerAndTokenLifecycle(t *testing.T) {
	mgr, err := NewManager("test-secret", "issuer", time.Minute*30)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}

	token, expiresAt, err := mgr.GenerateToken("user-42", "service")
	if err != nil {
		t.Fatalf("unexpected error generating token: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if expiresAt.Before(time.Now()) {
		t.Fatal("expected future expiry time")
	}

	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("unexpected error parsing token: %v", err)
	}
	if claims.UserID != "user-42" {
		t.Fatalf("expected user id user-42, got %s", claims.UserID)
	}
	if claims.Role != "service" {
		t.Fatalf("expected role service, got %s", claims.Role)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("expected subject user-42, got %s", claims.Subject)
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("   ", "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateTokenRequiresUser(t *testing.T) {
	mgr, err := NewManager("test-secret", "", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}
	if _, _, err := mgr.GenerateToken("  ", ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	mgr, _ := NewManager("secret-a", "", time.Hour)
	other, _ := NewManager("secret-b", "", time.Hour)

	token, _, err := mgr.GenerateToken("user-1", "")
	if err != nil {
		t.Fatalf("unexpected error generating token: %v", err)
	}
	if _, err := other.ParseToken(token); err == nil {
		t.Fatal("expected error parsing token signed with a different secret")
	}
}
