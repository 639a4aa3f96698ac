package auth

import (
	"testing"
	"time"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Minute)

	token, err := svc.Generate("user-1", RoleAdmin)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", claims.Role, RoleAdmin)
	}
}

func TestTokenService_Validate_Rejections(t *testing.T) {
	svc := NewTokenService("test-secret", time.Minute)

	t.Run("garbage token", func(t *testing.T) {
		if _, err := svc.Validate("not.a.token"); err == nil {
			t.Error("expected error for malformed token")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenService("other-secret", time.Minute)
		token, err := other.Generate("user-1", RoleUser)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Validate(token); err == nil {
			t.Error("expected error for token signed with another secret")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewTokenService("test-secret", -time.Minute)
		token, err := expired.Generate("user-1", RoleUser)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Validate(token); err == nil {
			t.Error("expected error for expired token")
		}
	})

	t.Run("missing user id", func(t *testing.T) {
		token, err := svc.Generate("", RoleUser)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Validate(token); err == nil {
			t.Error("expected error for token without user id")
		}
	})
}
