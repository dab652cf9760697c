package jwtutil

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", time.Minute, 42, "alice", "admin")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Role != "admin" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", time.Minute, 1, "bob", "user")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := ParseToken("other-secret", token); err == nil {
		t.Fatalf("expected parse failure with wrong secret")
	}
}

func TestParseExpiredToken(t *testing.T) {
	token, err := GenerateToken("secret", -time.Minute, 1, "bob", "user")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Fatalf("expected parse failure for expired token")
	}
}
