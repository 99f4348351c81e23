package auth

import (
	"errors"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := CheckPassword("correct horse battery", hash); err != nil {
		t.Fatalf("CheckPassword with right password: %v", err)
	}
	if err := CheckPassword("wrong password!", hash); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestHashPasswordRejectsShort(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	now := time.Now()

	token, err := svc.Issue("user-1", "admin", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenExpired(t *testing.T) {
	svc := NewTokenService("test-secret", time.Minute)
	token, err := svc.Issue("user-1", "user", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a", time.Hour).Issue("user-1", "user", time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := NewTokenService("secret-b", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
