package store

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestMemoryRefreshTokenRotate(t *testing.T) {
	s := NewMemoryRefreshTokenStore()

	token, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	userID, nextToken, err := s.RotateToken(token, time.Minute)
	if err != nil {
		t.Fatalf("rotate token: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected user id: %q", userID)
	}
	if nextToken == "" || nextToken == token {
		t.Fatal("expected rotated token")
	}

	// the old token was consumed by rotation
	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid token after rotation, got: %v", err)
	}

	if err := s.DeleteToken(nextToken); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if _, _, err := s.RotateToken(nextToken, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid token after delete, got: %v", err)
	}
}

func TestMemoryRefreshTokenExpiry(t *testing.T) {
	s := NewMemoryRefreshTokenStore()
	token, err := s.NewToken("user-1", -time.Second)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected expired token to be invalid, got: %v", err)
	}
}

func TestRedisRefreshTokenRotateAndDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewRedisRefreshTokenStore(client)

	token, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	userID, nextToken, err := s.RotateToken(token, time.Minute)
	if err != nil {
		t.Fatalf("rotate token: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected user id: %q", userID)
	}

	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected consumed token to be invalid, got: %v", err)
	}

	if err := s.DeleteToken(nextToken); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if _, _, err := s.RotateToken(nextToken, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid token after delete, got: %v", err)
	}
}

func TestRedisRefreshTokenExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewRedisRefreshTokenStore(client)

	token, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected expired token to be invalid, got: %v", err)
	}
}
