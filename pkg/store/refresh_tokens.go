package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidRefreshToken indicates the token is unknown, expired, or was
// already rotated.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// RefreshTokenStore persists rotating refresh tokens.
type RefreshTokenStore interface {
	NewToken(userID string, ttl time.Duration) (string, error)
	RotateToken(token string, ttl time.Duration) (userID string, newToken string, err error)
	DeleteToken(token string) error
}

// MemoryRefreshTokenStore keeps refresh tokens in memory.
type MemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]refreshEntry // token hash -> entry
}

type refreshEntry struct {
	userID string
	expiry time.Time
}

// NewMemoryRefreshTokenStore constructs an in-memory refresh token store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{tokens: make(map[string]refreshEntry)}
}

// NewToken issues and stores a refresh token.
func (s *MemoryRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tokens[refreshTokenHash(token)] = refreshEntry{
		userID: userID,
		expiry: time.Now().UTC().Add(ttl),
	}
	s.mu.Unlock()
	return token, nil
}

// RotateToken invalidates the presented token and issues a replacement.
// A token can only be rotated once; a second use fails.
func (s *MemoryRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	hash := refreshTokenHash(token)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[hash]
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	delete(s.tokens, hash)
	if now.After(entry.expiry) {
		return "", "", ErrInvalidRefreshToken
	}

	newToken, err := generateRefreshToken()
	if err != nil {
		return "", "", err
	}
	s.tokens[refreshTokenHash(newToken)] = refreshEntry{
		userID: entry.userID,
		expiry: now.Add(ttl),
	}
	return entry.userID, newToken, nil
}

// DeleteToken revokes a refresh token.
func (s *MemoryRefreshTokenStore) DeleteToken(token string) error {
	s.mu.Lock()
	delete(s.tokens, refreshTokenHash(token))
	s.mu.Unlock()
	return nil
}

// RedisRefreshTokenStore stores refresh tokens in Redis with TTL-based expiry.
type RedisRefreshTokenStore struct {
	client *redis.Client
}

// NewRedisRefreshTokenStore builds a Redis-backed refresh token store.
func NewRedisRefreshTokenStore(client *redis.Client) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client}
}

// NewToken issues and stores a refresh token.
func (s *RedisRefreshTokenStore) NewToken(userID string, ttl time.Duration) (string, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, refreshRedisKey(refreshTokenHash(token)), userID, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// RotateToken invalidates the presented token and issues a replacement.
// GETDEL makes the swap atomic so a replayed token cannot rotate twice.
func (s *RedisRefreshTokenStore) RotateToken(token string, ttl time.Duration) (string, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	userID, err := s.client.GetDel(ctx, refreshRedisKey(refreshTokenHash(token))).Result()
	if err == redis.Nil {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", err
	}

	newToken, err := generateRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := s.client.Set(ctx, refreshRedisKey(refreshTokenHash(newToken)), userID, ttl).Err(); err != nil {
		return "", "", err
	}
	return userID, newToken, nil
}

// DeleteToken revokes a refresh token.
func (s *RedisRefreshTokenStore) DeleteToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, refreshRedisKey(refreshTokenHash(token))).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func refreshTokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func refreshRedisKey(tokenHash string) string {
	return fmt.Sprintf("refresh:token:%s", tokenHash)
}
