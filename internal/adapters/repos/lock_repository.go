package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/floralens/identify/internal/domain/model"
	"github.com/floralens/identify/internal/infrastructure"
	"github.com/google/uuid"
)

const scopeLock = "lock"

// LockRepository implements the LockManager interface on top of KeyDB.
// Each lock value is a random token so release and renew are fenced:
// SET NX takes the lock, Lua compare-and-delete and compare-and-expire
// give it back or extend it only for the holder that owns it.
type LockRepository struct {
	client *infrastructure.KeydbClient
}

// NewLockRepository creates a new lock repository.
func NewLockRepository(client *infrastructure.KeydbClient) (*LockRepository, error) {
	return &LockRepository{
		client: client,
	}, nil
}

// Acquire attempts to take the lock for a fingerprint and options pair.
func (r *LockRepository) Acquire(ctx context.Context, fingerprint string, opts model.IdentificationOptions, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	acquired, err := r.client.SetNX(ctx, CacheKey(fingerprint, opts, scopeLock), token, ttl)
	if err != nil {
		return "", false, fmt.Errorf("acquiring identification lock: %w", err)
	}

	if !acquired {
		return "", false, nil
	}

	return token, true, nil
}

// Release frees the lock if token still holds it.
func (r *LockRepository) Release(ctx context.Context, fingerprint string, opts model.IdentificationOptions, token string) (bool, error) {
	released, err := r.client.CompareAndDelete(ctx, CacheKey(fingerprint, opts, scopeLock), token)
	if err != nil {
		return false, fmt.Errorf("releasing identification lock: %w", err)
	}

	return released, nil
}

// Renew extends the lock TTL if token still holds it.
func (r *LockRepository) Renew(ctx context.Context, fingerprint string, opts model.IdentificationOptions, token string, ttl time.Duration) (bool, error) {
	renewed, err := r.client.CompareAndExpire(ctx, CacheKey(fingerprint, opts, scopeLock), token, ttl)
	if err != nil {
		return false, fmt.Errorf("renewing identification lock: %w", err)
	}

	return renewed, nil
}
