package ports

import (
	"context"
	"time"

	"github.com/floralens/identify/internal/domain/model"
)

// LockManager guards identification work per fingerprint and options so
// that concurrent requests for the same image compute at most once.
// Tokens are opaque and fence releases: only the holder that acquired a
// lock may release or renew it.
type LockManager interface {
	// Acquire attempts to take the lock. It returns the holder token and
	// whether the lock was acquired; acquired == false means another
	// holder owns it.
	Acquire(ctx context.Context, fingerprint string, opts model.IdentificationOptions, ttl time.Duration) (token string, acquired bool, err error)

	// Release frees the lock if token still holds it. Returns false when
	// the lock expired or was taken over by another holder.
	Release(ctx context.Context, fingerprint string, opts model.IdentificationOptions, token string) (bool, error)

	// Renew extends the lock TTL if token still holds it.
	Renew(ctx context.Context, fingerprint string, opts model.IdentificationOptions, token string, ttl time.Duration) (bool, error)
}
