package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blocklist remembers revoked token ids until the tokens would have expired
// anyway. Entries live in Redis, so every API instance sees them.
type Blocklist struct {
	client *redis.Client
	prefix string
}

func NewBlocklist(client *redis.Client) *Blocklist {
	return &Blocklist{
		client: client,
		prefix: "revoked:",
	}
}

func (b *Blocklist) key(tokenID string) string {
	return b.prefix + tokenID
}

// Revoke blocks tokenID until expiresAt. Already expired tokens are ignored.
func (b *Blocklist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (b *Blocklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}
