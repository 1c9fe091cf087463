package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parceltoken/internal/models"

	"github.com/redis/go-redis/v9"
)

// CredentialCache caches credential records by id. Validation reads go
// through it; any usage, revocation or renewal invalidates the entry.
type CredentialCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCredentialCache wraps a redis client with the given entry TTL.
func NewCredentialCache(client *redis.Client, ttl time.Duration) *CredentialCache {
	return &CredentialCache{client: client, ttl: ttl}
}

func credentialKey(id string) string {
	return fmt.Sprintf("credential:%s", id)
}

func (c *CredentialCache) Get(ctx context.Context, id string) (*models.Credential, error) {
	val, err := c.client.Get(ctx, credentialKey(id)).Result()
	if err != nil {
		return nil, err
	}
	var credential models.Credential
	if err := json.Unmarshal([]byte(val), &credential); err != nil {
		return nil, err
	}
	return &credential, nil
}

func (c *CredentialCache) Set(ctx context.Context, credential *models.Credential) error {
	data, err := json.Marshal(credential)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, credentialKey(credential.ID), data, c.ttl).Err()
}

func (c *CredentialCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, credentialKey(id)).Err()
}

// HealthCheck pings Redis.
func (c *CredentialCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *CredentialCache) Close() error {
	return c.client.Close()
}
