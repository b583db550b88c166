package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

// RedisStore keeps carts as JSON under a tenant-scoped key. Every save
// pushes the expiry out by ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, tenantID tenant.ID, cartID string) (Cart, error) {
	data, err := s.client.Get(ctx, cartKey(tenantID, cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(tenantID, cartID), nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("redis get cart: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("unmarshal cart: %w", err)
	}
	c.ID = cartID
	c.TenantID = tenantID
	if c.Items == nil {
		c.Items = []Line{}
	}
	return c, nil
}

func (s *RedisStore) Save(ctx context.Context, c Cart) error {
	if c.TenantID == "" {
		return tenant.ErrUnresolved
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(c.TenantID, c.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, tenantID tenant.ID, cartID string) error {
	if err := s.client.Del(ctx, cartKey(tenantID, cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}
	return nil
}

func cartKey(tenantID tenant.ID, cartID string) string {
	return fmt.Sprintf("cart:%s:%s", tenantID, cartID)
}
