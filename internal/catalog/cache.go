package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

// CachedRepository puts a Redis read-through cache in front of another
// Repository. Every key carries the tenant id and a per-tenant generation
// number; writes bump the generation so stale entries are never read again
// and simply age out.
type CachedRepository struct {
	next   Repository
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
	sfg    singleflight.Group
}

func NewCachedRepository(next Repository, client *redis.Client, ttl time.Duration, logger *log.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CachedRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedRepository) ListProducts(ctx context.Context, tenantID tenant.ID, filter ProductFilter) ([]Product, error) {
	return c.next.ListProducts(ctx, tenantID, filter)
}

func (c *CachedRepository) ListFabrics(ctx context.Context, tenantID tenant.ID, color string) ([]FabricVariant, error) {
	return c.next.ListFabrics(ctx, tenantID, color)
}

func (c *CachedRepository) GetProductBySlug(ctx context.Context, tenantID tenant.ID, slug string) (Product, error) {
	return readThrough(ctx, c, tenantID, "product:slug:"+slug, func(ctx context.Context) (Product, error) {
		return c.next.GetProductBySlug(ctx, tenantID, slug)
	})
}

func (c *CachedRepository) GetProductByID(ctx context.Context, tenantID tenant.ID, id string) (Product, error) {
	return readThrough(ctx, c, tenantID, "product:id:"+id, func(ctx context.Context) (Product, error) {
		return c.next.GetProductByID(ctx, tenantID, id)
	})
}

func (c *CachedRepository) GetFabricByCode(ctx context.Context, tenantID tenant.ID, code string) (FabricVariant, error) {
	return readThrough(ctx, c, tenantID, "fabric:"+code, func(ctx context.Context) (FabricVariant, error) {
		return c.next.GetFabricByCode(ctx, tenantID, code)
	})
}

func (c *CachedRepository) CreateProduct(ctx context.Context, tenantID tenant.ID, p Product) (Product, error) {
	out, err := c.next.CreateProduct(ctx, tenantID, p)
	if err == nil {
		c.invalidate(ctx, tenantID)
	}
	return out, err
}

func (c *CachedRepository) UpdateProduct(ctx context.Context, tenantID tenant.ID, p Product) (Product, error) {
	out, err := c.next.UpdateProduct(ctx, tenantID, p)
	if err == nil {
		c.invalidate(ctx, tenantID)
	}
	return out, err
}

func (c *CachedRepository) DeleteProduct(ctx context.Context, tenantID tenant.ID, id string) error {
	err := c.next.DeleteProduct(ctx, tenantID, id)
	if err == nil {
		c.invalidate(ctx, tenantID)
	}
	return err
}

func (c *CachedRepository) CreateFabric(ctx context.Context, tenantID tenant.ID, f FabricVariant) (FabricVariant, error) {
	out, err := c.next.CreateFabric(ctx, tenantID, f)
	if err == nil {
		c.invalidate(ctx, tenantID)
	}
	return out, err
}

func (c *CachedRepository) UpdateFabric(ctx context.Context, tenantID tenant.ID, f FabricVariant) (FabricVariant, error) {
	out, err := c.next.UpdateFabric(ctx, tenantID, f)
	if err == nil {
		c.invalidate(ctx, tenantID)
	}
	return out, err
}

func (c *CachedRepository) invalidate(ctx context.Context, tenantID tenant.ID) {
	if err := c.client.Incr(ctx, generationKey(tenantID)).Err(); err != nil {
		c.logger.Printf("catalog cache invalidate tenant=%s: %v", tenantID, err)
	}
}

func (c *CachedRepository) generation(ctx context.Context, tenantID tenant.ID) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// readThrough serves key from Redis, falling back to load on a miss. Redis
// failures are logged and never fail the read. Not-found is not cached.
func readThrough[T any](ctx context.Context, c *CachedRepository, tenantID tenant.ID, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if tenantID == "" {
		return zero, tenant.ErrUnresolved
	}

	gen, err := c.generation(ctx, tenantID)
	if err != nil {
		c.logger.Printf("catalog cache generation tenant=%s: %v", tenantID, err)
		return load(ctx)
	}
	full := entryKey(tenantID, gen, key)

	v, err, _ := c.sfg.Do(full, func() (interface{}, error) {
		data, err := c.client.Get(ctx, full).Bytes()
		if err == nil {
			var cached T
			if jerr := json.Unmarshal(data, &cached); jerr == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Printf("catalog cache get %s: %v", full, err)
		}

		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(fresh); err == nil {
			if err := c.client.Set(ctx, full, data, c.ttl).Err(); err != nil {
				c.logger.Printf("catalog cache set %s: %v", full, err)
			}
		}
		return fresh, nil
	})
	if err != nil {
		return zero, err
	}
	out := v.(T)
	return restoreTenant(out, tenantID), nil
}

// restoreTenant puts back the tenant id, which is not part of the JSON form.
func restoreTenant[T any](v T, tenantID tenant.ID) T {
	switch x := any(v).(type) {
	case Product:
		x.TenantID = tenantID
		return any(x).(T)
	case FabricVariant:
		x.TenantID = tenantID
		return any(x).(T)
	}
	return v
}

func generationKey(tenantID tenant.ID) string {
	return fmt.Sprintf("catalog:%s:gen", tenantID)
}

func entryKey(tenantID tenant.ID, gen int64, key string) string {
	return fmt.Sprintf("catalog:%s:%d:%s", tenantID, gen, key)
}
