package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

func writeShops(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shops.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "CART_TTL", "SHOPS_FILE", "DEFAULT_TENANT", "CORS_ALLOW_ORIGINS", "RUN_MIGRATIONS", "PUBLIC_BASE_URL", "TENANT_GATEWAY_KEY"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, 7*24*time.Hour, cfg.CartTTL)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "http://localhost:3000", cfg.PublicBaseURL)
	assert.Empty(t, cfg.Shops)
	assert.Empty(t, cfg.GatewayKey)
}

func TestLoad_FromEnv(t *testing.T) {
	path := writeShops(t, `[
		{"tenantId":"shopA","name":"Loom & Co","hosts":["loom.test"],"ownerEmail":"owner@loom.test","orderPrefix":"lo","adminKey":"loom-admin-key-0001"},
		{"tenantId":"shopB","name":"Weft","hosts":["weft.test"]}
	]`)
	t.Setenv("SHOPS_FILE", path)
	t.Setenv("DEFAULT_TENANT", "shopB")
	t.Setenv("PAYMENT_TIMEOUT", "4s")
	t.Setenv("CART_TTL", "not-a-duration")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://loom.test, https://weft.test ,")
	t.Setenv("PUBLIC_BASE_URL", "https://loom.test/")
	t.Setenv("TENANT_GATEWAY_KEY", "gw-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Shops, 2)
	assert.Equal(t, "LO", cfg.Shops[0].OrderPrefix)
	assert.Equal(t, tenant.ID("shopB"), cfg.DefaultTenant)
	assert.Equal(t, 4*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.CartTTL)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, []string{"https://loom.test", "https://weft.test"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "https://loom.test", cfg.PublicBaseURL)
	assert.Equal(t, "gw-secret", cfg.GatewayKey)
	assert.Equal(t, "loom-admin-key-0001", cfg.Shops[0].AdminKey)
	assert.Empty(t, cfg.Shops[1].AdminKey)
}

func TestLoad_UnknownDefaultTenant(t *testing.T) {
	t.Setenv("SHOPS_FILE", writeShops(t, `[{"tenantId":"shopA"}]`))
	t.Setenv("DEFAULT_TENANT", "nope")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadShops_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad json":     `{`,
		"missing id":   `[{"name":"x"}]`,
		"duplicate id": `[{"tenantId":"a"},{"tenantId":"a"}]`,
		"bad prefix":   `[{"tenantId":"a","orderPrefix":"L1"}]`,
		"long prefix":  `[{"tenantId":"a","orderPrefix":"LOO"}]`,
		"short key":    `[{"tenantId":"a","adminKey":"short"}]`,
		"shared key":   `[{"tenantId":"a","adminKey":"same-admin-key-0001"},{"tenantId":"b","adminKey":"same-admin-key-0001"}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadShops(writeShops(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadShops(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
