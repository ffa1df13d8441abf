package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/bazaar_test",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	env := baseEnv()
	env["TAX_RATE_BPS"] = ""
	env["CURRENCY_CODE"] = ""
	env["CART_TTL"] = ""
	env["PORT"] = ""

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, "INR", cfg.CurrencyCode)
	require.EqualValues(t, 1800, cfg.TaxRateBPS)
	require.Equal(t, 720*time.Hour, cfg.CartTTL)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadRequiredVars(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET"} {
		env := baseEnv()
		env[key] = ""
		_, err := config.LoadForTests(env)
		require.Error(t, err, key)
		require.Contains(t, err.Error(), key)
	}
}

func TestLoadTaxRateOutOfRange(t *testing.T) {
	env := baseEnv()
	env["TAX_RATE_BPS"] = "10001"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["CURRENCY_CODE"] = "USD"
	env["TAX_RATE_BPS"] = "725"
	env["COUPON_PER_USER_LIMIT"] = "3"
	env["SHIPPING_CACHE_TTL"] = "30s"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, "USD", cfg.CurrencyCode)
	require.EqualValues(t, 725, cfg.TaxRateBPS)
	require.EqualValues(t, 3, cfg.CouponPerUserLimit)
	require.Equal(t, 30*time.Second, cfg.ShippingCacheTTL)
}
