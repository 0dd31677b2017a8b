package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 15*time.Second, cfg.Browser.NavTimeout)
	assert.Equal(t, 2*time.Second, cfg.Browser.SettleDelay)

	assert.Empty(t, cfg.Amazon.AssociateTag, "amazon stays unregistered without a tag")

	assert.Equal(t, "promozonestories", cfg.MercadoLivre.Tag)
	assert.Equal(t, "sessions/ml_cookies.json", cfg.MercadoLivre.CookieFile)
	assert.Equal(t, 2*time.Second, cfg.MercadoLivre.MinInterval)
	assert.Contains(t, cfg.MercadoLivre.APIEndpoint, "mercadolivre.com.br")

	assert.Equal(t, "promozonestories", cfg.Shopee.SubID)
	assert.Contains(t, cfg.Shopee.APIEndpoint, "open-api.affiliate.shopee.com.br")

	assert.Equal(t, 10*time.Second, cfg.Product.Timeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AFFLINK_AMAZON_ASSOCIATE_TAG", "promo-20")
	t.Setenv("AFFLINK_MERCADOLIVRE_TAG", "othertag")
	t.Setenv("AFFLINK_SHOPEE_APP_ID", "18123")
	t.Setenv("AFFLINK_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "promo-20", cfg.Amazon.AssociateTag)
	assert.Equal(t, "othertag", cfg.MercadoLivre.Tag)
	assert.Equal(t, "18123", cfg.Shopee.AppID)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "warn"
format = "json"

[amazon]
associate_tag = "file-20"

[mercadolivre]
min_interval = "5s"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "file-20", cfg.Amazon.AssociateTag)
	assert.Equal(t, 5*time.Second, cfg.MercadoLivre.MinInterval)

	// Untouched sections keep their defaults.
	assert.Equal(t, "promozonestories", cfg.MercadoLivre.Tag)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[amazon]\nassociate_tag = \"file-20\"\n"), 0o600))

	t.Setenv("AFFLINK_AMAZON_ASSOCIATE_TAG", "env-20")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-20", cfg.Amazon.AssociateTag)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("AFFLINK_LOG_LEVEL", "verbose")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
