package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/retailsearch/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Search.CacheTTL)
	assert.True(t, cfg.Search.BandwidthOptimize)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SEARCH_CACHE_TTL", "2h")
	t.Setenv("SEARCH_AFFILIATE_TAG_US", "mysite-20")
	t.Setenv("NETWORK_CIDRS", "10.0.0.0/8, 192.168.0.0/16")
	t.Setenv("DB_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Search.CacheTTL)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.Network.CIDRs)
	assert.True(t, cfg.Database.Enabled)

	tags := cfg.AffiliateTags()
	assert.Equal(t, "mysite-20", tags[models.CountryUS])
	assert.Empty(t, tags[models.CountryCA])
}

func TestValidateRejectsProxyWithoutUsername(t *testing.T) {
	t.Setenv("PROXY_HOST", "proxy.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "PROXY_USERNAME")
}
