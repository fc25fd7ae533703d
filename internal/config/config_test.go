package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillDefaults(t *testing.T) {
	var c Config
	c.Output.Dir = "/vault/x"
	c.FillDefaults()

	assert.Equal(t, "info", c.App.LogLevel)
	assert.Equal(t, 100, c.X.PageSize)
	assert.Equal(t, filepath.Join("/vault/x", ".cache"), c.Cache.Dir)
	assert.Equal(t, "x-post-2006-01-02", c.Output.FilenameFormat)
	assert.Equal(t, 5, c.Links.MaxRedirects)
	assert.Equal(t, []string{"x.com", "twitter.com"}, c.Links.SkipHosts)
	assert.InDelta(t, 0.005, c.CostPerPost, 1e-9)
	assert.Equal(t, "media", c.Media.Dir)
	assert.Equal(t, 80, c.Media.WebPQuality)
}

func TestFillDefaultsClampsPageSize(t *testing.T) {
	c := Config{X: XConfig{PageSize: 500}}
	c.FillDefaults()
	assert.Equal(t, 100, c.X.PageSize)
}

func TestValidate(t *testing.T) {
	var c Config
	c.FillDefaults()
	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "x.bearer_token")

	c.X.BearerToken = "token"
	assert.NoError(t, c.Validate())

	c.Cache.Backend = "memcached"
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	c.Cache.Backend = "redis"
	c.Links.Timeout = "soon"
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	c.Links.Timeout = "5s"
	c.Media.Dir = "../elsewhere"
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
}

func TestValidateReportsDurationsInOrder(t *testing.T) {
	var c Config
	c.FillDefaults()
	c.X.BearerToken = "token"
	c.X.Timeout = "a"
	c.Links.Timeout = "b"
	c.Cache.TTL = "c"
	c.Media.Timeout = "d"

	first := c.Validate().Error()
	for i := 0; i < 20; i++ {
		require.Equal(t, first, c.Validate().Error())
	}
	x := strings.Index(first, "x.timeout")
	links := strings.Index(first, "links.timeout")
	ttl := strings.Index(first, "cache.ttl")
	media := strings.Index(first, "media.timeout")
	assert.True(t, x >= 0 && x < links && links < ttl && ttl < media, first)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", time.Minute))
	assert.Equal(t, time.Minute, Duration("bogus", time.Minute))
}
