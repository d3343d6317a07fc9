package redisdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/visiblee-backend/internal/config"
)

func TestOptionsPrefersURL(t *testing.T) {
	opt, err := Options(config.RedisConfig{URL: "redis://:secret@cache:6380/2", Addr: "ignored:6379"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
}

func TestOptionsFromAddr(t *testing.T) {
	opt, err := Options(config.RedisConfig{Addr: "localhost:6379", DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, 1, opt.DB)

	_, err = Options(config.RedisConfig{})
	require.Error(t, err)
	_, err = Options(config.RedisConfig{URL: "http://nope"})
	require.Error(t, err)
}
