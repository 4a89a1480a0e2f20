package serve

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "serve"}
	require.NoError(t, Config{}.Init(cmd))
	require.NoError(t, cmd.ParseFlags([]string{
		"--storage.bucket=media",
		"--access.default-mode=public-cdn",
		"--ratelimit.requests=30",
		"--player.hlsjs-url=/static/hls.js",
	}))

	viper.Set("storage.secret-key", "s3cr3t")
	viper.Set("access.segment-ttl", "15m")
	viper.Set("redis.ttl", 90*time.Second)

	var config Config
	config.Set()

	assert.Equal(t, "s3", config.Storage.Provider)
	assert.Equal(t, "media", config.Storage.Bucket)
	assert.Equal(t, "s3cr3t", config.Storage.SecretKey)
	assert.Equal(t, "public-cdn", config.Access.DefaultMode)
	assert.Equal(t, 15*time.Minute, config.Access.SegmentTTL)
	assert.Equal(t, 90*time.Second, config.Redis.TTL)
	assert.Equal(t, 30, config.RateLimit.Requests)
	assert.Empty(t, config.Token.BaseUrl)
	assert.Equal(t, "/static/hls.js", config.Player.HlsJsUrl)
	assert.Equal(t, 2*time.Second, config.Subtitles.Timeout)
}
