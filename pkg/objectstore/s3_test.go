package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWithDefaultValues(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		endpoint string
		useSSL   bool
		provider string
	}{
		{
			name:     "plain host",
			config:   Config{Endpoint: "localhost:9000"},
			endpoint: "localhost:9000",
			provider: "s3",
		},
		{
			name:     "https scheme enables ssl",
			config:   Config{Endpoint: "https://acc.r2.cloudflarestorage.com/", Provider: "r2"},
			endpoint: "acc.r2.cloudflarestorage.com",
			useSSL:   true,
			provider: "r2",
		},
		{
			name:     "http scheme disables ssl",
			config:   Config{Endpoint: "http://minio:9000", UseSSL: true},
			endpoint: "minio:9000",
			provider: "s3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.config.withDefaultValues()
			assert.Equal(t, tt.endpoint, c.Endpoint)
			assert.Equal(t, tt.useSSL, c.UseSSL)
			assert.Equal(t, tt.provider, c.Provider)
			assert.Equal(t, int64(8<<20), c.MaxObjectSize)
		})
	}
}

func TestNewS3(t *testing.T) {
	t.Run("requires endpoint", func(t *testing.T) {
		_, err := NewS3(&Config{Bucket: "media"})
		assert.Error(t, err)
	})

	t.Run("requires bucket", func(t *testing.T) {
		_, err := NewS3(&Config{Endpoint: "localhost:9000"})
		assert.Error(t, err)
	})

	t.Run("presign is offline", func(t *testing.T) {
		s, err := NewS3(&Config{
			Provider:  "minio",
			Endpoint:  "http://localhost:9000",
			Region:    "us-east-1",
			Bucket:    "media",
			AccessKey: "key",
			SecretKey: "secret",
			PathStyle: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "minio", s.Name())

		u, err := s.Presign(t.Context(), "movies/abc/master.m3u8", 3600e9)
		require.NoError(t, err)
		assert.Contains(t, u, "http://localhost:9000/media/movies/abc/master.m3u8?")
		assert.Contains(t, u, "X-Amz-Expires=3600")
	})
}
