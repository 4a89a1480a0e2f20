package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// S3Ctx talks to any S3 compatible backend. Providers differ only in
// endpoint and credentials.
type S3Ctx struct {
	logger zerolog.Logger
	config Config
	client *minio.Client
}

func NewS3(config *Config) (*S3Ctx, error) {
	c := config.withDefaultValues()

	if c.Endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	if c.Bucket == "" {
		return nil, errors.New("object store bucket is required")
	}

	lookup := minio.BucketLookupAuto
	if c.PathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure:       c.UseSSL,
		Region:       c.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create %s client: %w", c.Provider, err)
	}

	return &S3Ctx{
		logger: log.With().Str("module", "objectstore").Str("provider", c.Provider).Logger(),
		config: c,
		client: client,
	}, nil
}

func (s *S3Ctx) Name() string {
	return s.config.Provider
}

// List walks all pages of the listing, minio follows continuation tokens
// until the prefix is exhausted.
func (s *S3Ctx) List(ctx context.Context, prefix string) ([]Object, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := []Object{}
	for info := range s.client.ListObjects(ctx, s.config.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, info.Err)
		}

		objects = append(objects, Object{
			Key:  info.Key,
			Size: info.Size,
		})
	}

	s.logger.Debug().Str("prefix", prefix).Int("objects", len(objects)).Msg("listed prefix")
	return objects, nil
}

func (s *S3Ctx) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrapErr(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, s.config.MaxObjectSize+1))
	if err != nil {
		return nil, s.wrapErr(key, err)
	}

	if int64(len(data)) > s.config.MaxObjectSize {
		return nil, fmt.Errorf("get %q: object exceeds %d bytes", key, s.config.MaxObjectSize)
	}

	return data, nil
}

// Presign is computed locally from the credentials, no request is made.
func (s *S3Ctx) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.config.Bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", key, err)
	}

	return u.String(), nil
}

func (s *S3Ctx) wrapErr(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	return fmt.Errorf("get %q: %w", key, err)
}
