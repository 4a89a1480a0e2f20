package objectstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("object not found")

// Object is a single entry of a prefix listing.
type Object struct {
	Key  string
	Size int64
}

// Client is the capability shared by all object storage backends.
type Client interface {
	// Name is the backend identifier passed to external signing authorities.
	Name() string

	// List returns every object under prefix in listing order.
	List(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Config struct {
	Provider  string // s3, r2, b2, minio... used only as backend hint
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PathStyle bool

	MaxObjectSize int64 // upper bound for Get, manifests are small
}

func (c Config) withDefaultValues() Config {
	if c.Provider == "" {
		c.Provider = "s3"
	}
	if c.MaxObjectSize == 0 {
		c.MaxObjectSize = 8 << 20
	}
	// endpoint is host[:port], scheme is decided by UseSSL
	if strings.HasPrefix(c.Endpoint, "https://") {
		c.Endpoint = strings.TrimPrefix(c.Endpoint, "https://")
		c.UseSSL = true
	} else if strings.HasPrefix(c.Endpoint, "http://") {
		c.Endpoint = strings.TrimPrefix(c.Endpoint, "http://")
		c.UseSSL = false
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	return c
}
