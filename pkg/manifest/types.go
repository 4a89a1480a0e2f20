package manifest

import (
	"context"

	"github.com/m1k1o/go-playgate/pkg/access"
)

const ContentType = "application/vnd.apple.mpegurl"

type Resolver interface {
	Resolve(ctx context.Context, key string, mode access.Mode, purpose access.Purpose) (access.Descriptor, error)
}

// LinkFunc returns the gateway URL serving a nested manifest. variant is
// relative to the content prefix.
type LinkFunc func(variant string, mode access.Mode) string

type Config struct {
	Concurrency    int  // parallel resolutions per manifest
	RewriteTagURIs bool // also rewrite URI attributes of EXT-X-MAP, EXT-X-MEDIA...
}

func (c Config) withDefaultValues() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 16
	}
	return c
}

// Context describes the manifest being rewritten.
type Context struct {
	Prefix string // content prefix, ends with /
	Dir    string // directory of the manifest relative to Prefix, "" or ends with /

	// settled access mode of the request, must not be empty
	Mode  access.Mode
	Links LinkFunc
}

type Result struct {
	Text string
	Mode access.Mode // mode every reference in Text was resolved with
}
