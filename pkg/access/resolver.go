package access

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-playgate/internal/metrics"
	"github.com/m1k1o/go-playgate/pkg/objectstore"
	"github.com/m1k1o/go-playgate/pkg/streamtoken"
)

type ResolverCtx struct {
	logger zerolog.Logger
	config Config
	store  objectstore.Client
	tokens TokenMinter
}

func New(config *Config, store objectstore.Client, tokens TokenMinter) *ResolverCtx {
	return &ResolverCtx{
		logger: log.With().Str("module", "access").Logger(),
		config: config.withDefaultValues(),
		store:  store,
		tokens: tokens,
	}
}

func (r *ResolverCtx) tokensConfigured() bool {
	return r.tokens != nil && r.tokens.Configured()
}

// Default is the configured mode, or the first available one out of
// protected-token, signed-direct and public-cdn.
func (r *ResolverCtx) Default() Mode {
	if r.config.DefaultMode != "" {
		return r.config.DefaultMode
	}
	if r.tokensConfigured() {
		return ModeProtectedToken
	}
	if r.store != nil {
		return ModeSignedDirect
	}
	return ModePublicCDN
}

// Settle applies fallbacks that are known without making a request, so
// links generated for mode never advertise something that cannot be served.
func (r *ResolverCtx) Settle(mode Mode) Mode {
	if mode == "" {
		mode = r.Default()
	}
	if mode == ModeProtectedToken && !r.tokensConfigured() {
		return fallbacks[mode]
	}
	return mode
}

// Resolve turns key into a URL using mode, walking the fallback chain on
// failure. Failures that were recovered from are only logged.
func (r *ResolverCtx) Resolve(ctx context.Context, key string, mode Mode, purpose Purpose) (Descriptor, error) {
	if mode == "" {
		mode = r.Default()
	}

	for {
		desc, err := r.resolveWith(ctx, key, mode, purpose)
		if err == nil {
			metrics.ObserveResolution(mode.String(), true)
			return desc, nil
		}

		next, ok := fallbacks[mode]
		if !ok {
			metrics.ObserveResolution(mode.String(), false)
			return Descriptor{}, fmt.Errorf("resolve %q using %s: %w", key, mode, err)
		}

		r.logger.Warn().Err(err).
			Str("key", key).
			Str("from", mode.String()).
			Str("to", next.String()).
			Msg("access mode unavailable, falling back")
		metrics.ObserveFallback(mode.String(), next.String())

		mode = next
	}
}

func (r *ResolverCtx) resolveWith(ctx context.Context, key string, mode Mode, purpose Purpose) (Descriptor, error) {
	switch mode {
	case ModeProtectedToken:
		return r.mint(ctx, key)
	case ModeSignedDirect:
		return r.presign(ctx, key, purpose)
	case ModePublicCDN:
		return r.passthrough(r.config.PublicBaseUrl, key, mode)
	case ModeEdgeProxy:
		return r.passthrough(r.config.EdgeProxyUrl, key, mode)
	}
	return Descriptor{}, fmt.Errorf("unknown access mode %q", mode)
}

func (r *ResolverCtx) mint(ctx context.Context, key string) (Descriptor, error) {
	if !r.tokensConfigured() {
		metrics.ObserveStreamToken(string(streamtoken.ReasonNotConfigured))
		return Descriptor{}, ErrModeUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	backend := ""
	if r.store != nil {
		backend = r.store.Name()
	}

	token, err := r.tokens.Mint(ctx, key, backend)
	if err != nil {
		reason := "error"
		var failure *streamtoken.Failure
		if errors.As(err, &failure) {
			reason = string(failure.Reason)
		}
		metrics.ObserveStreamToken(reason)
		return Descriptor{}, err
	}
	metrics.ObserveStreamToken("ok")

	desc := Descriptor{
		URL:       token.StreamUrl,
		Protected: true,
		Mode:      ModeProtectedToken,
	}
	if !token.ExpiresAt.IsZero() {
		expires := token.ExpiresAt
		desc.ExpiresAt = &expires
	}
	return desc, nil
}

func (r *ResolverCtx) presign(ctx context.Context, key string, purpose Purpose) (Descriptor, error) {
	if r.store == nil {
		return Descriptor{}, ErrModeUnavailable
	}

	ttl := r.config.SegmentTTL
	if purpose == PurposeManifest {
		ttl = r.config.ManifestTTL
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	signed, err := r.store.Presign(ctx, key, ttl)
	if err != nil {
		return Descriptor{}, err
	}

	expires := r.config.Now().Add(ttl).Truncate(time.Second)
	return Descriptor{
		URL:       signed,
		ExpiresAt: &expires,
		Mode:      ModeSignedDirect,
	}, nil
}

func (r *ResolverCtx) passthrough(base string, key string, mode Mode) (Descriptor, error) {
	if base == "" {
		return Descriptor{}, ErrModeUnavailable
	}

	return Descriptor{
		URL:  base + "/" + escapeKey(key),
		Mode: mode,
	}, nil
}

// escapeKey escapes every path segment of an object key.
func escapeKey(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
