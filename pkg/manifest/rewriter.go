package manifest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/m1k1o/go-playgate/internal/metrics"
	"github.com/m1k1o/go-playgate/pkg/access"
)

var ErrModeRequired = errors.New("access mode must be settled before rewriting")

type RewriterCtx struct {
	logger   zerolog.Logger
	config   Config
	resolver Resolver
}

func New(config *Config, resolver Resolver) *RewriterCtx {
	return &RewriterCtx{
		logger:   log.With().Str("module", "manifest").Str("submodule", "rewriter").Logger(),
		config:   config.withDefaultValues(),
		resolver: resolver,
	}
}

// Rewrite replaces every reference in text by a URL the client can fetch.
// Directives, blank lines and absolute URLs are kept byte for byte, unless
// tag URI rewriting is enabled. Line order is preserved.
func (r *RewriterCtx) Rewrite(ctx context.Context, text string, rc Context) (Result, error) {
	if rc.Mode == "" {
		return Result{}, ErrModeRequired
	}

	start := time.Now()
	lines := parse(text, rc.Dir, r.config.RewriteTagURIs)

	resolved := make([]access.Descriptor, len(lines))
	if err := r.resolve(ctx, lines, resolved, rc, func(int) bool { return true }); err != nil {
		return Result{}, err
	}

	// a fallback on any reference settles the whole response on the
	// fallback mode, so that nested links and segments agree
	mode := rc.Mode
	for i, l := range lines {
		if l.ref == refSegment && resolved[i].Mode != rc.Mode {
			mode = resolved[i].Mode
			break
		}
	}

	if mode != rc.Mode {
		r.logger.Warn().
			Str("from", rc.Mode.String()).
			Str("to", mode.String()).
			Str("dir", rc.Prefix+rc.Dir).
			Msg("manifest settled on fallback mode")

		mismatched := func(i int) bool { return resolved[i].Mode != mode }
		rc.Mode = mode
		if err := r.resolve(ctx, lines, resolved, rc, mismatched); err != nil {
			return Result{}, err
		}
	}

	var b strings.Builder
	b.Grow(len(text) + len(lines)*64)

	for i, l := range lines {
		var value string
		switch l.ref {
		case refSegment:
			value = resolved[i].URL
		case refVariant:
			value = rc.Links(l.rel, mode)
		default:
			b.WriteString(l.raw)
			b.WriteString(l.ending)
			continue
		}

		if l.before != "" || l.after != "" {
			b.WriteString(l.before)
			b.WriteString(value)
			b.WriteString(l.after)
		} else {
			b.WriteString(value)
		}
		b.WriteString(l.ending)
	}

	metrics.ObserveManifestRewrite(mode.String(), time.Since(start))

	return Result{
		Text: b.String(),
		Mode: mode,
	}, nil
}

// resolve fills out for every selected segment line, concurrently.
func (r *RewriterCtx) resolve(ctx context.Context, lines []line, out []access.Descriptor, rc Context, selected func(int) bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for i, l := range lines {
		if l.ref != refSegment || !selected(i) {
			continue
		}

		g.Go(func() error {
			desc, err := r.resolver.Resolve(gctx, rc.Prefix+l.rel, rc.Mode, access.PurposeSegment)
			if err != nil {
				return err
			}
			out[i] = desc
			return nil
		})
	}

	return g.Wait()
}
