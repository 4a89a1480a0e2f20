package playback

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/m1k1o/go-playgate/internal/metrics"
	"github.com/m1k1o/go-playgate/pkg/access"
	"github.com/m1k1o/go-playgate/pkg/discovery"
	"github.com/m1k1o/go-playgate/pkg/locator"
	"github.com/m1k1o/go-playgate/pkg/manifest"
	"github.com/m1k1o/go-playgate/pkg/objectstore"
)

type ServiceCtx struct {
	logger zerolog.Logger
	config Config

	locator    Locator
	discoverer Discoverer
	resolver   Resolver
	rewriter   Rewriter
	fetcher    Fetcher
}

func New(config *Config, locator Locator, discoverer Discoverer, resolver Resolver, rewriter Rewriter, fetcher Fetcher) *ServiceCtx {
	return &ServiceCtx{
		logger:     log.With().Str("module", "playback").Logger(),
		config:     config.withDefaultValues(),
		locator:    locator,
		discoverer: discoverer,
		resolver:   resolver,
		rewriter:   rewriter,
		fetcher:    fetcher,
	}
}

func (s *ServiceCtx) Config() Config {
	return s.config
}

func (s *ServiceCtx) locate(ctx context.Context, req Request) (*locator.ContentRef, error) {
	var (
		ref *locator.ContentRef
		err error
	)
	if req.Kind == "" {
		ref, err = s.locator.LocateAny(ctx, req.ContentID)
	} else {
		ref, err = s.locator.Locate(ctx, req.ContentID, req.Kind)
	}
	if err != nil {
		return nil, mapLocateErr(err)
	}
	return ref, nil
}

func (s *ServiceCtx) discover(ctx context.Context, prefix string) (*discovery.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	asset, err := s.discoverer.Discover(ctx, prefix)
	if errors.Is(err, discovery.ErrEmpty) {
		return nil, fmt.Errorf("%w: %w", ErrNoAsset, err)
	}
	return asset, err
}

// Session answers how to play a content item.
func (s *ServiceCtx) Session(ctx context.Context, req Request) (*Session, error) {
	session, err := s.session(ctx, req)

	kind := "unknown"
	if session != nil {
		kind = string(session.Kind)
	}
	metrics.ObservePlaybackSession(kind, resultOf(err))

	return session, err
}

func (s *ServiceCtx) session(ctx context.Context, req Request) (*Session, error) {
	ref, err := s.locate(ctx, req)
	if err != nil {
		return nil, err
	}

	asset, err := s.discover(ctx, ref.Prefix)
	if err != nil {
		return nil, err
	}

	mode := s.resolver.Settle(req.Mode)

	// resolving the entry object decides the mode of the whole session
	desc, err := s.resolver.Resolve(ctx, asset.Key, mode, access.PurposeManifest)
	if err != nil {
		return nil, err
	}

	session := &Session{
		Kind:           asset.Kind,
		ExpiresAt:      unixPtr(desc.ExpiresAt),
		Protected:      desc.Protected,
		ContentSummary: summaryOf(ref),
		Mode:           desc.Mode,
	}

	switch asset.Kind {
	case discovery.AssetHLS:
		session.PlaybackUrl = s.config.ManifestUrl(ref.ID, ref.Kind, "", desc.Mode)
	default:
		session.PlaybackUrl = desc.URL
	}

	session.Subtitles = s.subtitles(ctx, asset.Objects, desc.Mode)

	s.logger.Info().
		Str("id", ref.ID).
		Str("kind", string(asset.Kind)).
		Str("mode", desc.Mode.String()).
		Bool("fallback", desc.Mode != mode).
		Int("subtitles", len(session.Subtitles)).
		Msg("playback session created")

	return session, nil
}

// subtitles is best effort, a track that cannot be resolved before the
// deadline is dropped. Track order follows the listing.
func (s *ServiceCtx) subtitles(ctx context.Context, objects []objectstore.Object, mode access.Mode) []Subtitle {
	tracks := discovery.Subtitles(objects)
	if len(tracks) == 0 {
		return []Subtitle{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SubtitleTimeout)
	defer cancel()

	resolved := make([]*Subtitle, len(tracks))

	var g errgroup.Group
	g.SetLimit(s.config.SubtitleConcurrency)

	for i, track := range tracks {
		g.Go(func() error {
			desc, err := s.resolver.Resolve(ctx, track.Key, mode, access.PurposeManifest)
			if err != nil {
				s.logger.Warn().Err(err).Str("key", track.Key).Msg("unable to resolve subtitle")
				return nil
			}

			resolved[i] = &Subtitle{
				Label:    track.Label,
				Language: track.Language,
				Url:      desc.URL,
			}
			return nil
		})
	}
	_ = g.Wait()

	subtitles := make([]Subtitle, 0, len(tracks))
	for _, sub := range resolved {
		if sub != nil {
			subtitles = append(subtitles, *sub)
		}
	}
	return subtitles
}

// Manifest fetches and rewrites the entry manifest or one of its variants.
// Nothing is kept between requests, caching is left to Cache-Control.
func (s *ServiceCtx) Manifest(ctx context.Context, req ManifestRequest) (*Manifest, error) {
	variant := ""
	if req.Variant != "" {
		var err error
		if variant, err = cleanVariant(req.Variant); err != nil {
			return nil, err
		}
	}

	mode := s.resolver.Settle(req.Mode)

	ref, err := s.locate(ctx, Request{ContentID: req.ContentID, Kind: req.Kind})
	if err != nil {
		return nil, err
	}

	if variant == "" {
		asset, err := s.discover(ctx, ref.Prefix)
		if err != nil {
			return nil, err
		}
		if asset.Kind != discovery.AssetHLS {
			return nil, fmt.Errorf("%w: no manifest under prefix", ErrNoAsset)
		}

		// the entry manifest decides the mode of the session, like Session
		// does, master playlists carry no segments that would reveal a fallback
		desc, err := s.resolver.Resolve(ctx, asset.Key, mode, access.PurposeManifest)
		if err != nil {
			return nil, err
		}
		mode = desc.Mode

		variant = strings.TrimPrefix(asset.Key, ref.Prefix)
	}

	text, err := s.fetch(ctx, ref.Prefix+variant)
	if err != nil {
		return nil, err
	}

	result, err := s.rewriter.Rewrite(ctx, string(text), manifest.Context{
		Prefix: ref.Prefix,
		Dir:    manifest.Dir(variant),
		Mode:   mode,
		Links: func(v string, m access.Mode) string {
			return s.config.ManifestUrl(ref.ID, ref.Kind, v, m)
		},
	})
	if err != nil {
		return nil, err
	}

	cacheControl := CacheNoStore
	if result.Mode.Public() {
		cacheControl = CachePublic
	}

	return &Manifest{
		Text:         result.Text,
		Mode:         result.Mode,
		CacheControl: cacheControl,
	}, nil
}

func (s *ServiceCtx) fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	data, err := s.fetcher.Get(ctx, key)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNoAsset, err)
	}
	return data, err
}

// cleanVariant accepts manifest paths relative to the content prefix only.
func cleanVariant(variant string) (string, error) {
	if strings.Contains(variant, "://") || strings.ContainsAny(variant, "?#\\") {
		return "", ErrInvalidVariant
	}

	clean := path.Clean(strings.TrimLeft(variant, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidVariant
	}
	if !strings.HasSuffix(strings.ToLower(clean), ".m3u8") {
		return "", ErrInvalidVariant
	}

	return clean, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoAsset):
		return "no_asset"
	}
	return "error"
}
