package playback

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/m1k1o/go-playgate/pkg/access"
	"github.com/m1k1o/go-playgate/pkg/discovery"
	"github.com/m1k1o/go-playgate/pkg/locator"
	"github.com/m1k1o/go-playgate/pkg/manifest"
	"github.com/m1k1o/go-playgate/pkg/metadata"
)

var (
	ErrNotFound       = errors.New("content not found")
	ErrNoAsset        = errors.New("content not available")
	ErrInvalidVariant = errors.New("invalid variant")
)

const (
	CachePublic  = "public, max-age=300, stale-while-revalidate=60"
	CacheNoStore = "no-store"
)

type Locator interface {
	Locate(ctx context.Context, id string, kind metadata.Kind) (*locator.ContentRef, error)
	LocateAny(ctx context.Context, id string) (*locator.ContentRef, error)
}

type Discoverer interface {
	Discover(ctx context.Context, prefix string) (*discovery.Asset, error)
}

type Resolver interface {
	Settle(mode access.Mode) access.Mode
	Resolve(ctx context.Context, key string, mode access.Mode, purpose access.Purpose) (access.Descriptor, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, text string, rc manifest.Context) (manifest.Result, error)
}

type Fetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type Config struct {
	BaseUrl      string // public URL of this gateway, empty for relative links
	ManifestPath string
	Timeout      time.Duration // per listing or object fetch

	SubtitleTimeout     time.Duration // for resolving all tracks of a session
	SubtitleConcurrency int
}

func (c Config) withDefaultValues() Config {
	if c.ManifestPath == "" {
		c.ManifestPath = "/manifest/"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.SubtitleTimeout == 0 {
		c.SubtitleTimeout = 2 * time.Second
	}
	if c.SubtitleConcurrency <= 0 {
		c.SubtitleConcurrency = 8
	}
	c.BaseUrl = strings.TrimRight(c.BaseUrl, "/")
	c.ManifestPath = "/" + strings.Trim(c.ManifestPath, "/") + "/"
	return c
}

type Request struct {
	ContentID string
	Kind      metadata.Kind // empty tries movies, then episodes
	Mode      access.Mode   // empty uses the default mode
}

type ManifestRequest struct {
	ContentID string
	Kind      metadata.Kind
	Variant   string
	Mode      access.Mode
}

type Subtitle struct {
	Label    string `json:"label"`
	Language string `json:"language"`
	Url      string `json:"url"`
}

type Summary struct {
	ID            string        `json:"id"`
	Kind          metadata.Kind `json:"kind"`
	Name          string        `json:"name"`
	Artwork       string        `json:"artwork,omitempty"`
	ShowName      string        `json:"showName,omitempty"`
	SeasonNumber  *int          `json:"seasonNumber,omitempty"`
	EpisodeNumber *int          `json:"episodeNumber,omitempty"`
}

type Session struct {
	PlaybackUrl    string              `json:"playbackUrl"`
	Kind           discovery.AssetKind `json:"kind"`
	ExpiresAt      *int64              `json:"expiresAt"` // unix seconds
	Protected      bool                `json:"protected"`
	Subtitles      []Subtitle          `json:"subtitles"`
	ContentSummary Summary             `json:"contentSummary"`

	Mode access.Mode `json:"-"`
}

type Manifest struct {
	Text         string
	Mode         access.Mode
	CacheControl string
}

// ManifestUrl builds a link to the manifest route. Parameter order is
// stable: variant, mode, kind.
func (c Config) ManifestUrl(id string, kind metadata.Kind, variant string, mode access.Mode) string {
	params := []string{}
	if variant != "" {
		params = append(params, "variant="+url.QueryEscape(variant))
	}
	if mode != "" {
		params = append(params, "mode="+url.QueryEscape(mode.String()))
	}
	if kind != "" {
		params = append(params, "kind="+url.QueryEscape(string(kind)))
	}

	u := c.BaseUrl + c.ManifestPath + url.PathEscape(id)
	if len(params) > 0 {
		u += "?" + strings.Join(params, "&")
	}
	return u
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}

func summaryOf(ref *locator.ContentRef) Summary {
	s := Summary{ID: ref.ID, Kind: ref.Kind}
	if rec := ref.Record; rec != nil {
		s.Name = rec.Name
		s.Artwork = rec.Artwork
		s.ShowName = rec.ShowName
		s.SeasonNumber = rec.SeasonNumber
		s.EpisodeNumber = rec.EpisodeNumber
	}
	return s
}

func mapLocateErr(err error) error {
	switch {
	case errors.Is(err, locator.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, locator.ErrNoPrefix):
		return fmt.Errorf("%w: %w", ErrNoAsset, err)
	}
	return err
}
