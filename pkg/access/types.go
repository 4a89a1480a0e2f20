package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m1k1o/go-playgate/pkg/streamtoken"
)

var ErrModeUnavailable = errors.New("access mode is not configured")

// Mode is how an object key becomes a URL the player can fetch.
type Mode string

const (
	ModeProtectedToken Mode = "protected-token"
	ModeSignedDirect   Mode = "signed-direct"
	ModePublicCDN      Mode = "public-cdn"
	ModeEdgeProxy      Mode = "edge-proxy"
)

var Modes = []Mode{ModeProtectedToken, ModeSignedDirect, ModePublicCDN, ModeEdgeProxy}

// ParseMode validates user input. An empty string means unspecified and
// is returned as an empty Mode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}

	for _, m := range Modes {
		if Mode(s) == m {
			return m, nil
		}
	}

	return "", fmt.Errorf("unknown access mode %q", s)
}

func (m Mode) String() string {
	return string(m)
}

// Public modes embed URLs that do not expire, responses carrying them may
// be cached by shared caches.
func (m Mode) Public() bool {
	return m == ModePublicCDN || m == ModeEdgeProxy
}

// next mode to try when one fails, absent entries have no fallback
var fallbacks = map[Mode]Mode{
	ModeProtectedToken: ModeSignedDirect,
}

type Purpose int

const (
	PurposeManifest Purpose = iota
	PurposeSegment
)

func (p Purpose) String() string {
	if p == PurposeManifest {
		return "manifest"
	}
	return "segment"
}

// Descriptor is a resolved, client usable URL.
type Descriptor struct {
	URL       string
	ExpiresAt *time.Time
	Protected bool

	// mode that produced URL, differs from the requested one after a fallback
	Mode Mode
}

type TokenMinter interface {
	Configured() bool
	Mint(ctx context.Context, objectPath string, backendHint string) (*streamtoken.Token, error)
}

type Config struct {
	DefaultMode   Mode
	PublicBaseUrl string
	EdgeProxyUrl  string

	ManifestTTL time.Duration
	SegmentTTL  time.Duration
	Timeout     time.Duration // per presign or token call

	Now func() time.Time
}

func (c Config) withDefaultValues() Config {
	if c.ManifestTTL == 0 {
		c.ManifestTTL = time.Hour
	}
	if c.SegmentTTL == 0 {
		c.SegmentTTL = time.Hour
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	c.PublicBaseUrl = strings.TrimRight(c.PublicBaseUrl, "/")
	c.EdgeProxyUrl = strings.TrimRight(c.EdgeProxyUrl, "/")
	return c
}
