package discovery

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-playgate/pkg/objectstore"
)

var ErrEmpty = errors.New("prefix contains no objects")

type AssetKind string

const (
	AssetHLS AssetKind = "hls"
	AssetMP4 AssetKind = "mp4"
)

// progressive formats a player can open directly
var videoExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".mov":  {},
	".webm": {},
	".m4v":  {},
	".avi":  {},
}

type Asset struct {
	Kind AssetKind
	Key  string // manifest key for hls, file key for mp4

	// full listing of the prefix, reused for subtitle discovery
	Objects []objectstore.Object
}

type DiscoveryCtx struct {
	logger zerolog.Logger
	store  objectstore.Client
}

func New(store objectstore.Client) *DiscoveryCtx {
	return &DiscoveryCtx{
		logger: log.With().Str("module", "discovery").Logger(),
		store:  store,
	}
}

func (d *DiscoveryCtx) Discover(ctx context.Context, prefix string) (*Asset, error) {
	objects, err := d.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover %q: %w", prefix, err)
	}

	asset, err := Select(objects)
	if err != nil {
		return nil, err
	}

	d.logger.Debug().
		Str("prefix", prefix).
		Str("kind", string(asset.Kind)).
		Str("key", asset.Key).
		Msg("asset discovered")

	return asset, nil
}

// Select picks the playable object out of a listing: master manifest, any
// manifest, known video file, and finally the largest object.
func Select(objects []objectstore.Object) (*Asset, error) {
	files := make([]objectstore.Object, 0, len(objects))
	for _, obj := range objects {
		// directory placeholders
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		files = append(files, obj)
	}

	if len(files) == 0 {
		return nil, ErrEmpty
	}

	var manifest string
	for _, obj := range files {
		key := strings.ToLower(obj.Key)
		if strings.HasSuffix(key, "master.m3u8") {
			manifest = obj.Key
			break
		}
		if manifest == "" && strings.HasSuffix(key, ".m3u8") {
			manifest = obj.Key
		}
	}

	if manifest != "" {
		return &Asset{Kind: AssetHLS, Key: manifest, Objects: objects}, nil
	}

	for _, obj := range files {
		if _, ok := videoExtensions[strings.ToLower(path.Ext(obj.Key))]; ok {
			return &Asset{Kind: AssetMP4, Key: obj.Key, Objects: objects}, nil
		}
	}

	largest := files[0]
	for _, obj := range files[1:] {
		if obj.Size > largest.Size {
			largest = obj
		}
	}

	return &Asset{Kind: AssetMP4, Key: largest.Key, Objects: objects}, nil
}
