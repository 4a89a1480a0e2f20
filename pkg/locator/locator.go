package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-playgate/pkg/metadata"
)

var (
	ErrNotFound = errors.New("content not found")
	ErrNoPrefix = errors.New("content has no storage prefix")
)

// ContentRef points at the storage location of one content item.
type ContentRef struct {
	ID     string
	Kind   metadata.Kind
	Prefix string // always ends with /

	Record *metadata.Record
}

type LocatorCtx struct {
	logger zerolog.Logger
	store  metadata.Store
}

func New(store metadata.Store) *LocatorCtx {
	return &LocatorCtx{
		logger: log.With().Str("module", "locator").Logger(),
		store:  store,
	}
}

func (l *LocatorCtx) Locate(ctx context.Context, id string, kind metadata.Kind) (*ContentRef, error) {
	rec, err := l.store.FindContent(ctx, id, kind)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locate %s %s: %w", kind, id, err)
	}

	if rec.StoragePrefix == nil {
		return nil, ErrNoPrefix
	}

	prefix := NormalizePrefix(*rec.StoragePrefix)
	if prefix == "" {
		return nil, ErrNoPrefix
	}

	l.logger.Debug().Str("id", id).Str("kind", string(kind)).Str("prefix", prefix).Msg("content located")

	return &ContentRef{
		ID:     id,
		Kind:   kind,
		Prefix: prefix,
		Record: rec,
	}, nil
}

// LocateAny is used when the caller did not say which kind of content it
// wants, movies are tried first.
func (l *LocatorCtx) LocateAny(ctx context.Context, id string) (*ContentRef, error) {
	ref, err := l.Locate(ctx, id, metadata.KindMovie)
	if !errors.Is(err, ErrNotFound) {
		return ref, err
	}

	return l.Locate(ctx, id, metadata.KindEpisode)
}

// NormalizePrefix strips surrounding whitespace and slashes and appends a
// single trailing slash. Empty input stays empty.
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
