package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("content not found")

type Kind string

const (
	KindMovie   Kind = "MOVIE"
	KindEpisode Kind = "EPISODE"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindMovie:
		return KindMovie, nil
	case KindEpisode:
		return KindEpisode, nil
	}
	return "", fmt.Errorf("unknown content kind %q", s)
}

// Record is the subset of a content row the gateway reads.
type Record struct {
	ID            string  `json:"id"`
	Kind          Kind    `json:"kind"`
	Name          string  `json:"name"`
	Artwork       string  `json:"artwork,omitempty"`
	ShowName      string  `json:"showName,omitempty"`
	SeasonNumber  *int    `json:"seasonNumber,omitempty"`
	EpisodeNumber *int    `json:"episodeNumber,omitempty"`
	StoragePrefix *string `json:"storagePrefix,omitempty"`
}

type Store interface {
	FindContent(ctx context.Context, id string, kind Kind) (*Record, error)
}
