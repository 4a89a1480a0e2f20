package discovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1k1o/go-playgate/pkg/objectstore"
	"github.com/m1k1o/go-playgate/pkg/objectstore/objectstoretest"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		objects []objectstore.Object
		kind    AssetKind
		key     string
	}{
		{
			name: "master wins over variants",
			objects: []objectstore.Object{
				{Key: "foo/720p.m3u8", Size: 100},
				{Key: "foo/master.m3u8", Size: 50},
				{Key: "foo/seg0.ts", Size: 5000},
			},
			kind: AssetHLS,
			key:  "foo/master.m3u8",
		},
		{
			name: "master match is case insensitive",
			objects: []objectstore.Object{
				{Key: "foo/360p.m3u8"},
				{Key: "foo/Master.M3U8"},
			},
			kind: AssetHLS,
			key:  "foo/Master.M3U8",
		},
		{
			name: "first manifest in listing order",
			objects: []objectstore.Object{
				{Key: "foo/360p.m3u8"},
				{Key: "foo/720p.m3u8"},
			},
			kind: AssetHLS,
			key:  "foo/360p.m3u8",
		},
		{
			name: "known extension before largest file",
			objects: []objectstore.Object{
				{Key: "foo/movie.mkv", Size: 2 << 30},
				{Key: "foo/sample.srt", Size: 10 << 10},
			},
			kind: AssetMP4,
			key:  "foo/movie.mkv",
		},
		{
			name: "known extension even if smaller",
			objects: []objectstore.Object{
				{Key: "foo/extras.bin", Size: 5 << 30},
				{Key: "foo/trailer.MP4", Size: 1 << 20},
			},
			kind: AssetMP4,
			key:  "foo/trailer.MP4",
		},
		{
			name: "largest file fallback",
			objects: []objectstore.Object{
				{Key: "foo/part1.xyz", Size: 1 << 10},
				{Key: "foo/part2.xyz", Size: 5 << 30},
			},
			kind: AssetMP4,
			key:  "foo/part2.xyz",
		},
		{
			name: "directory placeholders are ignored",
			objects: []objectstore.Object{
				{Key: "foo/", Size: 0},
				{Key: "foo/blob", Size: 1},
			},
			kind: AssetMP4,
			key:  "foo/blob",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := Select(tt.objects)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, asset.Kind)
			assert.Equal(t, tt.key, asset.Key)
		})
	}

	t.Run("empty", func(t *testing.T) {
		_, err := Select(nil)
		assert.ErrorIs(t, err, ErrEmpty)

		_, err = Select([]objectstore.Object{{Key: "foo/"}})
		assert.ErrorIs(t, err, ErrEmpty)
	})
}

func TestDiscover(t *testing.T) {
	store := objectstoretest.New("s3").
		Put("episodes/abc/master.m3u8", "#EXTM3U").
		Put("episodes/abc/720p.m3u8", "#EXTM3U").
		Put("episodes/abcd/master.m3u8", "#EXTM3U")

	d := New(store)

	asset, err := d.Discover(t.Context(), "episodes/abc/")
	require.NoError(t, err)
	assert.Equal(t, AssetHLS, asset.Kind)
	assert.Equal(t, "episodes/abc/master.m3u8", asset.Key)
	assert.Len(t, asset.Objects, 2)

	_, err = d.Discover(t.Context(), "episodes/none/")
	assert.ErrorIs(t, err, ErrEmpty)

	store.ListErr = errors.New("timeout")
	_, err = d.Discover(t.Context(), "episodes/abc/")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmpty))
}

func TestSubtitles(t *testing.T) {
	objects := []objectstore.Object{
		{Key: "movies/m1/master.m3u8"},
		{Key: "movies/m1/subs/movie.en.vtt"},
		{Key: "movies/m1/subs/de.vtt"},
		{Key: "movies/m1/subs/movie_pt-BR.VTT"},
		{Key: "movies/m1/subs/commentary.vtt"},
		{Key: "movies/m1/subs/movie.srt"},
		{Key: "movies/m1/subs/en/seg_0001.vtt"},
		{Key: "movies/m1/subs/en/fileSequence12.vtt"},
		{Key: "movies/m1/subs/en/00003.vtt"},
	}

	tracks := Subtitles(objects)
	require.Len(t, tracks, 4)

	assert.Equal(t, Track{Label: "English", Language: "en", Key: "movies/m1/subs/movie.en.vtt"}, tracks[0])
	assert.Equal(t, Track{Label: "German", Language: "de", Key: "movies/m1/subs/de.vtt"}, tracks[1])
	assert.Equal(t, "pt-BR", tracks[2].Language)
	assert.NotEmpty(t, tracks[2].Label)
	assert.Equal(t, Track{Label: "commentary", Language: "und", Key: "movies/m1/subs/commentary.vtt"}, tracks[3])

	assert.Empty(t, Subtitles(nil))
}
