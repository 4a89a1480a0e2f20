package manifest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/m1k1o/go-playgate/pkg/access"
	"github.com/m1k1o/go-playgate/pkg/objectstore/objectstoretest"
	"github.com/m1k1o/go-playgate/pkg/streamtoken"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720,CODECS="avc1.4d401f,mp4a.40.2"
720p.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
360p/index.m3u8?v=2

#EXT-X-STREAM-INF:BANDWIDTH=400000,RESOLUTION=426x240
https://other.example/240p.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:6.000,
seg0.ts
#EXTINF:6.000,
seg1.ts
#EXT-X-DISCONTINUITY
#EXTINF:4.000,
https://ads.example/ad0.ts
#EXTINF:6.000,
chunk-2.m4s
#EXT-X-PROGRAM-DATE-TIME:2026-01-01T00:00:00Z
unknown-feature.bin
#EXT-X-ENDLIST
`

// cdnResolver concatenates like public-cdn does, deterministic.
type cdnResolver struct {
	mu    sync.Mutex
	keys  []string
	fail  map[string]bool
	delay time.Duration
}

func (c *cdnResolver) Resolve(ctx context.Context, key string, mode access.Mode, purpose access.Purpose) (access.Descriptor, error) {
	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return access.Descriptor{}, ctx.Err()
		case <-time.After(c.delay):
		}
	}

	c.mu.Lock()
	c.keys = append(c.keys, key)
	c.mu.Unlock()

	if c.fail[key] {
		return access.Descriptor{}, errors.New("presign failed")
	}
	return access.Descriptor{URL: "https://cdn.example/" + key, Mode: mode}, nil
}

func links(id string) LinkFunc {
	return func(variant string, mode access.Mode) string {
		return fmt.Sprintf("/manifest/%s?variant=%s&mode=%s", id, url.QueryEscape(variant), mode)
	}
}

func TestRewriteMaster(t *testing.T) {
	res := &cdnResolver{}
	r := New(&Config{}, res)

	out, err := r.Rewrite(t.Context(), masterPlaylist, Context{
		Prefix: "episodes/abc/",
		Mode:   access.ModePublicCDN,
		Links:  links("abc"),
	})
	require.NoError(t, err)
	assert.Equal(t, access.ModePublicCDN, out.Mode)

	want := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720,CODECS="avc1.4d401f,mp4a.40.2"
/manifest/abc?variant=720p.m3u8&mode=public-cdn
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
/manifest/abc?variant=360p%2Findex.m3u8&mode=public-cdn

#EXT-X-STREAM-INF:BANDWIDTH=400000,RESOLUTION=426x240
https://other.example/240p.m3u8
`
	assert.Equal(t, want, out.Text)
	assert.Empty(t, res.keys)
}

func TestRewriteMedia(t *testing.T) {
	res := &cdnResolver{}
	r := New(&Config{Concurrency: 2}, res)

	out, err := r.Rewrite(t.Context(), mediaPlaylist, Context{
		Prefix: "episodes/abc/",
		Dir:    "720p/",
		Mode:   access.ModePublicCDN,
		Links:  links("abc"),
	})
	require.NoError(t, err)

	want := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:6.000,
https://cdn.example/episodes/abc/720p/seg0.ts
#EXTINF:6.000,
https://cdn.example/episodes/abc/720p/seg1.ts
#EXT-X-DISCONTINUITY
#EXTINF:4.000,
https://ads.example/ad0.ts
#EXTINF:6.000,
https://cdn.example/episodes/abc/720p/chunk-2.m4s
#EXT-X-PROGRAM-DATE-TIME:2026-01-01T00:00:00Z
unknown-feature.bin
#EXT-X-ENDLIST
`
	assert.Equal(t, want, out.Text)
	assert.ElementsMatch(t, []string{
		"episodes/abc/720p/seg0.ts",
		"episodes/abc/720p/seg1.ts",
		"episodes/abc/720p/chunk-2.m4s",
	}, res.keys)
}

func TestRewriteReferences(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		in   string
		want string
	}{
		{name: "root relative", dir: "720p/", in: "/seg.ts", want: "https://cdn.example/p/seg.ts"},
		{name: "parent dir", dir: "720p/", in: "../audio/a.aac", want: "https://cdn.example/p/audio/a.aac"},
		{name: "escaping prefix", dir: "", in: "../../etc/passwd.ts", want: "../../etc/passwd.ts"},
		{name: "query dropped", dir: "", in: "seg.ts?token=old", want: "https://cdn.example/p/seg.ts"},
		{name: "upper case ext", dir: "", in: "SEG.TS", want: "https://cdn.example/p/SEG.TS"},
		{name: "nested variant in dir", dir: "720p/", in: "alt.m3u8", want: "/manifest/x?variant=720p%2Falt.m3u8&mode=public-cdn"},
		{name: "absolute", dir: "", in: "s3://bucket/seg.ts", want: "s3://bucket/seg.ts"},
		{name: "crlf", dir: "", in: "a.ts\r\n#EXT-X-ENDLIST\r\n", want: "https://cdn.example/p/a.ts\r\n#EXT-X-ENDLIST\r\n"},
		{name: "no trailing newline", dir: "", in: "#EXTM3U\na.ts", want: "#EXTM3U\nhttps://cdn.example/p/a.ts"},
		{name: "indented", dir: "", in: "  a.ts  \n", want: "https://cdn.example/p/a.ts\n"},
		{name: "empty", dir: "", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&Config{}, &cdnResolver{})
			out, err := r.Rewrite(t.Context(), tt.in, Context{
				Prefix: "p/",
				Dir:    tt.dir,
				Mode:   access.ModePublicCDN,
				Links:  links("x"),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Text)
		})
	}
}

func TestRewriteTagURIs(t *testing.T) {
	in := `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="en",URI="audio/en.m3u8"
#EXT-X-MAP:URI="init.mp4",BYTERANGE="720@0"
#EXT-X-KEY:METHOD=AES-128,URI="key.bin"
#EXTINF:2,
seg.m4s
`

	t.Run("disabled", func(t *testing.T) {
		r := New(&Config{}, &cdnResolver{})
		out, err := r.Rewrite(t.Context(), in, Context{Prefix: "p/", Mode: access.ModePublicCDN, Links: links("x")})
		require.NoError(t, err)
		assert.Contains(t, out.Text, `URI="audio/en.m3u8"`)
		assert.Contains(t, out.Text, `#EXT-X-MAP:URI="init.mp4",BYTERANGE="720@0"`)
	})

	t.Run("enabled", func(t *testing.T) {
		r := New(&Config{RewriteTagURIs: true}, &cdnResolver{})
		out, err := r.Rewrite(t.Context(), in, Context{Prefix: "p/", Mode: access.ModePublicCDN, Links: links("x")})
		require.NoError(t, err)

		want := `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="en",URI="/manifest/x?variant=audio%2Fen.m3u8&mode=public-cdn"
#EXT-X-MAP:URI="https://cdn.example/p/init.mp4",BYTERANGE="720@0"
#EXT-X-KEY:METHOD=AES-128,URI="key.bin"
#EXTINF:2,
https://cdn.example/p/seg.m4s
`
		assert.Equal(t, want, out.Text)
	})
}

func TestRewriteIdempotent(t *testing.T) {
	r := New(&Config{}, &cdnResolver{})
	rc := Context{Prefix: "episodes/abc/", Mode: access.ModePublicCDN, Links: links("abc")}

	for _, text := range []string{masterPlaylist, mediaPlaylist} {
		first, err := r.Rewrite(t.Context(), text, rc)
		require.NoError(t, err)
		second, err := r.Rewrite(t.Context(), text, rc)
		require.NoError(t, err)
		assert.Equal(t, first.Text, second.Text)
	}
}

func TestRewritePreservesOrder(t *testing.T) {
	var in strings.Builder
	in.WriteString("#EXTM3U\n#EXT-X-TARGETDURATION:2\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&in, "#EXTINF:2,\nseg%03d.ts\n", i)
		if i%50 == 0 {
			in.WriteString("\n#EXT-X-DISCONTINUITY\n")
		}
	}
	in.WriteString("#EXT-X-ENDLIST\n")

	r := New(&Config{Concurrency: 8}, &cdnResolver{delay: time.Millisecond})
	out, err := r.Rewrite(t.Context(), in.String(), Context{Prefix: "p/", Mode: access.ModePublicCDN, Links: links("x")})
	require.NoError(t, err)

	inLines := strings.Split(in.String(), "\n")
	outLines := strings.Split(out.Text, "\n")
	require.Len(t, outLines, len(inLines))

	for i := range inLines {
		if inLines[i] == "" || strings.HasPrefix(inLines[i], "#") {
			assert.Equal(t, inLines[i], outLines[i], "line %d", i)
			continue
		}
		assert.Equal(t, "https://cdn.example/p/"+inLines[i], outLines[i], "line %d", i)
	}
}

func TestRewriteErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("mode required", func(t *testing.T) {
		r := New(&Config{}, &cdnResolver{})
		_, err := r.Rewrite(t.Context(), mediaPlaylist, Context{Prefix: "p/", Links: links("x")})
		assert.ErrorIs(t, err, ErrModeRequired)
	})

	t.Run("resolution failure fails the manifest", func(t *testing.T) {
		res := &cdnResolver{fail: map[string]bool{"p/seg1.ts": true}, delay: time.Millisecond}
		r := New(&Config{}, res)
		_, err := r.Rewrite(t.Context(), mediaPlaylist, Context{Prefix: "p/", Mode: access.ModeSignedDirect, Links: links("x")})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		r := New(&Config{}, &cdnResolver{delay: time.Second})
		_, err := r.Rewrite(ctx, mediaPlaylist, Context{Prefix: "p/", Mode: access.ModeSignedDirect, Links: links("x")})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// flakyTokens fails for every other key so that one response sees both
// protected and fallback resolutions.
type flakyTokens struct{}

func (flakyTokens) Configured() bool { return true }

func (flakyTokens) Mint(ctx context.Context, objectPath string, backendHint string) (*streamtoken.Token, error) {
	if strings.HasSuffix(objectPath, "seg1.ts") {
		return nil, &streamtoken.Failure{Reason: streamtoken.ReasonStatus, Status: 503}
	}
	return &streamtoken.Token{StreamUrl: "https://edge.test/" + objectPath + "?token=t"}, nil
}

type downTokens struct{}

func (downTokens) Configured() bool { return true }

func (downTokens) Mint(ctx context.Context, objectPath string, backendHint string) (*streamtoken.Token, error) {
	return nil, &streamtoken.Failure{Reason: streamtoken.ReasonTransport, Err: errors.New("dial tcp: refused")}
}

func TestRewriteModePropagation(t *testing.T) {
	playlist := `#EXTM3U
#EXTINF:6,
seg0.ts
#EXTINF:6,
seg1.ts
#EXT-X-STREAM-INF:BANDWIDTH=1
alt.m3u8
`

	t.Run("token service down", func(t *testing.T) {
		resolver := access.New(&access.Config{}, objectstoretest.New("r2"), downTokens{})
		r := New(&Config{}, resolver)

		out, err := r.Rewrite(t.Context(), playlist, Context{Prefix: "p/", Mode: access.ModeProtectedToken, Links: links("x")})
		require.NoError(t, err)
		assert.Equal(t, access.ModeSignedDirect, out.Mode)
		assert.Contains(t, out.Text, "variant=alt.m3u8&mode=signed-direct")
		assert.NotContains(t, out.Text, "protected-token")
		assert.Contains(t, out.Text, "https://r2.store.test/p/seg0.ts?")
	})

	t.Run("partial failure settles whole manifest", func(t *testing.T) {
		resolver := access.New(&access.Config{}, objectstoretest.New("r2"), flakyTokens{})
		r := New(&Config{}, resolver)

		out, err := r.Rewrite(t.Context(), playlist, Context{Prefix: "p/", Mode: access.ModeProtectedToken, Links: links("x")})
		require.NoError(t, err)
		assert.Equal(t, access.ModeSignedDirect, out.Mode)
		assert.NotContains(t, out.Text, "edge.test")
		assert.Contains(t, out.Text, "https://r2.store.test/p/seg0.ts?")
		assert.Contains(t, out.Text, "https://r2.store.test/p/seg1.ts?")
		assert.Contains(t, out.Text, "mode=signed-direct")
	})

	t.Run("token service up", func(t *testing.T) {
		resolver := access.New(&access.Config{}, objectstoretest.New("r2"), flakyTokens{})
		r := New(&Config{}, resolver)

		out, err := r.Rewrite(t.Context(), "#EXTM3U\nseg0.ts\nalt.m3u8\n", Context{Prefix: "p/", Mode: access.ModeProtectedToken, Links: links("x")})
		require.NoError(t, err)
		assert.Equal(t, access.ModeProtectedToken, out.Mode)
		assert.Equal(t, "#EXTM3U\nhttps://edge.test/p/seg0.ts?token=t\n/manifest/x?variant=alt.m3u8&mode=protected-token\n", out.Text)
	})
}

func TestDir(t *testing.T) {
	assert.Equal(t, "", Dir("master.m3u8"))
	assert.Equal(t, "720p/", Dir("720p/index.m3u8"))
	assert.Equal(t, "a/b/", Dir("a/b/c.m3u8"))
}
