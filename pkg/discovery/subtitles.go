package discovery

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/m1k1o/go-playgate/pkg/objectstore"
)

type Track struct {
	Label    string
	Language string
	Key      string
}

var namer = display.English.Tags()

// numbered chunks of a segmented WebVTT rendition, like seg_0001 or
// fileSequence12, belong to a subtitle playlist and are not tracks
var chunkRegex = regexp.MustCompile(`(?i)^(seg|segment|chunk|part|fileSequence|sub|subs|subtitles?)?[._-]?[0-9]+$`)

// Subtitles returns a track for every standalone .vtt object, in listing
// order.
func Subtitles(objects []objectstore.Object) []Track {
	tracks := []Track{}

	for _, obj := range objects {
		if !strings.EqualFold(path.Ext(obj.Key), ".vtt") {
			continue
		}

		name := path.Base(obj.Key)
		stem := name[:len(name)-len(path.Ext(name))]
		if chunkRegex.MatchString(stem) {
			continue
		}

		track := Track{
			Label:    stem,
			Language: language.Und.String(),
			Key:      obj.Key,
		}

		if tag, ok := languageOf(stem); ok {
			track.Language = tag.String()
			if label := namer.Name(tag); label != "" {
				track.Label = label
			}
		}

		tracks = append(tracks, track)
	}

	return tracks
}

// languageOf reads a trailing language code from names like "movie.en",
// "movie_pt-BR" or "de".
func languageOf(stem string) (language.Tag, bool) {
	parts := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '.' || r == '_' || r == ' '
	})
	if len(parts) == 0 {
		return language.Und, false
	}

	code := parts[len(parts)-1]
	base, _, _ := strings.Cut(code, "-")
	if len(base) < 2 || len(base) > 3 {
		return language.Und, false
	}

	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return language.Und, false
	}

	return tag, true
}
