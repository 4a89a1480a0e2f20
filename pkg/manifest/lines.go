package manifest

import (
	"path"
	"regexp"
	"strings"
)

var absoluteRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)

var uriAttrRegex = regexp.MustCompile(`URI="([^"]*)"`)

var segmentExtensions = map[string]struct{}{
	".ts":     {},
	".m4s":    {},
	".mp4":    {},
	".m4a":    {},
	".m4v":    {},
	".cmfv":   {},
	".cmfa":   {},
	".cmft":   {},
	".aac":    {},
	".ac3":    {},
	".ec3":    {},
	".mp3":    {},
	".vtt":    {},
	".webvtt": {},
}

// tags whose URI attribute points at a manifest or media
var uriTags = []string{
	"#EXT-X-MAP:",
	"#EXT-X-MEDIA:",
	"#EXT-X-I-FRAME-STREAM-INF:",
	"#EXT-X-SESSION-DATA:",
}

type refKind int

const (
	refNone refKind = iota
	refSegment
	refVariant
)

type line struct {
	raw    string // without line ending
	ending string

	ref refKind
	rel string // reference relative to the content prefix

	// for URI attributes, text around the replaced value
	before, after string
}

// splitLines keeps line endings so that output can be reassembled verbatim.
func splitLines(text string) []line {
	chunks := strings.SplitAfter(text, "\n")
	lines := make([]line, 0, len(chunks))

	for i, chunk := range chunks {
		// SplitAfter yields a trailing empty chunk after a final newline
		if chunk == "" && i == len(chunks)-1 {
			break
		}

		l := line{raw: chunk}
		switch {
		case strings.HasSuffix(chunk, "\r\n"):
			l.raw, l.ending = chunk[:len(chunk)-2], "\r\n"
		case strings.HasSuffix(chunk, "\n"):
			l.raw, l.ending = chunk[:len(chunk)-1], "\n"
		}
		lines = append(lines, l)
	}

	return lines
}

// classify decides what a reference is and where it lives. References
// escaping the prefix are not touched.
func classify(ref string, dir string) (refKind, string) {
	if ref == "" || absoluteRegex.MatchString(ref) {
		return refNone, ""
	}

	p := ref
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return refNone, ""
	}

	var rel string
	if strings.HasPrefix(p, "/") {
		rel = path.Clean(strings.TrimLeft(p, "/"))
	} else {
		rel = path.Clean(path.Join(dir, p))
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return refNone, ""
	}

	ext := strings.ToLower(path.Ext(rel))
	if ext == ".m3u8" {
		return refVariant, rel
	}
	if _, ok := segmentExtensions[ext]; ok {
		return refSegment, rel
	}
	return refNone, ""
}

func parse(text string, dir string, tagURIs bool) []line {
	lines := splitLines(text)

	for i := range lines {
		l := &lines[i]
		trimmed := strings.TrimSpace(l.raw)

		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			if !tagURIs || !hasURITag(trimmed) {
				continue
			}

			loc := uriAttrRegex.FindStringSubmatchIndex(l.raw)
			if loc == nil {
				continue
			}

			l.ref, l.rel = classify(l.raw[loc[2]:loc[3]], dir)
			l.before, l.after = l.raw[:loc[2]], l.raw[loc[3]:]
			continue
		}

		l.ref, l.rel = classify(trimmed, dir)
	}

	return lines
}

func hasURITag(directive string) bool {
	for _, tag := range uriTags {
		if strings.HasPrefix(directive, tag) {
			return true
		}
	}
	return false
}

// Dir returns the directory part of a manifest path relative to the
// content prefix, with a trailing slash.
func Dir(variant string) string {
	dir := path.Dir(variant)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + "/"
}
