// Package mimetype maps media MIME types to coarse podcast content
// categories and derives podcast-level content types from episode files.
package mimetype

import (
	"mime"
	"path"
	"sort"
	"strings"
)

// TypeThreshold is the minimum ratio of episodes that must carry a
// category before the podcast as a whole is considered to be of that
// category.
const TypeThreshold = 0.2

// Extensions that Go's built-in table does not know about. The system
// mime.types file is not consulted so classification stays deterministic
// across hosts.
var extraTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".m4b":  "audio/mp4",
	".aac":  "audio/aac",
	".oga":  "audio/ogg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".ogv":  "video/ogg",
	".jpg":  "image/jpeg",
	".jpe":  "image/jpeg",
	".bmp":  "image/bmp",
	".ico":  "image/vnd.microsoft.icon",
}

// Type returns the simplified category for a MIME type: one of "audio",
// "video", "image", "vimeo", or "" for everything else.
func Type(mimetype string) string {
	if mimetype == "" {
		return ""
	}
	category, subtype, found := strings.Cut(mimetype, "/")
	if !found {
		return ""
	}
	switch category {
	case "audio", "video", "image":
		return category
	}
	switch subtype {
	case "ogg":
		return "audio"
	case "x-youtube":
		return "video"
	case "x-vimeo":
		return "vimeo"
	}
	return ""
}

// Guess returns the declared MIME type, or guesses one from the URL's
// file extension. A trailing .torrent is stripped first so that
// torrent-wrapped enclosures classify as the wrapped media type.
func Guess(declared, url string) string {
	if declared != "" {
		return declared
	}
	url = strings.TrimSuffix(url, ".torrent")
	ext := strings.ToLower(path.Ext(stripQuery(url)))
	if ext == "" {
		return ""
	}
	if t, ok := extraTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		// TypeByExtension may append a charset parameter.
		t, _, _ = strings.Cut(t, ";")
		return strings.TrimSpace(t)
	}
	return ""
}

func stripQuery(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}

// PodcastTypes returns the categories of a podcast given the MIME types
// of all its episode files, most frequent first. A category is included
// when its share of classified files is at least TypeThreshold.
func PodcastTypes(mimetypes []string) []string {
	counts := make(map[string]int)
	order := make(map[string]int)
	total := 0
	for _, m := range mimetypes {
		t := Type(m)
		if t == "" {
			continue
		}
		if _, seen := counts[t]; !seen {
			order[t] = len(order)
		}
		counts[t]++
		total++
	}
	if total == 0 {
		return nil
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.SliceStable(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return order[types[i]] < order[types[j]]
	})

	result := make([]string, 0, len(types))
	for _, t := range types {
		if float64(counts[t])/float64(total) >= TypeThreshold {
			result = append(result, t)
		}
	}
	return result
}
