package feed

import (
	"strings"
)

// NormalizeLink canonicalizes an item URL into the per-owner dedup key.
// The exact sequence of transformations is load-bearing: the result is the
// uniqueness key in the article store, so two renditions of the same URL
// must collapse to the identical string.
//
//	trim whitespace -> lowercase -> http:// becomes https:// ->
//	leading www. stripped -> query string dropped
func NormalizeLink(raw string) string {
	link := strings.ToLower(strings.TrimSpace(raw))

	if rest, ok := strings.CutPrefix(link, "http://"); ok {
		link = "https://" + rest
	}
	if rest, ok := strings.CutPrefix(link, "https://www."); ok {
		link = "https://" + rest
	}
	if idx := strings.IndexByte(link, '?'); idx >= 0 {
		link = link[:idx]
	}

	return link
}
