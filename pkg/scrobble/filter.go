package scrobble

import "strings"

// Filter drops scrobbles whose artist or title matches an exclude list.
// Typical use: podcasts, audiobooks, and sleep/white-noise tracks that
// would otherwise dominate a play-count ranking.
type Filter struct {
	excludeArtists  []string
	excludeKeywords []string
}

// NewFilter creates a filter from config-provided exclude lists.
// Matching is case-insensitive; artists match exactly, keywords match as
// substrings of the song or album title.
func NewFilter(excludeArtists, excludeKeywords []string) *Filter {
	artists := make([]string, len(excludeArtists))
	for i, a := range excludeArtists {
		artists[i] = strings.ToLower(strings.TrimSpace(a))
	}
	keywords := make([]string, len(excludeKeywords))
	for i, k := range excludeKeywords {
		keywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
	return &Filter{excludeArtists: artists, excludeKeywords: keywords}
}

// Keep reports whether the scrobble survives the exclude lists.
func (f *Filter) Keep(s *Scrobble) bool {
	if f == nil {
		return true
	}

	artist := strings.ToLower(s.Artist)
	for _, ex := range f.excludeArtists {
		if artist == ex {
			return false
		}
	}

	text := strings.ToLower(s.Song + " " + s.Album)
	for _, kw := range f.excludeKeywords {
		if kw != "" && strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

// Apply returns the scrobbles that survive the filter.
func (f *Filter) Apply(scrobbles []Scrobble) []Scrobble {
	if f == nil || (len(f.excludeArtists) == 0 && len(f.excludeKeywords) == 0) {
		return scrobbles
	}

	kept := make([]Scrobble, 0, len(scrobbles))
	for i := range scrobbles {
		if f.Keep(&scrobbles[i]) {
			kept = append(kept, scrobbles[i])
		}
	}
	return kept
}
