package scrobble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceType identifies where a scrobble was collected from.
type SourceType string

const (
	SourceLastFM SourceType = "lastfm"
	SourceFeed   SourceType = "feed"
	SourceFile   SourceType = "file"
)

// Scrobble is one recorded play of a song at a specific time. It is the
// standardized data model for all sources.
type Scrobble struct {
	ID          string     `json:"id" db:"id"`
	Source      SourceType `json:"source" db:"source"`
	SongID      string     `json:"song_id" db:"song_id"`
	ArtistID    string     `json:"artist_id" db:"artist_id"`
	AlbumID     string     `json:"album_id" db:"album_id"`
	Song        string     `json:"song" db:"song"`
	Artist      string     `json:"artist" db:"artist"`
	Album       string     `json:"album" db:"album"`
	PlayedAt    time.Time  `json:"played_at" db:"played_at"`
	CollectedAt time.Time  `json:"collected_at" db:"collected_at"`
}

// Validation errors for malformed events.
var (
	ErrMissingSongID    = errors.New("scrobble missing song id")
	ErrMissingTimestamp = errors.New("scrobble missing timestamp")
)

// Validate reports whether the scrobble carries the fields aggregation
// cannot do without. Missing artist or album ids are not errors; those
// axes simply degrade to zero affinity.
func (s *Scrobble) Validate() error {
	if s.SongID == "" {
		return ErrMissingSongID
	}
	if s.PlayedAt.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// Source is the interface every collector must implement. Fetch returns
// scrobbles played within [from, to].
type Source interface {
	Name() SourceType
	Fetch(ctx context.Context, from, to time.Time) ([]Scrobble, error)
}

// AllSourceTypes returns all known source types.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceLastFM, SourceFeed, SourceFile}
}

// SongKey derives a stable song identifier: the MusicBrainz id when the
// source provides one, otherwise a normalized artist/title key. Two
// scrobbles of the same track must map to the same key regardless of
// which page or source they arrived on.
func SongKey(mbid, artist, title string) string {
	if mbid != "" {
		return mbid
	}
	return normalize(artist) + "/" + normalize(title)
}

// ArtistKey derives a stable artist identifier.
func ArtistKey(mbid, artist string) string {
	if mbid != "" {
		return mbid
	}
	return normalize(artist)
}

// AlbumKey derives a stable album identifier, scoped by artist since
// album titles collide across artists. Returns "" when the album is
// unknown.
func AlbumKey(mbid, artist, album string) string {
	if mbid != "" {
		return mbid
	}
	if album == "" {
		return ""
	}
	return normalize(artist) + "/" + normalize(album)
}

// EventID builds the scrobble's primary key. A listener can play the
// same song twice in one second on different devices, so the source is
// part of the key.
func EventID(src SourceType, songID string, playedAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", src, songID, playedAt.Unix())
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
