package scrobble

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FileSource imports scrobbles from flat JSON export files on disk, for
// offline use when the API is unreachable or history predates it.
type FileSource struct {
	paths []string
}

// NewFileSource creates a collector over export files.
func NewFileSource(paths []string) *FileSource {
	return &FileSource{paths: paths}
}

func (f *FileSource) Name() SourceType { return SourceFile }

// exportEntry is one row of a flat listening-history export.
type exportEntry struct {
	Track      string `json:"track"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	UTS        int64  `json:"uts"`
	TrackMBID  string `json:"track_mbid"`
	ArtistMBID string `json:"artist_mbid"`
	AlbumMBID  string `json:"album_mbid"`
}

func (f *FileSource) Fetch(ctx context.Context, from, to time.Time) ([]Scrobble, error) {
	now := time.Now().UTC()
	var all []Scrobble

	for _, path := range f.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := readExport(path)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			playedAt := time.Unix(e.UTS, 0).UTC()
			if playedAt.Before(from) || playedAt.After(to) {
				continue
			}

			songID := SongKey(e.TrackMBID, e.Artist, e.Track)
			all = append(all, Scrobble{
				ID:          EventID(SourceFile, songID, playedAt),
				Source:      SourceFile,
				SongID:      songID,
				ArtistID:    ArtistKey(e.ArtistMBID, e.Artist),
				AlbumID:     AlbumKey(e.AlbumMBID, e.Artist, e.Album),
				Song:        e.Track,
				Artist:      e.Artist,
				Album:       e.Album,
				PlayedAt:    playedAt,
				CollectedAt: now,
			})
		}
	}

	return all, nil
}

func readExport(path string) ([]exportEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", path, err)
	}

	var entries []exportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse export %s: %w", path, err)
	}
	return entries, nil
}
