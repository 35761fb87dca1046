package recommend

import (
	"github.com/s166harth/lastfm-recommender/pkg/scrobble"
)

// SongAggregate holds the per-song counts derived from one window of
// scrobbles. Days is the set of distinct calendar-day keys the song was
// played on; it stays a set rather than a count so partial aggregates
// can be merged by union without double-counting days split across
// partitions.
type SongAggregate struct {
	SongID    string
	ArtistID  string
	AlbumID   string
	PlayCount int
	Days      map[string]struct{}
}

// UniqueDays is the consistency metric: distinct calendar days with at
// least one play.
func (a *SongAggregate) UniqueDays() int { return len(a.Days) }

// ArtistAggregate is the raw scrobble count for an artist in the window.
type ArtistAggregate struct {
	ArtistID   string
	TotalPlays int
}

// AlbumAggregate is the raw scrobble count for an album in the window.
type AlbumAggregate struct {
	AlbumID    string
	TotalPlays int
}

// Aggregates is the derived index over one window: three tables keyed by
// identifier, computed once per run and discarded after scoring. Songs
// with zero in-window plays never appear. Skipped counts malformed
// events (missing song id or timestamp) that were rejected rather than
// allowed to corrupt the counts.
type Aggregates struct {
	Songs   map[string]*SongAggregate
	Artists map[string]*ArtistAggregate
	Albums  map[string]*AlbumAggregate
	Skipped int
}

// NewAggregates returns an empty aggregate index.
func NewAggregates() *Aggregates {
	return &Aggregates{
		Songs:   make(map[string]*SongAggregate),
		Artists: make(map[string]*ArtistAggregate),
		Albums:  make(map[string]*AlbumAggregate),
	}
}

// Aggregate builds the three tables from a batch of scrobbles. Events
// outside the window are ignored; malformed events are counted in
// Skipped. The input order does not affect the result. Returns an error
// only for an invalid window.
func Aggregate(scrobbles []scrobble.Scrobble, w Window) (*Aggregates, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	agg := NewAggregates()
	for i := range scrobbles {
		agg.add(&scrobbles[i], w)
	}
	return agg, nil
}

func (a *Aggregates) add(s *scrobble.Scrobble, w Window) {
	if err := s.Validate(); err != nil {
		a.Skipped++
		return
	}
	if !w.Contains(s.PlayedAt) {
		return
	}

	song := a.Songs[s.SongID]
	if song == nil {
		song = &SongAggregate{
			SongID:   s.SongID,
			ArtistID: s.ArtistID,
			AlbumID:  s.AlbumID,
			Days:     make(map[string]struct{}),
		}
		a.Songs[s.SongID] = song
	}
	song.PlayCount++
	song.Days[w.DayKey(s.PlayedAt)] = struct{}{}

	// Missing artist or album id excludes the event from that axis
	// only; the song still scores on the remaining components.
	if s.ArtistID != "" {
		artist := a.Artists[s.ArtistID]
		if artist == nil {
			artist = &ArtistAggregate{ArtistID: s.ArtistID}
			a.Artists[s.ArtistID] = artist
		}
		artist.TotalPlays++
	}

	if s.AlbumID != "" {
		album := a.Albums[s.AlbumID]
		if album == nil {
			album = &AlbumAggregate{AlbumID: s.AlbumID}
			a.Albums[s.AlbumID] = album
		}
		album.TotalPlays++
	}
}

// Merge folds another partial aggregate into this one: play counts add,
// day sets union. All three operations are associative and commutative,
// so a partitioned input can be aggregated shard-by-shard and merged in
// any order.
func (a *Aggregates) Merge(other *Aggregates) {
	for id, song := range other.Songs {
		mine := a.Songs[id]
		if mine == nil {
			mine = &SongAggregate{
				SongID:   song.SongID,
				ArtistID: song.ArtistID,
				AlbumID:  song.AlbumID,
				Days:     make(map[string]struct{}),
			}
			a.Songs[id] = mine
		}
		mine.PlayCount += song.PlayCount
		for day := range song.Days {
			mine.Days[day] = struct{}{}
		}
	}

	for id, artist := range other.Artists {
		mine := a.Artists[id]
		if mine == nil {
			mine = &ArtistAggregate{ArtistID: id}
			a.Artists[id] = mine
		}
		mine.TotalPlays += artist.TotalPlays
	}

	for id, album := range other.Albums {
		mine := a.Albums[id]
		if mine == nil {
			mine = &AlbumAggregate{AlbumID: id}
			a.Albums[id] = mine
		}
		mine.TotalPlays += album.TotalPlays
	}

	a.Skipped += other.Skipped
}
