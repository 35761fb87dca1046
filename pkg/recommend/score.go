package recommend

import "sort"

// Weights are the fixed scoring coefficients. They are injected into
// Rank rather than read as globals so tests can probe sensitivity
// without touching shared state.
type Weights struct {
	Frequency      float64 `yaml:"frequency" json:"frequency"`
	Consistency    float64 `yaml:"consistency" json:"consistency"`
	ArtistAffinity float64 `yaml:"artist_affinity" json:"artist_affinity"`
	AlbumAffinity  float64 `yaml:"album_affinity" json:"album_affinity"`
}

// DefaultWeights favors spread-out listening over raw volume.
var DefaultWeights = Weights{
	Frequency:      1.0,
	Consistency:    1.5,
	ArtistAffinity: 0.5,
	AlbumAffinity:  0.3,
}

// Score computes the weighted sum for one song's component values.
func (w Weights) Score(playCount, uniqueDays, artistPlays, albumPlays int) float64 {
	return float64(playCount)*w.Frequency +
		float64(uniqueDays)*w.Consistency +
		float64(artistPlays)*w.ArtistAffinity +
		float64(albumPlays)*w.AlbumAffinity
}

// ScoredSong is one ranked output row: the four component values and
// the final score, fully re-derivable from the same input.
type ScoredSong struct {
	SongID           string  `json:"song_id"`
	ArtistID         string  `json:"artist_id"`
	AlbumID          string  `json:"album_id,omitempty"`
	PlayCount        int     `json:"play_count"`
	UniqueDays       int     `json:"unique_days"`
	ArtistTotalPlays int     `json:"artist_total_plays"`
	AlbumTotalPlays  int     `json:"album_total_plays"`
	FinalScore       float64 `json:"final_score"`
}

// Rank scores every aggregated song and returns them ordered by final
// score descending. Ties break on unique days descending, then song id
// ascending, so output is reproducible across runs. Empty input yields
// an empty list.
func Rank(agg *Aggregates, w Weights) []ScoredSong {
	scored := make([]ScoredSong, 0, len(agg.Songs))

	for _, song := range agg.Songs {
		artistPlays := 0
		if a := agg.Artists[song.ArtistID]; a != nil {
			artistPlays = a.TotalPlays
		}
		albumPlays := 0
		if song.AlbumID != "" {
			if a := agg.Albums[song.AlbumID]; a != nil {
				albumPlays = a.TotalPlays
			}
		}

		uniqueDays := song.UniqueDays()
		scored = append(scored, ScoredSong{
			SongID:           song.SongID,
			ArtistID:         song.ArtistID,
			AlbumID:          song.AlbumID,
			PlayCount:        song.PlayCount,
			UniqueDays:       uniqueDays,
			ArtistTotalPlays: artistPlays,
			AlbumTotalPlays:  albumPlays,
			FinalScore:       w.Score(song.PlayCount, uniqueDays, artistPlays, albumPlays),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		if scored[i].UniqueDays != scored[j].UniqueDays {
			return scored[i].UniqueDays > scored[j].UniqueDays
		}
		return scored[i].SongID < scored[j].SongID
	})

	return scored
}
