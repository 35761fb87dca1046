package recommend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s166harth/lastfm-recommender/internal/store"
	"github.com/s166harth/lastfm-recommender/pkg/scrobble"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func storedPlay(song, artist, album string, at time.Time) scrobble.Scrobble {
	songID := scrobble.SongKey("", artist, song)
	return scrobble.Scrobble{
		ID:          scrobble.EventID(scrobble.SourceFile, songID, at),
		Source:      scrobble.SourceFile,
		SongID:      songID,
		ArtistID:    scrobble.ArtistKey("", artist),
		AlbumID:     scrobble.AlbumKey("", artist, album),
		Song:        song,
		Artist:      artist,
		Album:       album,
		PlayedAt:    at,
		CollectedAt: at,
	}
}

func TestEngineRefreshWindow(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	w := Trailing(5, now, nil)

	var scrobbles []scrobble.Scrobble
	for i := 0; i < 5; i++ {
		scrobbles = append(scrobbles, storedPlay("Only Shallow", "My Bloody Valentine", "Loveless",
			now.Add(-time.Duration(i)*24*time.Hour-time.Hour)))
	}
	scrobbles = append(scrobbles,
		storedPlay("Sometimes", "My Bloody Valentine", "Loveless", now.Add(-2*time.Hour)),
		storedPlay("1979", "The Smashing Pumpkins", "Mellon Collie", now.Add(-3*time.Hour)),
		// Outside the window: must not influence the result.
		storedPlay("Old Song", "The Smashing Pumpkins", "Gish", now.Add(-10*24*time.Hour)),
	)
	require.NoError(t, db.UpsertScrobbles(ctx, scrobbles))

	engine := NewEngine(db, nil, DefaultWeights, 5, time.UTC, nil)
	result, err := engine.RefreshWindow(ctx, w)
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 3)
	assert.Equal(t, 7, result.Scrobbles)
	assert.Zero(t, result.Skipped)

	top := result.Recommendations[0]
	assert.Equal(t, 1, top.Position)
	assert.Equal(t, "Only Shallow", top.Song)
	assert.Equal(t, "My Bloody Valentine", top.Artist)
	assert.Equal(t, 5, top.PlayCount)
	assert.Equal(t, 5, top.UniqueDays)
	assert.Equal(t, 6, top.ArtistPlays)
	assert.Equal(t, 6, top.AlbumPlays)
	// 5*1.0 + 5*1.5 + 6*0.5 + 6*0.3 = 17.3
	assert.InDelta(t, 17.3, top.Score, 1e-9)

	// The persisted list matches what the engine returned.
	persisted, err := db.ListRecommendations(ctx, store.RecListOpts{})
	require.NoError(t, err)
	require.Len(t, persisted, 3)
	for i := range persisted {
		assert.Equal(t, result.Recommendations[i].SongID, persisted[i].SongID)
		assert.Equal(t, result.Recommendations[i].Position, persisted[i].Position)
		assert.InDelta(t, result.Recommendations[i].Score, persisted[i].Score, 1e-9)
	}
}

func TestEngineRefreshIdempotent(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	w := Trailing(5, now, nil)

	require.NoError(t, db.UpsertScrobbles(ctx, []scrobble.Scrobble{
		storedPlay("Roygbiv", "Boards of Canada", "Music Has the Right to Children", now.Add(-time.Hour)),
		storedPlay("Roygbiv", "Boards of Canada", "Music Has the Right to Children", now.Add(-25*time.Hour)),
	}))

	engine := NewEngine(db, nil, DefaultWeights, 5, time.UTC, nil)

	first, err := engine.RefreshWindow(ctx, w)
	require.NoError(t, err)
	second, err := engine.RefreshWindow(ctx, w)
	require.NoError(t, err)

	require.Equal(t, len(first.Recommendations), len(second.Recommendations))
	for i := range first.Recommendations {
		assert.Equal(t, first.Recommendations[i].SongID, second.Recommendations[i].SongID)
		assert.Equal(t, first.Recommendations[i].Position, second.Recommendations[i].Position)
		assert.Equal(t, first.Recommendations[i].Score, second.Recommendations[i].Score)
	}
}

func TestEngineAppliesFilter(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	w := Trailing(5, now, nil)

	require.NoError(t, db.UpsertScrobbles(ctx, []scrobble.Scrobble{
		storedPlay("Episode 412", "Some Podcast", "", now.Add(-time.Hour)),
		storedPlay("Windowlicker", "Aphex Twin", "", now.Add(-2*time.Hour)),
	}))

	filter := scrobble.NewFilter([]string{"Some Podcast"}, nil)
	engine := NewEngine(db, filter, DefaultWeights, 5, time.UTC, nil)

	result, err := engine.RefreshWindow(ctx, w)
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "Windowlicker", result.Recommendations[0].Song)
}

func TestEngineEmptyHistory(t *testing.T) {
	db := newTestStore(t)

	engine := NewEngine(db, nil, DefaultWeights, 5, time.UTC, nil)
	result, err := engine.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Recommendations)
}

func TestEngineRejectsInvalidWindow(t *testing.T) {
	db := newTestStore(t)

	engine := NewEngine(db, nil, DefaultWeights, 5, time.UTC, nil)
	now := time.Now().UTC()
	_, err := engine.RefreshWindow(context.Background(), Window{Start: now, End: now.Add(-time.Hour), Location: time.UTC})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid window")
}
