package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s166harth/lastfm-recommender/internal/store"
	"github.com/s166harth/lastfm-recommender/pkg/notify"
	"github.com/s166harth/lastfm-recommender/pkg/recommend"
	"github.com/s166harth/lastfm-recommender/pkg/scrobble"
)

type stubSource struct {
	scrobbles []scrobble.Scrobble
}

func (s *stubSource) Name() scrobble.SourceType { return scrobble.SourceFile }

func (s *stubSource) Fetch(ctx context.Context, from, to time.Time) ([]scrobble.Scrobble, error) {
	return s.scrobbles, nil
}

type captureNotifier struct {
	mu      sync.Mutex
	digests []*notify.Digest
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Send(ctx context.Context, d *notify.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.digests = append(c.digests, d)
	return nil
}

func seed(song, artist string, at time.Time) scrobble.Scrobble {
	songID := scrobble.SongKey("", artist, song)
	return scrobble.Scrobble{
		ID:          scrobble.EventID(scrobble.SourceFile, songID, at),
		Source:      scrobble.SourceFile,
		SongID:      songID,
		ArtistID:    scrobble.ArtistKey("", artist),
		Song:        song,
		Artist:      artist,
		PlayedAt:    at,
		CollectedAt: at,
	}
}

func TestFetchAndDigestCycle(t *testing.T) {
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC().Truncate(time.Second)
	src := &stubSource{scrobbles: []scrobble.Scrobble{
		seed("Xtal", "Aphex Twin", now.Add(-time.Hour)),
		seed("Xtal", "Aphex Twin", now.Add(-25*time.Hour)),
		seed("Roygbiv", "Boards of Canada", now.Add(-2*time.Hour)),
	}}

	engine := recommend.NewEngine(db, nil, recommend.DefaultWeights, 5, time.UTC, nil)
	capture := &captureNotifier{}
	mgr := notify.NewManager([]notify.Notifier{capture})

	sched := New(db, []scrobble.Source{src}, engine, mgr, time.Hour, time.Hour, 5, time.UTC, 10, nil)

	ctx := context.Background()
	sched.fetchAll(ctx)

	stored, err := db.ListScrobbles(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	sched.refreshAndDigest(ctx)

	recs, err := db.ListRecommendations(ctx, store.RecListOpts{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Notified)
	assert.True(t, recs[1].Notified)

	require.Len(t, capture.digests, 1)
	assert.Len(t, capture.digests[0].Songs, 2)

	// A second cycle with no new songs sends nothing.
	sched.refreshAndDigest(ctx)
	assert.Len(t, capture.digests, 1)
}

func TestDigestOnlyAnnouncesNewEntrants(t *testing.T) {
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC().Truncate(time.Second)
	src := &stubSource{scrobbles: []scrobble.Scrobble{
		seed("Xtal", "Aphex Twin", now.Add(-time.Hour)),
	}}

	engine := recommend.NewEngine(db, nil, recommend.DefaultWeights, 5, time.UTC, nil)
	capture := &captureNotifier{}
	mgr := notify.NewManager([]notify.Notifier{capture})
	sched := New(db, []scrobble.Source{src}, engine, mgr, time.Hour, time.Hour, 5, time.UTC, 10, nil)

	ctx := context.Background()
	sched.fetchAll(ctx)
	sched.refreshAndDigest(ctx)
	require.Len(t, capture.digests, 1)

	// A new song enters the rotation; only it gets announced.
	src.scrobbles = append(src.scrobbles, seed("Roygbiv", "Boards of Canada", now.Add(-2*time.Hour)))
	sched.fetchAll(ctx)
	sched.refreshAndDigest(ctx)

	require.Len(t, capture.digests, 2)
	songs := capture.digests[1].Songs
	require.Len(t, songs, 1)
	assert.Equal(t, "Roygbiv", songs[0].Song)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	engine := recommend.NewEngine(db, nil, recommend.DefaultWeights, 5, time.UTC, nil)
	sched := New(db, nil, engine, notify.NewManager(nil), time.Hour, time.Hour, 5, time.UTC, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
