package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/s166harth/lastfm-recommender/internal/store"
	"github.com/s166harth/lastfm-recommender/pkg/scrobble"
)

// Engine runs the full scoring pass: load the window of scrobbles from
// the store, filter, aggregate, rank, and persist the result. The
// aggregation and scoring themselves are pure; the engine is the only
// piece that touches storage.
type Engine struct {
	store      store.Store
	filter     *scrobble.Filter
	weights    Weights
	windowDays int
	loc        *time.Location
	log        *logrus.Entry
}

// NewEngine creates a scoring engine. Zero weights fall back to
// DefaultWeights, a nil location to UTC.
func NewEngine(s store.Store, filter *scrobble.Filter, weights Weights, windowDays int, loc *time.Location, log *logrus.Entry) *Engine {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		store:      s,
		filter:     filter,
		weights:    weights,
		windowDays: windowDays,
		loc:        loc,
		log:        log,
	}
}

// RefreshResult reports one completed scoring run.
type RefreshResult struct {
	Recommendations []store.Recommendation
	Window          Window
	Scrobbles       int // in-window events considered
	Skipped         int // malformed events rejected
}

// Refresh recomputes the ranking over the trailing window and replaces
// the persisted recommendation list. Each run is a full batch pass;
// nothing is carried over from the previous one.
func (e *Engine) Refresh(ctx context.Context) (*RefreshResult, error) {
	w := Trailing(e.windowDays, time.Now().UTC(), e.loc)
	return e.RefreshWindow(ctx, w)
}

// RefreshWindow is Refresh with an explicit window, for callers that
// need a fixed reference time.
func (e *Engine) RefreshWindow(ctx context.Context, w Window) (*RefreshResult, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}

	scrobbles, err := e.store.ListScrobbles(ctx, store.ListOpts{From: w.Start, To: w.End})
	if err != nil {
		return nil, fmt.Errorf("list scrobbles: %w", err)
	}
	scrobbles = e.filter.Apply(scrobbles)

	agg, err := Aggregate(scrobbles, w)
	if err != nil {
		return nil, err
	}
	if agg.Skipped > 0 {
		e.log.WithField("skipped", agg.Skipped).Warn("rejected malformed scrobbles")
	}

	ranked := Rank(agg, e.weights)

	// Ranked rows carry ids only; pick up display names from the
	// scrobbles that produced them.
	names := make(map[string]*scrobble.Scrobble, len(ranked))
	for i := range scrobbles {
		if _, ok := names[scrobbles[i].SongID]; !ok {
			names[scrobbles[i].SongID] = &scrobbles[i]
		}
	}

	now := time.Now().UTC()
	recs := make([]store.Recommendation, len(ranked))
	for i, s := range ranked {
		rec := store.Recommendation{
			Position:    i + 1,
			SongID:      s.SongID,
			ArtistID:    s.ArtistID,
			AlbumID:     s.AlbumID,
			PlayCount:   s.PlayCount,
			UniqueDays:  s.UniqueDays,
			ArtistPlays: s.ArtistTotalPlays,
			AlbumPlays:  s.AlbumTotalPlays,
			Score:       s.FinalScore,
			WindowStart: w.Start,
			WindowEnd:   w.End,
			GeneratedAt: now,
		}
		if sc := names[s.SongID]; sc != nil {
			rec.Song = sc.Song
			rec.Artist = sc.Artist
			rec.Album = sc.Album
		}
		recs[i] = rec
	}

	if err := e.store.ReplaceRecommendations(ctx, recs); err != nil {
		return nil, fmt.Errorf("persist recommendations: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"scrobbles": len(scrobbles),
		"songs":     len(recs),
		"skipped":   agg.Skipped,
	}).Info("recommendations refreshed")

	return &RefreshResult{
		Recommendations: recs,
		Window:          w,
		Scrobbles:       len(scrobbles),
		Skipped:         agg.Skipped,
	}, nil
}
