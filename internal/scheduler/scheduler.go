package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/s166harth/lastfm-recommender/internal/store"
	"github.com/s166harth/lastfm-recommender/pkg/notify"
	"github.com/s166harth/lastfm-recommender/pkg/recommend"
	"github.com/s166harth/lastfm-recommender/pkg/scrobble"
)

// Scheduler runs periodic scrobble collection and recommendation
// refreshes, dispatching digests for songs that newly enter the list.
type Scheduler struct {
	store       store.Store
	sources     []scrobble.Source
	engine      *recommend.Engine
	digestMgr   *notify.Manager
	fetchInt    time.Duration
	refreshInt  time.Duration
	windowDays  int
	loc         *time.Location
	digestLimit int
	log         *logrus.Entry
}

// New creates a new scheduler.
func New(
	s store.Store,
	sources []scrobble.Source,
	engine *recommend.Engine,
	digestMgr *notify.Manager,
	fetchInt, refreshInt time.Duration,
	windowDays int,
	loc *time.Location,
	digestLimit int,
	log *logrus.Entry,
) *Scheduler {
	if fetchInt == 0 {
		fetchInt = time.Hour
	}
	if refreshInt == 0 {
		refreshInt = 6 * time.Hour
	}
	if windowDays <= 0 {
		windowDays = recommend.DefaultWindowDays
	}
	if digestLimit <= 0 {
		digestLimit = 10
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		store:       s,
		sources:     sources,
		engine:      engine,
		digestMgr:   digestMgr,
		fetchInt:    fetchInt,
		refreshInt:  refreshInt,
		windowDays:  windowDays,
		loc:         loc,
		digestLimit: digestLimit,
		log:         log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	fetchTicker := time.NewTicker(s.fetchInt)
	refreshTicker := time.NewTicker(s.refreshInt)
	defer fetchTicker.Stop()
	defer refreshTicker.Stop()

	// Run immediately on start.
	s.log.Info("scheduler: initial fetch")
	s.fetchAll(ctx)
	s.log.Info("scheduler: initial refresh")
	s.refreshAndDigest(ctx)

	s.log.WithFields(logrus.Fields{
		"fetch_every":   s.fetchInt.String(),
		"refresh_every": s.refreshInt.String(),
	}).Info("scheduler: running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler: stopped")
			return ctx.Err()
		case <-fetchTicker.C:
			s.fetchAll(ctx)
		case <-refreshTicker.C:
			s.refreshAndDigest(ctx)
		}
	}
}

func (s *Scheduler) fetchAll(ctx context.Context) {
	w := recommend.Trailing(s.windowDays, time.Now().UTC(), s.loc)

	total := 0
	for _, src := range s.sources {
		scrobbles, err := src.Fetch(ctx, w.Start, w.End)
		if err != nil {
			s.log.WithError(err).Warnf("fetch %s failed", src.Name())
			continue
		}

		if err := s.store.UpsertScrobbles(ctx, scrobbles); err != nil {
			s.log.WithError(err).Warnf("store %s scrobbles failed", src.Name())
			continue
		}

		s.log.WithField("count", len(scrobbles)).Infof("fetched from %s", src.Name())
		total += len(scrobbles)
	}
	s.log.WithField("total", total).Info("fetch complete")
}

func (s *Scheduler) refreshAndDigest(ctx context.Context) {
	result, err := s.engine.Refresh(ctx)
	if err != nil {
		s.log.WithError(err).Warn("refresh failed")
		return
	}

	if s.digestMgr == nil || !s.digestMgr.HasNotifiers() {
		return
	}

	// Announce only songs in the top of the list that have not been
	// digested before.
	top, err := s.store.ListRecommendations(ctx, store.RecListOpts{Limit: s.digestLimit})
	if err != nil {
		s.log.WithError(err).Warn("list recommendations for digest failed")
		return
	}

	var fresh []store.Recommendation
	for _, r := range top {
		if !r.Notified {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return
	}

	digest := &notify.Digest{
		Title: "New songs in your rotation",
		Body: fmt.Sprintf("%d new entries in the top %d (from %d scrobbles over %d days)",
			len(fresh), s.digestLimit, result.Scrobbles, s.windowDays),
		Songs: fresh,
	}

	if err := s.digestMgr.Broadcast(ctx, digest); err != nil {
		s.log.WithError(err).Warn("digest delivery failed")
		return
	}

	for _, r := range fresh {
		if err := s.store.MarkNotified(ctx, r.SongID); err != nil {
			s.log.WithError(err).Warnf("mark notified %s failed", r.SongID)
		}
	}
	s.log.WithField("songs", len(fresh)).Info("digest sent")
}
