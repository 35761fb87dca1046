package scrobble

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

// Feed is a named recent-tracks RSS/Atom feed. Libre.fm and most
// self-hosted scrobblers publish one per user.
type Feed struct {
	Name string
	URL  string
}

// FeedSource collects scrobbles from recent-tracks feeds. Entries are
// titled "Artist – Track" with the play time as the published date.
// Feeds carry no album information, so album affinity for these
// scrobbles is zero.
type FeedSource struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []Feed
}

// NewFeedSource creates a new feed collector.
func NewFeedSource(feeds []Feed) *FeedSource {
	return &FeedSource{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
	}
}

func (f *FeedSource) Name() SourceType { return SourceFeed }

func (f *FeedSource) Fetch(ctx context.Context, from, to time.Time) ([]Scrobble, error) {
	var all []Scrobble

	for _, feed := range f.feeds {
		scrobbles, err := f.fetchFeed(ctx, feed, from, to)
		if err != nil {
			// One broken feed must not sink the others.
			logrus.WithError(err).Warnf("feed %s failed", feed.Name)
			continue
		}
		all = append(all, scrobbles...)
	}

	return all, nil
}

func (f *FeedSource) fetchFeed(ctx context.Context, feed Feed, from, to time.Time) ([]Scrobble, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.Name, err)
	}

	now := time.Now().UTC()
	var scrobbles []Scrobble

	for _, entry := range parsed.Items {
		if entry.PublishedParsed == nil {
			continue
		}
		playedAt := entry.PublishedParsed.UTC()
		if playedAt.Before(from) || playedAt.After(to) {
			continue
		}

		artist, track, ok := splitFeedTitle(entry.Title)
		if !ok {
			continue
		}

		songID := SongKey("", artist, track)
		scrobbles = append(scrobbles, Scrobble{
			ID:          EventID(SourceFeed, songID, playedAt),
			Source:      SourceFeed,
			SongID:      songID,
			ArtistID:    ArtistKey("", artist),
			Song:        track,
			Artist:      artist,
			PlayedAt:    playedAt,
			CollectedAt: now,
		})
	}

	return scrobbles, nil
}

// splitFeedTitle splits "Artist – Track" entry titles. Both the en dash
// and plain hyphen separators are in the wild.
func splitFeedTitle(title string) (artist, track string, ok bool) {
	for _, sep := range []string{" – ", " - "} {
		if i := strings.Index(title, sep); i > 0 {
			artist = strings.TrimSpace(title[:i])
			track = strings.TrimSpace(title[i+len(sep):])
			if artist != "" && track != "" {
				return artist, track, true
			}
		}
	}
	return "", "", false
}
