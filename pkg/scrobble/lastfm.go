package scrobble

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultAPIURL = "http://ws.audioscrobbler.com/2.0/"
	userAgent     = "lastfm-recommender/1.0"
	pageLimit     = 200 // max allowed by the API
)

// LastFM collects scrobbles from the Last.fm user.getrecenttracks API.
type LastFM struct {
	client   *http.Client
	apiURL   string
	apiKey   string
	username string
}

// NewLastFM creates a new Last.fm collector.
func NewLastFM(apiKey, username string) *LastFM {
	return &LastFM{
		client:   &http.Client{Timeout: 30 * time.Second},
		apiURL:   defaultAPIURL,
		apiKey:   apiKey,
		username: username,
	}
}

func (l *LastFM) Name() SourceType { return SourceLastFM }

// Fetch pages through the user's recent tracks between from and to.
// Now-playing entries have no timestamp yet and are skipped.
func (l *LastFM) Fetch(ctx context.Context, from, to time.Time) ([]Scrobble, error) {
	var scrobbles []Scrobble

	page, totalPages := 1, 1
	for page <= totalPages {
		resp, err := l.fetchPage(ctx, from, to, page)
		if err != nil {
			return nil, err
		}

		if page == 1 {
			totalPages, _ = strconv.Atoi(resp.RecentTracks.Attr.TotalPages)
			if totalPages < 1 {
				totalPages = 1
			}
		}

		now := time.Now().UTC()
		for _, t := range resp.RecentTracks.Tracks {
			if t.Attr.NowPlaying == "true" {
				continue
			}
			uts, err := strconv.ParseInt(t.Date.UTS, 10, 64)
			if err != nil {
				continue
			}

			songID := SongKey(t.MBID, t.Artist.Text, t.Name)
			playedAt := time.Unix(uts, 0).UTC()

			scrobbles = append(scrobbles, Scrobble{
				ID:          EventID(SourceLastFM, songID, playedAt),
				Source:      SourceLastFM,
				SongID:      songID,
				ArtistID:    ArtistKey(t.Artist.MBID, t.Artist.Text),
				AlbumID:     AlbumKey(t.Album.MBID, t.Artist.Text, t.Album.Text),
				Song:        t.Name,
				Artist:      t.Artist.Text,
				Album:       t.Album.Text,
				PlayedAt:    playedAt,
				CollectedAt: now,
			})
		}

		page++
	}

	return scrobbles, nil
}

type lfmResponse struct {
	RecentTracks struct {
		Attr struct {
			Total      string `json:"total"`
			TotalPages string `json:"totalPages"`
		} `json:"@attr"`
		Tracks []lfmTrack `json:"track"`
	} `json:"recenttracks"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type lfmTrack struct {
	Name   string `json:"name"`
	MBID   string `json:"mbid"`
	Artist struct {
		Text string `json:"#text"`
		MBID string `json:"mbid"`
	} `json:"artist"`
	Album struct {
		Text string `json:"#text"`
		MBID string `json:"mbid"`
	} `json:"album"`
	Date struct {
		UTS string `json:"uts"`
	} `json:"date"`
	Attr struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

// fetchPage requests one page, retrying transient failures with
// exponential backoff.
func (l *LastFM) fetchPage(ctx context.Context, from, to time.Time, page int) (*lfmResponse, error) {
	q := url.Values{}
	q.Set("method", "user.getrecenttracks")
	q.Set("user", l.username)
	q.Set("api_key", l.apiKey)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(pageLimit))
	q.Set("page", strconv.Itoa(page))
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))

	var out *lfmResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiURL+"?"+q.Encode(), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create lastfm request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := l.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch lastfm page %d: %w", page, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("lastfm page %d status %d", page, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("lastfm page %d status %d", page, resp.StatusCode))
		}

		var body lfmResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return backoff.Permanent(fmt.Errorf("decode lastfm page %d: %w", page, err))
		}
		if body.Error != 0 {
			return backoff.Permanent(fmt.Errorf("lastfm api error %d: %s", body.Error, body.Message))
		}

		out = &body
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return out, nil
}
