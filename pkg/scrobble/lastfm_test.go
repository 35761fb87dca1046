package scrobble

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastfmTestServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "user.getrecenttracks", q.Get("method"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "200", q.Get("limit"))
		assert.NotEmpty(t, q.Get("from"))
		assert.NotEmpty(t, q.Get("to"))

		body, ok := pages[q.Get("page")]
		if !ok {
			http.Error(w, "unexpected page", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func newTestLastFM(url string) *LastFM {
	l := NewLastFM("key", "listener")
	l.apiURL = url
	return l
}

func TestLastFMFetchPaging(t *testing.T) {
	page1 := `{"recenttracks":{"@attr":{"total":"3","totalPages":"2"},"track":[
		{"name":"Now Playing Song","artist":{"#text":"Artist A"},"album":{"#text":""},"@attr":{"nowplaying":"true"}},
		{"name":"Xtal","mbid":"mbid-xtal","artist":{"#text":"Aphex Twin","mbid":"mbid-aphex"},"album":{"#text":"Selected Ambient Works 85-92","mbid":"mbid-saw"},"date":{"uts":"1756000000"}},
		{"name":"Roygbiv","artist":{"#text":"Boards of Canada"},"album":{"#text":"Music Has the Right to Children"},"date":{"uts":"1756000100"}}
	]}}`
	page2 := `{"recenttracks":{"@attr":{"total":"3","totalPages":"2"},"track":[
		{"name":"Roygbiv","artist":{"#text":"Boards of Canada"},"album":{"#text":"Music Has the Right to Children"},"date":{"uts":"1756000200"}}
	]}}`

	srv := lastfmTestServer(t, map[string]string{"1": page1, "2": page2})
	defer srv.Close()

	l := newTestLastFM(srv.URL)
	to := time.Unix(1756001000, 0).UTC()
	got, err := l.Fetch(context.Background(), to.Add(-5*24*time.Hour), to)
	require.NoError(t, err)

	// Now-playing entry skipped; both pages collected.
	require.Len(t, got, 3)

	xtal := got[0]
	assert.Equal(t, "mbid-xtal", xtal.SongID)
	assert.Equal(t, "mbid-aphex", xtal.ArtistID)
	assert.Equal(t, "mbid-saw", xtal.AlbumID)
	assert.Equal(t, "Xtal", xtal.Song)
	assert.Equal(t, SourceLastFM, xtal.Source)
	assert.Equal(t, time.Unix(1756000000, 0).UTC(), xtal.PlayedAt)

	// No MBIDs: derived keys, identical for both plays.
	assert.Equal(t, "boards of canada/roygbiv", got[1].SongID)
	assert.Equal(t, got[1].SongID, got[2].SongID)
	assert.NotEqual(t, got[1].ID, got[2].ID)
	assert.Equal(t, "boards of canada/music has the right to children", got[1].AlbumID)
}

func TestLastFMFetchAPIError(t *testing.T) {
	srv := lastfmTestServer(t, map[string]string{
		"1": `{"error":10,"message":"Invalid API key"}`,
	})
	defer srv.Close()

	l := newTestLastFM(srv.URL)
	_, err := l.Fetch(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestLastFMFetchRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"recenttracks":{"@attr":{"total":"0","totalPages":"1"},"track":[]}}`)
	}))
	defer srv.Close()

	l := newTestLastFM(srv.URL)
	got, err := l.Fetch(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, calls)
}
