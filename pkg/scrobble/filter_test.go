package scrobble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterExcludesArtists(t *testing.T) {
	f := NewFilter([]string{"Some Podcast", "  White Noise FM "}, nil)

	assert.False(t, f.Keep(&Scrobble{Artist: "some podcast", Song: "Episode 9"}))
	assert.False(t, f.Keep(&Scrobble{Artist: "White Noise FM", Song: "Rain"}))
	assert.True(t, f.Keep(&Scrobble{Artist: "Some Podcast Cover Band", Song: "Track"}))
	assert.True(t, f.Keep(&Scrobble{Artist: "Autechre", Song: "Gantz Graf"}))
}

func TestFilterExcludesKeywords(t *testing.T) {
	f := NewFilter(nil, []string{"sleep", "asmr"})

	assert.False(t, f.Keep(&Scrobble{Artist: "X", Song: "Deep Sleep Sounds"}))
	assert.False(t, f.Keep(&Scrobble{Artist: "X", Song: "Track", Album: "ASMR Collection"}))
	assert.True(t, f.Keep(&Scrobble{Artist: "X", Song: "Wide Awake"}))
}

func TestFilterApply(t *testing.T) {
	f := NewFilter([]string{"Some Podcast"}, nil)

	in := []Scrobble{
		{Artist: "Some Podcast", SongID: "p"},
		{Artist: "Burial", SongID: "b"},
	}
	out := f.Apply(in)
	assert.Len(t, out, 1)
	assert.Equal(t, "b", out[0].SongID)

	// Nil and empty filters pass everything through.
	var nilFilter *Filter
	assert.True(t, nilFilter.Keep(&in[0]))
	assert.Len(t, nilFilter.Apply(in), 2)
	assert.Len(t, NewFilter(nil, nil).Apply(in), 2)
}
