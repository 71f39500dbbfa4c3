package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateLongestPrefixWins(t *testing.T) {
	m := New([]Mapping{
		{Prefix: "/media", LocalRoot: "/mnt/generic"},
		{Prefix: "/media/movies", LocalRoot: "/mnt/movies"},
	})

	got, err := m.Translate("/media/movies/foo.mkv")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/movies/foo.mkv", got)

	got, err = m.Translate("/media/music/bar.flac")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/generic/music/bar.flac", got)
}

func TestTranslateExactPrefixNoTrailingSlash(t *testing.T) {
	m := New([]Mapping{{Prefix: "/media", LocalRoot: "/mnt/generic"}})
	got, err := m.Translate("/media")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/generic", got)
}

func TestTranslateNoMapping(t *testing.T) {
	m := New([]Mapping{{Prefix: "/media", LocalRoot: "/mnt/generic"}})
	_, err := m.Translate("/other/file.mkv")
	assert.Error(t, err)
	var notMapped *ErrNoMapping
	assert.ErrorAs(t, err, &notMapped)
}
