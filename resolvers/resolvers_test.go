package resolvers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	assert.False(t, registry.Broken())

	all, err := registry.Resolvers()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "org.xuanyeovo.ncm", all[0].ID())
	assert.Equal(t, "org.xuanyeovo.youtube", all[1].ID())
	assert.Equal(t, "org.xuanyeovo.raw", all[2].ID())
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry()

	for _, tc := range []struct {
		url string
		id  string
	}{
		{"https://music.163.com/m/song?id=123", "org.xuanyeovo.ncm"},
		{"https://youtu.be/dQw4w9WgXcQ", "org.xuanyeovo.youtube"},
		{"https://example.com/track.mp3", "org.xuanyeovo.raw"},
	} {
		resolver, err := registry.Match(tc.url)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.id, resolver.ID(), tc.url)
	}

	_, err := registry.Match("https://example.com/page.html")
	assert.Error(t, err)
}
