package generic

import (
	"sort"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	assert := assert_.New(t)

	s := NewSet[int]()
	assert.Equal(0, s.Count())
	assert.False(s.Contains(1))
	assert.True(s.Add(1))
	assert.Equal(1, s.Count())
	assert.True(s.Contains(1))
	assert.False(s.Add(1))
	assert.Equal(1, s.Count())
	assert.True(s.Remove(1))
	assert.Equal(0, s.Count())
	assert.False(s.Contains(1))
	assert.False(s.Remove(1))

	s2 := NewSet("mp3", "m4a", "flac")
	assert.True(s2.Contains("m4a"))
	assert.True(s2.Contains("mp3", "flac"))
	assert.False(s2.Contains("mp3", "ogg"))
	items := s2.ToSlice()
	sort.Strings(items)
	assert.Equal([]string{"flac", "m4a", "mp3"}, items)
}

func TestOption(t *testing.T) {
	assert := assert_.New(t)

	some := Some(42)
	assert.True(some.IsSome())
	assert.False(some.IsNone())
	assert.Equal(42, some.Unwrap())
	assert.Equal(42, some.UnwrapOr(7))

	none := None[int]()
	assert.True(none.IsNone())
	assert.Equal(7, none.UnwrapOr(7))
	assert.Panics(func() { none.Unwrap() })
}

func TestResult(t *testing.T) {
	assert := assert_.New(t)

	ok := Ok(123)
	assert.True(ok.IsOk())
	assert.Equal(123, ok.Unwrap())
	v, err := ok.Parts()
	assert.Equal(123, v)
	assert.NoError(err)

	bad := Err[int](assert_.AnError)
	assert.True(bad.IsErr())
	assert.Equal(0, bad.UnwrapOr(0))
	assert.Panics(func() { bad.Unwrap() })
}
