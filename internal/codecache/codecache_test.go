package codecache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	key := Key("script", "a.js", "1 + 1")
	_, ok := s.Get(key)
	assert.False(t, ok)

	data := []byte("compiled artifact compiled artifact compiled artifact")
	require.NoError(t, s.Put(key, "goja", data))

	got, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, data, got)

	st := s.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Puts)
	assert.Equal(t, int64(1), st.Entries)
}

func TestPutReplaces(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("k", "v8", []byte("one")))
	require.NoError(t, s.Put("k", "v8", []byte("two")))
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "two", string(got))
	assert.Equal(t, int64(1), s.Stats().Entries)
}

func TestKeyDistinguishesParts(t *testing.T) {
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
	assert.Len(t, Key("x"), 64)
}

func TestBindIsolatesEngines(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	g, v := s.Bind("goja"), s.Bind("v8")
	g.Put("k", []byte("goja data"))

	got, ok := g.Get("k")
	require.True(t, ok)
	assert.Equal(t, "goja data", string(got))

	_, ok = v.Get("k")
	assert.False(t, ok)
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite3")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("k", "quickjs", []byte("kept")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "kept", string(got))
}
