package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ShareDrop/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) *Layout {
	t.Helper()
	return NewLayout(&config.Config{
		DataDir:       t.TempDir(),
		DirectoryMode: 0o755,
		FileMode:      0o644,
	})
}

func TestPathForSharding(t *testing.T) {
	l := testLayout(t)

	rel, err := l.PathFor("abc123def")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("a", "b", "c", "123def"), rel)

	_, err = l.PathFor("ab")
	assert.ErrorIs(t, err, ErrShortSlug)
}

func TestPathForDeterministic(t *testing.T) {
	l := testLayout(t)

	first, err := l.PathFor("abc123def")
	require.NoError(t, err)
	second, err := l.PathFor("abc123def")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Slugs differing in their leading characters land in different shards.
	other, err := l.PathFor("xyz123def")
	require.NoError(t, err)
	assert.NotEqual(t, filepath.Dir(first), filepath.Dir(other))
}

func TestPlaceAndRemove(t *testing.T) {
	l := testLayout(t)

	rel, err := l.Place("deadbeef", strings.NewReader("hello world"))
	require.NoError(t, err)

	abs := l.Resolve(rel)
	data, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	info, err := os.Stat(abs)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	require.NoError(t, l.Remove(rel))
	_, err = os.Stat(abs)
	assert.True(t, os.IsNotExist(err))

	// Removing again is not an error.
	assert.NoError(t, l.Remove(rel))
}

func TestTempZipDir(t *testing.T) {
	l := testLayout(t)
	dir := l.TempZipDir("cafe01")
	assert.True(t, strings.HasSuffix(dir, filepath.Join("tmp_zip", "cafe01")))
}
