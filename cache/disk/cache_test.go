package disk

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/refval"
)

func testValue(name, digest string) *refval.ReferenceValue {
	return refval.New().
		SetName(name).
		SetExpiration(time.Unix(0, 0)).
		AddHashValue("sha256", digest)
}

func TestSetGetRoundTrip(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	want := testValue("myapp.tar.gz", "aaa")
	require.NoError(t, c.Set(want.Name(), want))

	got, ok := c.Get("myapp.tar.gz")
	require.True(t, ok)
	assert.True(t, got.Equal(want))
}

func TestGetAbsent(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	got, ok := c.Get("nothing")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestLastWriteWins(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.Set("artifact", testValue("artifact", "aaa")))
	require.NoError(t, c.Set("artifact", testValue("artifact", "bbb")))

	got, ok := c.Get("artifact")
	require.True(t, ok)
	assert.Equal(t, "bbb", got.HashValues()[0].Value)

	all, err := c.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := New(dir)
	require.NoError(t, err)
	want := testValue("artifact", "aaa")
	require.NoError(t, first.Set(want.Name(), want))

	second, err := New(dir)
	require.NoError(t, err)
	got, ok := second.Get("artifact")
	require.True(t, ok)
	assert.True(t, got.Equal(want))
}

func TestNamesWithAwkwardCharacters(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	names := []string{
		"registry.example.com/org/image:v1.2.3",
		"path/with/slashes",
		"spaces and unicode é",
		"..",
	}
	for _, name := range names {
		require.NoError(t, c.Set(name, testValue(name, "aaa")), name)
	}
	for _, name := range names {
		got, ok := c.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, name, got.Name())
	}

	all, err := c.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, len(names))
}

func TestGetAllSkipsCorruptEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, c.Set("good", testValue("good", "aaa")))

	// A corrupt entry counts as a miss rather than failing the scan.
	require.NoError(t, c.Set("bad", testValue("bad", "bbb")))
	badPath := c.entryPath("bad")
	require.NoError(t, os.WriteFile(badPath, []byte("not json"), 0o644))

	all, err := c.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].Name())

	_, ok := c.Get("bad")
	assert.False(t, ok)
}
