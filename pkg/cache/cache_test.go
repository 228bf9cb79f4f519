package cache

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestWriteThenExtractRoundTrip(t *testing.T) {
	cacheDir, err := ioutil.TempDir("", "cache-")
	require.NoError(t, err)
	defer os.RemoveAll(cacheDir)

	src, err := ioutil.TempDir("", "cache-src-")
	require.NoError(t, err)
	defer os.RemoveAll(src)
	require.NoError(t, ioutil.WriteFile(filepath.Join(src, "hello"), []byte("world"), 0644))

	c := New(cacheDir, hclog.NewNullLogger())
	require.False(t, c.Has("debian:12"))
	require.NoError(t, c.Write("debian:12", src))
	require.True(t, c.Has("debian:12"))
	require.Equal(t, filepath.Join(cacheDir, "debian_12.tar"), c.Path("debian:12"))

	dst, err := ioutil.TempDir("", "cache-dst-")
	require.NoError(t, err)
	defer os.RemoveAll(dst)
	require.NoError(t, c.Extract("debian:12", dst))

	data, err := ioutil.ReadFile(filepath.Join(dst, "hello"))
	require.NoError(t, err)
	require.Equal(t, "world", string(data))
}
