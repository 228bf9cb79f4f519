package archive

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	src, err := ioutil.TempDir("", "archive-src-")
	require.NoError(t, err)
	defer os.RemoveAll(src)

	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(src, "sub", "file.txt"), []byte("hello"), 0640))
	require.NoError(t, os.Symlink("file.txt", filepath.Join(src, "sub", "link")))

	var buf bytes.Buffer
	require.NoError(t, WriteTar(&buf, src))

	dst, err := ioutil.TempDir("", "archive-dst-")
	require.NoError(t, err)
	defer os.RemoveAll(dst)

	logger := hclog.NewNullLogger()
	require.NoError(t, Extract(&buf, dst, logger))

	data, err := ioutil.ReadFile(filepath.Join(dst, "sub", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	info, err := os.Stat(filepath.Join(dst, "sub", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0640), info.Mode().Perm())

	target, err := os.Readlink(filepath.Join(dst, "sub", "link"))
	require.NoError(t, err)
	require.Equal(t, "file.txt", target)

	dirInfo, err := os.Stat(filepath.Join(dst, "sub"))
	require.NoError(t, err)
	require.True(t, dirInfo.IsDir())
}
