package worklayout

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResetDeletesThenRecreates(t *testing.T) {
	base, err := ioutil.TempDir("", "worklayout-")
	require.NoError(t, err)
	defer os.RemoveAll(base)

	workDir := filepath.Join(base, "work")
	layout, err := New(workDir)
	require.NoError(t, err)

	// Simulate stale state from a prior crashed run.
	require.NoError(t, os.MkdirAll(filepath.Join(layout.Rootfs, "stale"), 0755))

	require.NoError(t, layout.Reset())

	for _, dir := range []string{layout.TmpExtract, layout.TmpLower, layout.TmpWork, layout.Rootfs, layout.Mergedfs} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}

	_, err = os.Stat(filepath.Join(layout.Rootfs, "stale"))
	require.True(t, os.IsNotExist(err), "stale content should not survive Reset")
}

func TestContainerMountPathStripsLeadingSlash(t *testing.T) {
	layout, err := New("/tmp/does-not-need-to-exist")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(layout.Mergedfs, "mnt", "container"), layout.ContainerMountPath("/mnt/container"))
}
