package dockerclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayerKeyTransform(t *testing.T) {
	require.Equal(t, "sha256:deadbeef", LayerKey("blobs/sha256/deadbeef"))
}

func TestIsUncompressedLayer(t *testing.T) {
	require.True(t, IsUncompressedLayer("application/vnd.oci.image.layer.v1.tar"),
		"expected uncompressed OCI layer media type to be accepted")
	require.False(t, IsUncompressedLayer("application/vnd.oci.image.layer.v1.tar+gzip"),
		"expected compressed layer media type to be rejected")
	require.False(t, IsUncompressedLayer("application/vnd.oci.image.layer.v1.tar+encrypted"),
		"expected encrypted layer media type to be rejected")
}
