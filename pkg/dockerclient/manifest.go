package dockerclient

import "strings"

// LayerSource describes one entry of a manifest's LayerSources map.
type LayerSource struct {
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
	Digest    string `json:"digest"`
}

// ImageManifest is one entry of the manifest.json array found at the root
// of an exported image tar.
type ImageManifest struct {
	Config       string                 `json:"Config"`
	RepoTags     []string               `json:"RepoTags"`
	Layers       []string               `json:"Layers"`
	LayerSources map[string]LayerSource `json:"LayerSources"`
}

// uncompressedLayerMediaTypes enumerates the media types that correspond
// to an uncompressed image-layer blob, the only kind pkg/archive can
// extract directly.
var uncompressedLayerMediaTypes = map[string]bool{
	"application/vnd.oci.image.layer.v1.tar":       true,
	"application/vnd.docker.image.rootfs.diff.tar": true,
}

// IsUncompressedLayer reports whether mediaType names an uncompressed
// image layer blob, as opposed to a compressed or encrypted variant.
func IsUncompressedLayer(mediaType string) bool {
	return uncompressedLayerMediaTypes[mediaType]
}

// LayerKey derives the key used to look up a layer path against
// LayerSources: the path with its first segment dropped and the next '/'
// replaced by ':'. For a path "blobs/sha256/<hex>" this yields "sha256:<hex>".
func LayerKey(layerPath string) string {
	idx := strings.IndexByte(layerPath, '/')
	if idx < 0 {
		return layerPath
	}
	rest := layerPath[idx+1:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return rest[:j] + ":" + rest[j+1:]
	}
	return rest
}
