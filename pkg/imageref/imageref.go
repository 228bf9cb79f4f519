// Package imageref parses Docker image references and derives the cache
// filenames used to key the on-disk image cache.
package imageref

import "strings"

// DefaultTag is used when a reference carries no explicit tag.
const DefaultTag = "latest"

// Reference is a parsed "name:tag" image reference.
type Reference struct {
	Name string
	Tag  string
}

// Parse splits image at the last ':' into name and tag, defaulting tag to
// DefaultTag when absent. Last-colon semantics are required so that
// registry-host references carrying a port (e.g. "registry:5000/foo:tag")
// split correctly; a first-colon split would instead produce name
// "registry" and tag "5000/foo:tag".
func Parse(image string) Reference {
	idx := strings.LastIndex(image, ":")
	if idx < 0 {
		return Reference{Name: image, Tag: DefaultTag}
	}
	return Reference{Name: image[:idx], Tag: image[idx+1:]}
}

// String reassembles the reference as "name:tag".
func (r Reference) String() string {
	return r.Name + ":" + r.Tag
}

// CacheFilename returns the cache key for this reference: the name with
// every '/' replaced by '_', followed by "_<tag>.tar".
func (r Reference) CacheFilename() string {
	name := strings.ReplaceAll(r.Name, "/", "_")
	return name + "_" + r.Tag + ".tar"
}

// CacheFilename is a convenience wrapper around Parse(image).CacheFilename().
func CacheFilename(image string) string {
	return Parse(image).CacheFilename()
}
