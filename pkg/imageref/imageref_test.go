package imageref

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsTagToLatest(t *testing.T) {
	ref := Parse("library/foo")
	require.Equal(t, "library/foo", ref.Name)
	require.Equal(t, DefaultTag, ref.Tag)
}

func TestParseLastColonSplit(t *testing.T) {
	ref := Parse("registry:5000/foo:tag")
	require.Equal(t, "registry:5000/foo", ref.Name)
	require.Equal(t, "tag", ref.Tag)
}

func TestCacheFilenameLaw(t *testing.T) {
	cases := map[string]string{
		"debian:12":    "debian_12.tar",
		"library/foo":  "library_foo_latest.tar",
		"a/b/c:v1.2.3": "a_b_c_v1.2.3.tar",
	}
	for image, want := range cases {
		require.Equal(t, want, CacheFilename(image), "CacheFilename(%q)", image)
	}
}
