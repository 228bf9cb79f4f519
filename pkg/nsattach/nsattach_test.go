package nsattach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNamespaceContent(t *testing.T) {
	id, err := ParseNamespaceContent("mnt:[4026532001]")
	require.NoError(t, err)
	require.EqualValues(t, 4026532001, id)
}

func TestParseNamespaceContentMissingBrackets(t *testing.T) {
	_, err := ParseNamespaceContent("mnt:4026532001")
	require.Error(t, err)
}

func TestParseNamespaceContentNonNumeric(t *testing.T) {
	_, err := ParseNamespaceContent("mnt:[abc]")
	require.Error(t, err)
}
