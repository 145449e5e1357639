package ptree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Set("/entity/zones/private/name", []byte("private\x00")))

	val, ok := tree.Get("/entity/zones/private/name")
	require.True(t, ok)
	assert.Equal(t, []byte("private\x00"), val)
}

func TestDeleteCollapsesAncestors(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Set("/entity/zones/private/name", []byte("private\x00")))

	require.NoError(t, tree.Set("/entity/zones/private/name", nil))

	_, ok := tree.Get("/entity/zones/private/name")
	assert.False(t, ok)
	assert.Empty(t, tree.Search("/"))
}

func TestOverwrite(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Set("/a/b", []byte("1")))
	require.NoError(t, tree.Set("/a/b", []byte("2")))

	val, ok := tree.Get("/a/b")
	require.True(t, ok)
	assert.Equal(t, []byte("2"), val)
}

func TestSearchIsSetLike(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Set("/a/b", []byte("1\x00")))
	require.NoError(t, tree.Set("/a/c", []byte("2\x00")))

	assert.ElementsMatch(t, []string{"/a/b", "/a/c"}, tree.Search("/a/"))
}

func TestSearchSurvivesIntermediateNodesWithoutValues(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Set("/entity/zones/private/name", []byte("private\x00")))

	assert.Contains(t, tree.Search("/entity/zones/"), "/entity/zones/private")
}

func TestPrune(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Set("/a/b/c", []byte("v")))
	require.NoError(t, tree.Set("/a/b/d", []byte("v")))
	require.NoError(t, tree.Set("/a/other", []byte("v")))

	require.NoError(t, tree.Prune("/a/b"))

	_, ok := tree.Get("/a/b/c")
	assert.False(t, ok)
	_, ok = tree.Get("/a/b/d")
	assert.False(t, ok)

	val, ok := tree.Get("/a/other")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)
}

func TestPruneNonexistentIsNoop(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Set("/a/b", []byte("v")))

	require.NoError(t, tree.Prune("/does/not/exist"))

	val, ok := tree.Get("/a/b")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)
}

func TestPruneDoesNotClearParentValue(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Set("/a", []byte("parent-value")))
	require.NoError(t, tree.Set("/a/b", []byte("child-value")))

	require.NoError(t, tree.Prune("/a/b"))

	val, ok := tree.Get("/a")
	require.True(t, ok)
	assert.Equal(t, []byte("parent-value"), val)
}

func TestInvalidPathsRejected(t *testing.T) {
	tree := New()
	for _, p := range []string{"", "/", "*", "/*", "no/leading/slash", "/a//b"} {
		assert.Error(t, tree.Set(p, []byte("v")), "path %q", p)
	}
}

func TestSearchRootAndWildcardPrefixes(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Set("/a", []byte("v")))

	// "", "/", "*", and "/*" are all accepted spellings of "root" (§3),
	// mirroring apteryx.c's path_search folding all four to "".
	for _, root := range []string{"", "/", "*", "/*"} {
		assert.ElementsMatch(t, []string{"/a"}, tree.Search(root), "root spelling %q", root)
	}

	assert.Nil(t, tree.Search("no-leading-slash"))
	assert.Nil(t, tree.Search("/a")) // doesn't end in '/'
}
