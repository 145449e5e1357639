package ptree

import "strings"

// segments splits a canonical, validated path ("/a/b/c") into its non-empty
// segments ("a", "b", "c").  The root path "/" splits to zero segments.
func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// join rebuilds a canonical path from its segments.
func join(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}

// ValidPath reports whether path is acceptable to Set/Get/Prune: non-empty,
// starting with '/', containing no empty ("//") segments, and not one of the
// search/watch-only sentinels ("", "/", "*", "/*").
func ValidPath(path string) bool {
	if path == "" || path == "/" || path == "*" || path == "/*" {
		return false
	}
	if path[0] != '/' {
		return false
	}
	if strings.Contains(path, "//") {
		return false
	}
	return true
}

// ValidSearchPrefix reports whether prefix is acceptable to Search: empty,
// one of the root sentinels ("/", "*", "/*"), or '/'-rooted and ending in
// '/', with no "//" anywhere.
func ValidSearchPrefix(prefix string) bool {
	if strings.Contains(prefix, "//") {
		return false
	}
	if prefix == "" || prefix == "/" || prefix == "*" || prefix == "/*" {
		return true
	}
	if prefix[0] != '/' {
		return false
	}
	return strings.HasSuffix(prefix, "/")
}

// NormalizeSearchPrefix maps every root sentinel ("/", "*", "/*", "") to the
// canonical empty-string form Search's root case expects.  Mirrors
// apteryx.c's path_search, which folds all four spellings of "root" to the
// same empty path before searching.
func NormalizeSearchPrefix(prefix string) string {
	if prefix == "/" || prefix == "*" || prefix == "/*" {
		return ""
	}
	return prefix
}
