package client

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// The functions in this file are thin, non-core conveniences layered on the
// Client API (SPEC_FULL.md §6): ASCII-decimal integers, NUL-terminated
// strings, and a debug dump of a subtree.  None of them are exercised by the
// broker's wire protocol; they only encode/decode byte slices before/after
// calling the core Get/Set/Search.

// SetInt stores an integer at path, ASCII-decimal encoded.
func (c *Client) SetInt(path string, value int64) bool {
	return c.Set(path, []byte(strconv.FormatInt(value, 10)))
}

// GetInt reads an ASCII-decimal integer stored at path.
func (c *Client) GetInt(path string) (int64, bool) {
	raw, ok := c.Get(path)
	if !ok || len(raw) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetString stores a NUL-terminated string at path.
func (c *Client) SetString(path string, value string) bool {
	return c.Set(path, append([]byte(value), 0))
}

// GetString reads a NUL-terminated string stored at path.
func (c *Client) GetString(path string) (string, bool) {
	raw, ok := c.Get(path)
	if !ok {
		return "", false
	}
	return strings.TrimRight(string(raw), "\x00"), true
}

// DumpTree renders path and every descendant reachable from it (breadth
// first, via repeated Search calls) as "path = value" lines, for debug
// tooling; it is not used by any core RPC path.
func (c *Client) DumpTree(path string) string {
	var b strings.Builder
	c.dumpOne(path, &b)

	queue := c.Search(childPrefix(path))
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		c.dumpOne(next, &b)
		queue = append(queue, c.Search(childPrefix(next))...)
	}
	return b.String()
}

func (c *Client) dumpOne(path string, b *strings.Builder) {
	value, ok := c.Get(path)
	if !ok {
		return
	}
	fmt.Fprintf(b, "%s = %s\n", path, string(value))
}

func childPrefix(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// sortedCopy returns a sorted copy of paths, used by tests that want a
// deterministic DumpTree/Search ordering to assert against.
func sortedCopy(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)
	return out
}
