package broker

import (
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/isaac129/apteryx/base_def"
	"github.com/isaac129/apteryx/wire"
)

// startTestBroker binds a Broker under a throwaway socket directory and
// returns it, registering its Stop and the directory removal with
// t.Cleanup, mirroring the lifecycle a real cmd/apteryxd main would drive
// but scoped to a single test.
func startTestBroker(t *testing.T) *Broker {
	t.Helper()

	dir, err := os.MkdirTemp("", "apteryx-broker-test")
	require.NoError(t, err)
	prev := base_def.SetSocketDir(dir)
	t.Cleanup(func() {
		base_def.SetSocketDir(prev)
		os.RemoveAll(dir)
	})

	b := New(Config{Workers: 2, Registerer: prometheus.NewRegistry()})
	require.NoError(t, b.Start())
	t.Cleanup(b.Stop)

	return b
}

func TestBrokerStartStop(t *testing.T) {
	startTestBroker(t)
}

func TestWatchRegistryRoundTrip(t *testing.T) {
	r := newWatchRegistry()
	r.Register("/net/", "client-a", 7, 42)

	matches := r.Match("/net/wan/addr")
	require.Len(t, matches, 1)
	require.Equal(t, Subscription{ClientID: "client-a", Cb: 7, Priv: 42}, matches[0])

	require.Empty(t, r.Match("/other/path"))

	r.Register("/net/", "client-a", 0, 0)
	require.Empty(t, r.Match("/net/wan/addr"))
}

func TestProvideRegistryExactMatchOnly(t *testing.T) {
	r := newProvideRegistry()
	r.Register("/sys/uptime", "client-a", 3, 9)

	sub, ok := r.Lookup("/sys/uptime")
	require.True(t, ok)
	require.Equal(t, uint64(3), sub.Cb)

	_, ok = r.Lookup("/sys/uptime/extra")
	require.False(t, ok)
}

func TestPatternMatchesTrailingWildcardOnly(t *testing.T) {
	require.True(t, patternMatches("/a/b", "/a/b"))
	require.True(t, patternMatches("*", "/anything"))
	require.True(t, patternMatches("/", "/anything"))
	require.True(t, patternMatches("/a/*", "/a/b/c"))
	require.True(t, patternMatches("/a/", "/a/b/c"))
	require.False(t, patternMatches("/a/*/c", "/a/b/c"))
	require.False(t, patternMatches("/a/b", "/a/bc"))
}

func TestDisconnectClientClearsSubscriptions(t *testing.T) {
	b := startTestBroker(t)

	b.watchers.Register("/a/", "c1", 1, 0)
	b.providers.Register("/a/b", "c1", 2, 0)
	require.NotEmpty(t, b.watchers.Match("/a/x"))

	b.DisconnectClient("c1")
	require.Empty(t, b.watchers.Match("/a/x"))
	_, ok := b.providers.Lookup("/a/b")
	require.False(t, ok)
}

func TestGetSetSearchPruneThroughTree(t *testing.T) {
	b := startTestBroker(t)

	require.NoError(t, b.tree.Set("/a/b", []byte("1")))
	val, ok := b.tree.Get("/a/b")
	require.True(t, ok)
	require.Equal(t, []byte("1"), val)

	require.Contains(t, b.tree.Search("/a/"), "/a/b")

	require.NoError(t, b.tree.Prune("/a"))
	_, ok = b.tree.Get("/a/b")
	require.False(t, ok)
}

func TestSetWithUnreachableWatcherStillSucceeds(t *testing.T) {
	b := startTestBroker(t)

	// c1 has no listener running; notify() must treat the dial failure as
	// non-fatal (§5) and still report the SET itself as successful.
	b.watchers.Register("/a/", "c1", 1, 0)

	reply := b.handleSet(&wire.Request{Path: "/a/b", Value: []byte("v")})
	require.Equal(t, wire.StatusOK, reply.Status)
}
