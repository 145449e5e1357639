package client

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/isaac129/apteryx/base_def"
	"github.com/isaac129/apteryx/broker"
)

// startTestBroker binds a real broker under a throwaway ipc:// socket
// directory, the same fixture broker/broker_test.go uses, so these tests
// exercise the full client<->broker<->listener round trip rather than
// mocking any of C4-C6.
func startTestBroker(t *testing.T) {
	t.Helper()

	dir, err := os.MkdirTemp("", "apteryx-client-test")
	require.NoError(t, err)
	prev := base_def.SetSocketDir(dir)
	t.Cleanup(func() {
		base_def.SetSocketDir(prev)
		os.RemoveAll(dir)
	})

	b := broker.New(broker.Config{Workers: 2, Registerer: prometheus.NewRegistry()})
	require.NoError(t, b.Start())
	t.Cleanup(b.Stop)
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c := New(t.Name())
	require.True(t, c.Init(false))
	t.Cleanup(func() { c.Shutdown() })
	return c
}

func TestSetGet(t *testing.T) {
	startTestBroker(t)
	c := newTestClient(t)

	require.True(t, c.Set("/a/b", []byte("hello")))
	val, ok := c.Get("/a/b")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), val)
}

func TestGetAbsentIsEmptyNotFailure(t *testing.T) {
	startTestBroker(t)
	c := newTestClient(t)

	val, ok := c.Get("/never/set")
	require.True(t, ok)
	require.Empty(t, val)
}

func TestSetEmptyValueDeletes(t *testing.T) {
	startTestBroker(t)
	c := newTestClient(t)

	require.True(t, c.Set("/a/b", []byte("v")))
	require.True(t, c.Set("/a/b", nil))

	val, ok := c.Get("/a/b")
	require.True(t, ok)
	require.Empty(t, val)
}

func TestSearch(t *testing.T) {
	startTestBroker(t)
	c := newTestClient(t)

	require.True(t, c.Set("/a/b", []byte("1")))
	require.True(t, c.Set("/a/c", []byte("2")))

	paths := sortedCopy(c.Search("/a/"))
	require.Equal(t, []string{"/a/b", "/a/c"}, paths)
}

func TestSearchRootSentinels(t *testing.T) {
	startTestBroker(t)
	c := newTestClient(t)

	require.True(t, c.Set("/a", []byte("1")))

	for _, root := range []string{"", "/", "*", "/*"} {
		require.Equal(t, []string{"/a"}, c.Search(root), "root spelling %q", root)
	}
}

func TestPrune(t *testing.T) {
	startTestBroker(t)
	c := newTestClient(t)

	require.True(t, c.Set("/a/b", []byte("1")))
	require.True(t, c.Prune("/a"))

	val, ok := c.Get("/a/b")
	require.True(t, ok)
	require.Empty(t, val)
}

func TestIntAndStringHelpers(t *testing.T) {
	startTestBroker(t)
	c := newTestClient(t)

	require.True(t, c.SetInt("/n", 42))
	n, ok := c.GetInt("/n")
	require.True(t, ok)
	require.Equal(t, int64(42), n)

	require.True(t, c.SetString("/s", "hi"))
	s, ok := c.GetString("/s")
	require.True(t, ok)
	require.Equal(t, "hi", s)
}

func TestWatchReceivesNotification(t *testing.T) {
	startTestBroker(t)
	watcher := newTestClient(t)
	setter := newTestClient(t)

	notified := make(chan []byte, 1)
	ok := watcher.Watch("/cfg/", func(path string, priv uint64, value []byte) bool {
		notified <- value
		return true
	}, 99)
	require.True(t, ok)

	require.True(t, setter.Set("/cfg/wan", []byte("up")))

	select {
	case v := <-notified:
		require.Equal(t, []byte("up"), v)
	case <-time.After(2 * time.Second):
		t.Fatal("watch callback was never invoked")
	}
}

func TestWatchUnregister(t *testing.T) {
	startTestBroker(t)
	watcher := newTestClient(t)
	setter := newTestClient(t)

	calls := make(chan struct{}, 8)
	cb := func(path string, priv uint64, value []byte) bool {
		calls <- struct{}{}
		return true
	}
	require.True(t, watcher.Watch("/cfg/", cb, 0))
	require.True(t, watcher.Watch("/cfg/", nil, 0))

	require.True(t, setter.Set("/cfg/wan", []byte("up")))

	select {
	case <-calls:
		t.Fatal("unregistered watch still fired")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestProvideAnswersGet(t *testing.T) {
	startTestBroker(t)
	provider := newTestClient(t)
	reader := newTestClient(t)

	ok := provider.Provide("/sys/uptime", func(path string, priv uint64) []byte {
		return []byte("123")
	}, 0)
	require.True(t, ok)

	val, ok := reader.Get("/sys/uptime")
	require.True(t, ok)
	require.Equal(t, []byte("123"), val)
}

func TestStoredValueWinsOverProvider(t *testing.T) {
	startTestBroker(t)
	provider := newTestClient(t)
	reader := newTestClient(t)

	require.True(t, provider.Provide("/sys/uptime", func(path string, priv uint64) []byte {
		return []byte("from-provider")
	}, 0))
	require.True(t, reader.Set("/sys/uptime", []byte("stored")))

	val, ok := reader.Get("/sys/uptime")
	require.True(t, ok)
	require.Equal(t, []byte("stored"), val)
}

func TestShutdownUnregistersWatches(t *testing.T) {
	startTestBroker(t)
	setter := newTestClient(t)

	watcher := New(t.Name() + "-watcher")
	require.True(t, watcher.Init(false))

	calls := make(chan struct{}, 8)
	require.True(t, watcher.Watch("/cfg/", func(path string, priv uint64, value []byte) bool {
		calls <- struct{}{}
		return true
	}, 0))
	require.True(t, watcher.Shutdown())

	require.True(t, setter.Set("/cfg/wan", []byte("up")))

	select {
	case <-calls:
		t.Fatal("watch fired after owning client shut down")
	case <-time.After(300 * time.Millisecond):
	}
}

// TestWatchCallbackReentersWithMatchingSet covers S7: a watcher callback
// that, on its first notification, issues a Set on a path still matched by
// its own registered pattern. The broker must be able to deliver that
// second notification to this same client while the first callback
// invocation (which is blocked waiting on the reentrant Set's reply) is
// still running, rather than deadlocking behind it.
func TestWatchCallbackReentersWithMatchingSet(t *testing.T) {
	startTestBroker(t)
	watcher := newTestClient(t)
	setter := newTestClient(t)

	var fired int32
	notified := make(chan []byte, 2)
	reentrantSetOK := make(chan bool, 1)

	watcher.Watch("/cfg/", func(path string, priv uint64, value []byte) bool {
		notified <- value
		if atomic.AddInt32(&fired, 1) == 1 {
			reentrantSetOK <- watcher.Set("/cfg/lan", []byte("reentrant"))
		}
		return true
	}, 0)

	require.True(t, setter.Set("/cfg/wan", []byte("up")))

	select {
	case v := <-notified:
		require.Equal(t, []byte("up"), v)
	case <-time.After(2 * time.Second):
		t.Fatal("first notification was never delivered")
	}

	select {
	case ok := <-reentrantSetOK:
		require.True(t, ok, "reentrant Set from within the callback must succeed, not deadlock")
	case <-time.After(2 * time.Second):
		t.Fatal("reentrant Set from within the watch callback never returned")
	}

	select {
	case v := <-notified:
		require.Equal(t, []byte("reentrant"), v)
	case <-time.After(2 * time.Second):
		t.Fatal("second notification (from the reentrant Set) was never delivered")
	}
}
