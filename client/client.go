// Package client implements the public client API (§6) and the per-client
// listener (C6) that accepts broker-initiated watch/provide invocations.
// It is the analog of the reference stack's ap_common/apcfg package, with
// ap_common/mcp's refcounted connection lifecycle folded in.
package client

import (
	"fmt"
	"os"
	"sync"

	zmq "github.com/pebbe/zmq4"
	"github.com/satori/uuid"
	"go.uber.org/zap"

	"github.com/isaac129/apteryx/base_def"
	"github.com/isaac129/apteryx/common/aputil"
	"github.com/isaac129/apteryx/common/ptree"
	"github.com/isaac129/apteryx/wire"
)

// WatchFunc is a watcher callback: invoked with the path that changed, the
// private token supplied at registration, and the newly-set value.  It
// returns whether the notification was accepted.
type WatchFunc func(path string, priv uint64, value []byte) bool

// ProvideFunc is a provider callback: invoked with the path being read and
// the private token supplied at registration, it returns the value to
// answer the read with.
type ProvideFunc func(path string, priv uint64) []byte

type watchEntry struct {
	pattern string
	cb      WatchFunc
	priv    uint64
}

type provideEntry struct {
	path string
	cb   ProvideFunc
	priv uint64
}

// Client is an opaque handle used for all interaction with the broker,
// mirroring ap_common/apcfg.APConfig.
type Client struct {
	name string
	id   string
	log  *zap.SugaredLogger

	mu       sync.Mutex
	req      *zmq.Socket
	initRefs int

	handleMu        sync.Mutex
	nextHandle      uint64
	watchByPattern  map[string]uint64
	watchByHandle   map[uint64]watchEntry
	provideByPath   map[string]uint64
	provideByHandle map[uint64]provideEntry

	listener *listener
}

// New returns a handle for subsequent interaction with the broker.  It does
// not connect; call Init for that.  name is a human-readable tag (e.g. the
// daemon name), matching the sender naming convention of
// ap_common/apcfg.NewConfig and ap_common/mcp.New.
func New(name string) *Client {
	id := fmt.Sprintf("%d-%s", os.Getpid(), uuid.NewV4().String())
	return &Client{
		name:            name,
		id:              id,
		log:             aputil.NewLogger(name),
		watchByPattern:  make(map[string]uint64),
		watchByHandle:   make(map[uint64]watchEntry),
		provideByPath:   make(map[string]uint64),
		provideByHandle: make(map[uint64]provideEntry),
	}
}

// ID returns the client's identifier, the value the broker uses to key its
// subscriptions and the name under which this client's listener would
// publish its endpoint.
func (c *Client) ID() string { return c.id }

// Init connects to the broker.  It may be called repeatedly; only the
// 1->0 transition on Shutdown tears the connection (and any listener) down,
// so nested callers (e.g. a library and its caller both depending on the
// same client) may each Init/Shutdown independently.
func (c *Client) Init(debug bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if debug {
		_ = aputil.LogSetLevel("debug")
	}

	if c.initRefs > 0 {
		c.initRefs++
		return true
	}

	socket, err := zmq.NewSocket(zmq.REQ)
	if err != nil {
		c.log.Errorw("failed to create broker socket", "error", err)
		return false
	}
	if err := socket.SetSndtimeo(base_def.RPC_TIMEOUT); err != nil {
		c.log.Errorw("failed to set send timeout", "error", err)
		return false
	}
	if err := socket.SetRcvtimeo(base_def.RPC_TIMEOUT); err != nil {
		c.log.Errorw("failed to set receive timeout", "error", err)
		return false
	}
	// Let a request that timed out be followed by a new one, discarding
	// any late reply to the old one, instead of leaving the socket stuck.
	if err := socket.SetReqRelaxed(1); err != nil {
		c.log.Errorw("failed to set relaxed request mode", "error", err)
		return false
	}
	if err := socket.SetReqCorrelate(1); err != nil {
		c.log.Errorw("failed to set request correlation", "error", err)
		return false
	}
	if err := socket.Connect(base_def.SocketPath(base_def.APTERYX_SERVER)); err != nil {
		c.log.Errorw("failed to connect to broker", "error", err)
		return false
	}

	c.req = socket
	c.initRefs = 1
	return true
}

// Shutdown decrements the init refcount.  On the 1->0 transition it
// unregisters every watch/provide this client holds, stops the listener if
// one was started, and closes the broker connection.  Calling Shutdown
// without a matching Init returns false and logs.
func (c *Client) Shutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initRefs == 0 {
		c.log.Warnw("shutdown called without a matching init")
		return false
	}

	c.initRefs--
	if c.initRefs > 0 {
		return true
	}

	// The unregister requests go through c.call, which takes c.mu itself.
	c.mu.Unlock()
	c.unregisterAllLocked()
	c.mu.Lock()

	if c.listener != nil {
		c.listener.stop()
		c.listener = nil
	}

	if c.req != nil {
		c.req.Close()
		c.req = nil
	}

	return true
}

func (c *Client) unregisterAllLocked() {
	c.handleMu.Lock()
	patterns := make([]string, 0, len(c.watchByPattern))
	for p := range c.watchByPattern {
		patterns = append(patterns, p)
	}
	paths := make([]string, 0, len(c.provideByPath))
	for p := range c.provideByPath {
		paths = append(paths, p)
	}
	c.handleMu.Unlock()

	for _, p := range patterns {
		c.watchLocked(p, nil, 0)
	}
	for _, p := range paths {
		c.provideLocked(p, nil, 0)
	}
}

// call marshals req, sends it to the broker, and waits for a Reply.
func (c *Client) call(req *wire.Request) (*wire.Reply, error) {
	c.mu.Lock()
	socket := c.req
	c.mu.Unlock()

	if socket == nil {
		return nil, fmt.Errorf("client: not initialized")
	}

	data, err := wire.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client: failed to marshal request: %v", err)
	}

	// A REQ socket only supports one in-flight request at a time; a
	// single mutex around the whole exchange serializes concurrent
	// callers the same way ap_common/apcfg.APConfig.msg does with its
	// own mutex.
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.req == nil {
		return nil, fmt.Errorf("client: not initialized")
	}
	if _, err := c.req.SendBytes(data, 0); err != nil {
		return nil, fmt.Errorf("client: failed to send request: %v", err)
	}

	raw, err := c.req.RecvBytes(0)
	if err != nil {
		return nil, fmt.Errorf("client: broker did not respond: %v", err)
	}

	reply := &wire.Reply{}
	if err := wire.Unmarshal(raw, reply); err != nil {
		return nil, fmt.Errorf("client: malformed reply: %v", err)
	}
	return reply, nil
}

// Set stores value at path.  A zero-length value deletes it.
func (c *Client) Set(path string, value []byte) bool {
	if !ptree.ValidPath(path) {
		return false
	}
	reply, err := c.call(&wire.Request{Op: wire.OpSet, Path: path, Value: value})
	if err != nil {
		c.log.Warnw("set failed", "path", path, "error", err)
		return false
	}
	return reply.Status == wire.StatusOK
}

// Get returns the value stored (or provided) at path.  The second return is
// false for an invalid path, a transport-level failure, or an error reply;
// an absent value is reported as (nil, true) per §7's absent/empty
// conflation.
func (c *Client) Get(path string) ([]byte, bool) {
	if !ptree.ValidPath(path) {
		return nil, false
	}
	reply, err := c.call(&wire.Request{Op: wire.OpGet, Path: path})
	if err != nil {
		c.log.Warnw("get failed", "path", path, "error", err)
		return nil, false
	}
	if reply.Status != wire.StatusOK {
		return nil, false
	}
	return reply.Value, true
}

// Search returns the fully-qualified paths of prefix's direct children.
func (c *Client) Search(prefix string) []string {
	if !ptree.ValidSearchPrefix(prefix) {
		return nil
	}
	reply, err := c.call(&wire.Request{Op: wire.OpSearch, Path: prefix})
	if err != nil {
		c.log.Warnw("search failed", "prefix", prefix, "error", err)
		return nil
	}
	return reply.Paths
}

// Prune removes path and its entire subtree.
func (c *Client) Prune(path string) bool {
	if !ptree.ValidPath(path) {
		return false
	}
	reply, err := c.call(&wire.Request{Op: wire.OpPrune, Path: path})
	if err != nil {
		c.log.Warnw("prune failed", "path", path, "error", err)
		return false
	}
	return reply.Status == wire.StatusOK
}
