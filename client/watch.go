package client

import (
	"strings"

	"github.com/isaac129/apteryx/common/ptree"
	"github.com/isaac129/apteryx/wire"
)

// validWatchPattern accepts exact paths, the four "everything" sentinels,
// and trailing-wildcard subtree patterns (the broker's matching rules in
// SPEC_FULL.md §4.3) — everything ptree.ValidSearchPrefix or ptree.ValidPath
// accepts, plus any "/*"-terminated pattern without "//".
func validWatchPattern(pattern string) bool {
	if pattern == "*" || pattern == "/*" || pattern == "" {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		return !strings.Contains(pattern[:len(pattern)-2], "//")
	}
	return ptree.ValidSearchPrefix(pattern) || ptree.ValidPath(pattern)
}

// Watch registers cb to be called whenever a SET touches a path matched by
// pattern (per the matching rules in SPEC_FULL.md §4.3).  Passing a nil cb
// unregisters whatever callback is currently bound to pattern.  The first
// successful Watch or Provide call on a Client lazily starts its listener.
func (c *Client) Watch(pattern string, cb WatchFunc, priv uint64) bool {
	if !validWatchPattern(pattern) {
		return false
	}
	if cb != nil {
		if err := c.ensureListener(); err != nil {
			c.log.Warnw("failed to start listener", "error", err)
			return false
		}
	}
	return c.watchLocked(pattern, cb, priv)
}

func (c *Client) watchLocked(pattern string, cb WatchFunc, priv uint64) bool {
	c.handleMu.Lock()
	var handle uint64
	if cb == nil {
		h, ok := c.watchByPattern[pattern]
		if !ok {
			c.handleMu.Unlock()
			return false
		}
		delete(c.watchByPattern, pattern)
		delete(c.watchByHandle, h)
		handle = 0
	} else {
		c.nextHandle++
		handle = c.nextHandle
		c.watchByPattern[pattern] = handle
		c.watchByHandle[handle] = watchEntry{pattern: pattern, cb: cb, priv: priv}
	}
	c.handleMu.Unlock()

	reply, err := c.call(&wire.Request{
		Op:       wire.OpWatch,
		Path:     pattern,
		ClientID: c.id,
		Cb:       handle,
		Priv:     priv,
	})
	if err != nil {
		c.log.Warnw("watch registration failed", "pattern", pattern, "error", err)
		return false
	}
	return reply.Status == wire.StatusOK
}

// Provide registers cb to answer GET requests for the exact path path.
// Passing a nil cb unregisters it.
func (c *Client) Provide(path string, cb ProvideFunc, priv uint64) bool {
	if !ptree.ValidPath(path) {
		return false
	}
	if cb != nil {
		if err := c.ensureListener(); err != nil {
			c.log.Warnw("failed to start listener", "error", err)
			return false
		}
	}
	return c.provideLocked(path, cb, priv)
}

func (c *Client) provideLocked(path string, cb ProvideFunc, priv uint64) bool {
	c.handleMu.Lock()
	var handle uint64
	if cb == nil {
		h, ok := c.provideByPath[path]
		if !ok {
			c.handleMu.Unlock()
			return false
		}
		delete(c.provideByPath, path)
		delete(c.provideByHandle, h)
		handle = 0
	} else {
		c.nextHandle++
		handle = c.nextHandle
		c.provideByPath[path] = handle
		c.provideByHandle[handle] = provideEntry{path: path, cb: cb, priv: priv}
	}
	c.handleMu.Unlock()

	reply, err := c.call(&wire.Request{
		Op:       wire.OpProvide,
		Path:     path,
		ClientID: c.id,
		Cb:       handle,
		Priv:     priv,
	})
	if err != nil {
		c.log.Warnw("provide registration failed", "path", path, "error", err)
		return false
	}
	return reply.Status == wire.StatusOK
}

// dispatchWatch looks up the watch callback bound to handle and invokes it.
// Called from a listener call goroutine, never holding handleMu across the
// callback so a callback may itself call back into the Client (e.g. to
// unregister itself or issue a new Set).
func (c *Client) dispatchWatch(handle uint64, path string, value []byte) (bool, error) {
	c.handleMu.Lock()
	entry, ok := c.watchByHandle[handle]
	c.handleMu.Unlock()
	if !ok {
		return false, nil
	}
	return entry.cb(path, entry.priv, value), nil
}

// dispatchProvide looks up the provide callback bound to handle and invokes
// it, returning the value it computes.
func (c *Client) dispatchProvide(handle uint64, path string) ([]byte, bool) {
	c.handleMu.Lock()
	entry, ok := c.provideByHandle[handle]
	c.handleMu.Unlock()
	if !ok {
		return nil, false
	}
	return entry.cb(path, entry.priv), true
}
