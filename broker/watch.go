package broker

import (
	"strings"
	"sync"
)

// Subscription is the payload the broker needs to deliver a callback: which
// client to call, and the opaque handles to round-trip to it.  It is the
// broker's only view of a watcher or provider; the real callback lives in
// the client process.
type Subscription struct {
	ClientID string
	Cb       uint64
	Priv     uint64
}

// watchRegistry is C2: pattern-keyed watcher subscriptions.  Registration
// key is (pattern, clientID); re-registering the same pair overwrites the
// row, and a zero callback handle deletes it.
//
// Modeled on ap_common/broker.Broker's topic->handler map (register-by-key,
// overwrite-on-reregister), generalized from exact ZMQ topics to path
// patterns with trailing-wildcard subtree matching.
type watchRegistry struct {
	mu   sync.Mutex
	rows map[string]map[string]Subscription // pattern -> clientID -> sub
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{rows: make(map[string]map[string]Subscription)}
}

// Register inserts, overwrites, or (if cb == 0) removes a subscription.
func (r *watchRegistry) Register(pattern, clientID string, cb, priv uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb == 0 {
		if byClient, ok := r.rows[pattern]; ok {
			delete(byClient, clientID)
			if len(byClient) == 0 {
				delete(r.rows, pattern)
			}
		}
		return
	}

	byClient, ok := r.rows[pattern]
	if !ok {
		byClient = make(map[string]Subscription)
		r.rows[pattern] = byClient
	}
	byClient[clientID] = Subscription{ClientID: clientID, Cb: cb, Priv: priv}
}

// RemoveClient drops every subscription owned by clientID, e.g. when its
// connection closes.
func (r *watchRegistry) RemoveClient(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for pattern, byClient := range r.rows {
		delete(byClient, clientID)
		if len(byClient) == 0 {
			delete(r.rows, pattern)
		}
	}
}

// Match returns a snapshot of every subscription whose pattern matches path.
// The snapshot is taken under the registry lock and returned after the lock
// is released, so callers may safely issue outbound RPCs (or further
// registry mutations, including self-unregistration) against the result
// without risking a deadlock or iterator invalidation — the re-entrancy
// discipline required by SPEC_FULL.md §5.
func (r *watchRegistry) Match(path string) []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Subscription
	for pattern, byClient := range r.rows {
		if !patternMatches(pattern, path) {
			continue
		}
		for _, sub := range byClient {
			matched = append(matched, sub)
		}
	}
	return matched
}

// patternMatches implements the matching rules of SPEC_FULL.md §4.3.  A '*'
// anywhere but the terminal position never matches; only exact equality,
// the four "everything" sentinels, and a trailing '/' or '/*' subtree match
// are honored.
func patternMatches(pattern, path string) bool {
	if pattern == path {
		return true
	}
	if pattern == "*" || pattern == "/" || pattern == "/*" || pattern == "" {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := pattern[:len(pattern)-1] // keep the trailing '/'
		return strings.HasPrefix(path, prefix)
	}
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(path, pattern)
	}
	return false
}
