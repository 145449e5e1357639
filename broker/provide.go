package broker

import "sync"

// provideRegistry is C3: exact-path provider subscriptions.  Keying and
// lifecycle mirror watchRegistry, but matching is equality only —
// registering a provider on a prefix has no effect on any other path, and
// providers are never consulted for a prefix of a GET path.
type provideRegistry struct {
	mu   sync.Mutex
	rows map[string]map[string]Subscription // path -> clientID -> sub
}

func newProvideRegistry() *provideRegistry {
	return &provideRegistry{rows: make(map[string]map[string]Subscription)}
}

// Register inserts, overwrites, or (if cb == 0) removes a provider.
func (r *provideRegistry) Register(path, clientID string, cb, priv uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb == 0 {
		if byClient, ok := r.rows[path]; ok {
			delete(byClient, clientID)
			if len(byClient) == 0 {
				delete(r.rows, path)
			}
		}
		return
	}

	byClient, ok := r.rows[path]
	if !ok {
		byClient = make(map[string]Subscription)
		r.rows[path] = byClient
	}
	byClient[clientID] = Subscription{ClientID: clientID, Cb: cb, Priv: priv}
}

// RemoveClient drops every provider owned by clientID.
func (r *provideRegistry) RemoveClient(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for path, byClient := range r.rows {
		delete(byClient, clientID)
		if len(byClient) == 0 {
			delete(r.rows, path)
		}
	}
}

// Lookup returns the provider registered on exactly path, if any.  A GET
// that also has a stored value never reaches here; C1 wins (see broker.go).
func (r *provideRegistry) Lookup(path string) (Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byClient, ok := r.rows[path]
	if !ok || len(byClient) == 0 {
		return Subscription{}, false
	}

	// Exactly one provider is the documented case; if more than one
	// client has registered on the same exact path (last-writer-wins is
	// not possible since registration is keyed per-client), pick an
	// arbitrary but deterministic one to keep behavior stable within a
	// broker lifetime: the registration with the smallest client id.
	var first Subscription
	found := false
	for id, sub := range byClient {
		if !found || id < first.ClientID {
			first = sub
			found = true
		}
	}
	return first, true
}
