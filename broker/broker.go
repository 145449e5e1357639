// Package broker implements C5, the server-side dispatch that ties the path
// trie (C1), the watcher and provider registries (C2/C3) and the RPC
// transport (C4) together: it decodes each client request, applies it to
// the trie and registries, and synchronously fans out notifications and
// provider calls before replying.
package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	zmq "github.com/pebbe/zmq4"
	"go.uber.org/zap"

	"github.com/isaac129/apteryx/base_def"
	"github.com/isaac129/apteryx/common/ptree"
	"github.com/isaac129/apteryx/wire"
)

// Config controls how a Broker binds and serves.
type Config struct {
	// Endpoint is the logical name the broker's ROUTER socket binds at
	// (defaults to base_def.APTERYX_SERVER).
	Endpoint string

	// Workers is the size of the request-handling goroutine pool
	// (defaults to base_def.DefaultWorkers, the reference stack's four).
	Workers int

	// Logger receives broker diagnostics.  A no-op-ish default is used
	// if nil.
	Logger *zap.SugaredLogger

	// Registerer is where Prometheus collectors are registered (defaults
	// to prometheus.DefaultRegisterer).
	Registerer prometheus.Registerer
}

// Broker is the single owned object a server's main entry creates; nothing
// in this package depends on package-level globals, unlike the reference
// stack's process-wide singleton.
type Broker struct {
	cfg Config

	tree      *ptree.Tree
	watchers  *watchRegistry
	providers *provideRegistry
	dial      *dialer
	metrics   *metrics
	log       *zap.SugaredLogger

	router    *zmq.Socket
	routerMu  sync.Mutex // serializes all Send/Recv calls on router
	jobs      chan job
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

type job struct {
	identity []byte
	payload  []byte
}

// New constructs a Broker but does not yet bind or start serving; call
// Start for that.
func New(cfg Config) *Broker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = base_def.APTERYX_SERVER
	}
	if cfg.Workers <= 0 {
		cfg.Workers = base_def.DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	watchers := newWatchRegistry()
	providers := newProvideRegistry()

	return &Broker{
		cfg:       cfg,
		tree:      ptree.New(),
		watchers:  watchers,
		providers: providers,
		dial:      newDialer(),
		metrics:   newMetrics(cfg.Registerer, watchers, providers),
		log:       cfg.Logger,
		jobs:      make(chan job, cfg.Workers*4),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start binds the ROUTER socket and launches the receive loop and worker
// pool.  It blocks until the socket is bound, then returns; serving happens
// in background goroutines.
func (b *Broker) Start() error {
	router, err := zmq.NewSocket(zmq.ROUTER)
	if err != nil {
		return fmt.Errorf("broker: failed to create router socket: %v", err)
	}
	// A short receive timeout makes recvLoop release routerMu regularly, so
	// workers can send their replies and recvLoop notices Stop.
	if err := router.SetRcvtimeo(100 * time.Millisecond); err != nil {
		return fmt.Errorf("broker: failed to set router receive timeout: %v", err)
	}
	if err := router.Bind(base_def.SocketPath(b.cfg.Endpoint)); err != nil {
		return fmt.Errorf("broker: failed to bind %s: %v", b.cfg.Endpoint, err)
	}
	b.router = router

	for i := 0; i < b.cfg.Workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	go b.recvLoop()

	b.log.Infow("broker listening", "endpoint", b.cfg.Endpoint, "workers", b.cfg.Workers)
	return nil
}

// Stop closes the receive loop, drains outstanding work, and closes the
// broker's ROUTER socket.  Listener REQ sockets are opened and closed within
// each outbound call, so none remain open to tear down here.
func (b *Broker) Stop() {
	close(b.stopCh)
	<-b.stoppedCh

	close(b.jobs)
	b.wg.Wait()

	b.routerMu.Lock()
	b.router.Close()
	b.routerMu.Unlock()

	b.dial.Close()
}

// recvLoop owns the ROUTER socket's receive side.  A ZeroMQ socket must only
// be driven by one goroutine at a time; recvLoop and the workers'
// replies (see worker) serialize through routerMu rather than each owning a
// separate goroutine that calls into the same socket unsynchronized.
func (b *Broker) recvLoop() {
	defer close(b.stoppedCh)

	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		b.routerMu.Lock()
		parts, err := b.router.RecvMessageBytes(0)
		b.routerMu.Unlock()
		if err != nil {
			// EAGAIN from the receive timeout set in Start, or EINTR;
			// loop around to notice stopCh.
			continue
		}
		if len(parts) < 2 {
			continue
		}

		identity := parts[0]
		payload := parts[len(parts)-1]

		select {
		case b.jobs <- job{identity: identity, payload: payload}:
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) worker() {
	defer b.wg.Done()

	for j := range b.jobs {
		req := &wire.Request{}
		var reply *wire.Reply
		if err := wire.Unmarshal(j.payload, req); err != nil {
			reply = wire.Error(fmt.Errorf("malformed request: %v", err))
		} else {
			b.metrics.requests.WithLabelValues(req.Op.String()).Inc()
			reply = b.dispatch(req)
		}

		data, err := wire.Marshal(reply)
		if err != nil {
			b.log.Errorw("failed to marshal reply", "error", err)
			continue
		}

		b.routerMu.Lock()
		_, err = b.router.SendMessage(j.identity, []byte{}, data)
		b.routerMu.Unlock()
		if err != nil {
			b.log.Warnw("failed to send reply", "error", err)
		}
	}
}

// dispatch applies a single decoded request to C1/C2/C3 and, for SET and
// GET, performs the synchronous outbound calls the request may require.
func (b *Broker) dispatch(req *wire.Request) *wire.Reply {
	switch req.Op {
	case wire.OpSet:
		return b.handleSet(req)
	case wire.OpGet:
		return b.handleGet(req)
	case wire.OpSearch:
		return wire.OK(nil, b.tree.Search(req.Path))
	case wire.OpPrune:
		if err := b.tree.Prune(req.Path); err != nil {
			return wire.Error(err)
		}
		return wire.OK(nil, nil)
	case wire.OpWatch:
		b.watchers.Register(req.Path, req.ClientID, req.Cb, req.Priv)
		return wire.OK(nil, nil)
	case wire.OpProvide:
		b.providers.Register(req.Path, req.ClientID, req.Cb, req.Priv)
		return wire.OK(nil, nil)
	default:
		return wire.Error(fmt.Errorf("unrecognized operation %v", req.Op))
	}
}

func (b *Broker) handleSet(req *wire.Request) *wire.Reply {
	if err := b.tree.Set(req.Path, req.Value); err != nil {
		return wire.Error(err)
	}

	// Snapshot the matching watchers under C2's lock, then release it
	// before issuing any outbound call — the caller is not unblocked
	// until every matched watcher has acknowledged, but a watcher
	// callback may itself re-enter the broker (including unregistering
	// itself), which the snapshot-then-dispatch discipline makes safe.
	matches := b.watchers.Match(req.Path)
	timer := prometheus.NewTimer(b.metrics.notifyLatency)
	for _, sub := range matches {
		b.notify(sub, req.Path, req.Value)
	}
	timer.ObserveDuration()

	return wire.OK(nil, nil)
}

func (b *Broker) notify(sub Subscription, path string, value []byte) {
	call := &wire.ListenerCall{Kind: wire.KindWatch, Path: path, Cb: sub.Cb, Priv: sub.Priv, Value: value}

	reply, err := b.dial.Call(sub.ClientID, call)
	if err != nil {
		// Non-fatal: the subscription stays registered. It will be
		// removed by an explicit unregister or when the client's
		// connection closes.
		b.log.Warnw("watcher notification failed", "client", sub.ClientID, "path", path, "error", err)
		return
	}
	if !reply.OK {
		b.log.Warnw("watcher callback declined notification", "client", sub.ClientID, "path", path, "error", reply.Err)
	}
}

func (b *Broker) handleGet(req *wire.Request) *wire.Reply {
	if val, ok := b.tree.Get(req.Path); ok {
		return wire.OK(val, nil)
	}

	sub, ok := b.providers.Lookup(req.Path)
	if !ok {
		return wire.OK(nil, nil)
	}

	call := &wire.ListenerCall{Kind: wire.KindProvide, Path: req.Path, Cb: sub.Cb, Priv: sub.Priv}
	reply, err := b.dial.Call(sub.ClientID, call)
	if err != nil {
		b.log.Warnw("provider call failed", "client", sub.ClientID, "path", req.Path, "error", err)
		return wire.OK(nil, nil)
	}
	if reply.Err != "" {
		b.log.Warnw("provider callback returned an error", "client", sub.ClientID, "path", req.Path, "error", reply.Err)
		return wire.OK(nil, nil)
	}

	return wire.OK(reply.Value, nil)
}

// DisconnectClient removes every watcher and provider owned by clientID —
// the behavior required when that client's connection closes.  The dialer
// keeps no per-client socket, so dial.Drop has nothing to release.
func (b *Broker) DisconnectClient(clientID string) {
	b.watchers.RemoveClient(clientID)
	b.providers.RemoveClient(clientID)
	b.dial.Drop(clientID)
}
