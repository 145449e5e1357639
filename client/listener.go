package client

import (
	"fmt"
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/isaac129/apteryx/base_def"
	"github.com/isaac129/apteryx/wire"
)

// listener is C6: the per-client socket that accepts broker-initiated
// ListenerCalls and dispatches them to the locally-registered watch/provide
// callback the call's handle names.  It is started lazily on the first
// Watch/Provide registration and torn down on Shutdown.
//
// It binds a ROUTER socket rather than a plain REP socket, and dispatches
// each inbound call on its own goroutine, for the same reason broker.go
// deviates from a bare REP socket to a ROUTER plus worker pool: a watcher
// callback that re-enters the broker (e.g. issuing a SET that matches its
// own still-registered pattern, per SPEC_FULL.md §5) needs the broker to be
// able to deliver a second notification to this same client while the first
// is still being processed. A single-threaded REP accept loop can only ever
// have one request outstanding and would deadlock against its own callback.
type listener struct {
	client *Client

	socketMu sync.Mutex
	socket   *zmq.Socket

	wg     sync.WaitGroup
	stopCh chan struct{}
	doneCh chan struct{}
}

// ensureListener starts c.listener if it is not already running.  Idempotent:
// safe to call on every Watch/Provide registration.
func (c *Client) ensureListener() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener != nil {
		return nil
	}

	socket, err := zmq.NewSocket(zmq.ROUTER)
	if err != nil {
		return fmt.Errorf("client: failed to create listener socket: %v", err)
	}
	// A short receive timeout makes serve release socketMu regularly, so
	// call goroutines can send their replies and stop can take the lock.
	if err := socket.SetRcvtimeo(100 * time.Millisecond); err != nil {
		socket.Close()
		return fmt.Errorf("client: failed to set listener receive timeout: %v", err)
	}
	endpoint := base_def.SocketPath(base_def.ListenerName(c.id))
	if err := socket.Bind(endpoint); err != nil {
		socket.Close()
		return fmt.Errorf("client: failed to bind listener at %s: %v", endpoint, err)
	}

	l := &listener{
		client: c,
		socket: socket,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go l.serve()
	c.listener = l
	return nil
}

// serve owns the ROUTER socket's receive side.  It hands each inbound call
// off to its own goroutine immediately rather than running the callback
// inline, so a callback that blocks on a reentrant RPC to this same client
// doesn't prevent the next inbound call from being received and processed.
func (l *listener) serve() {
	defer close(l.doneCh)

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		l.socketMu.Lock()
		parts, err := l.socket.RecvMessageBytes(0)
		l.socketMu.Unlock()
		if err != nil {
			// Socket closing underneath us, or a transient EAGAIN;
			// either way re-check stopCh.
			continue
		}
		if len(parts) < 2 {
			continue
		}

		identity := parts[0]
		payload := parts[len(parts)-1]

		l.wg.Add(1)
		go l.process(identity, payload)
	}
}

func (l *listener) process(identity, payload []byte) {
	defer l.wg.Done()

	call := &wire.ListenerCall{}
	var reply *wire.ListenerReply
	if err := wire.Unmarshal(payload, call); err != nil {
		reply = &wire.ListenerReply{OK: false, Err: fmt.Sprintf("malformed call: %v", err)}
	} else {
		reply = l.handle(call)
	}

	data, err := wire.Marshal(reply)
	if err != nil {
		// Nothing sane to reply with; the broker will see this as a
		// timeout and log a warning rather than tearing the
		// subscription down.
		return
	}

	l.socketMu.Lock()
	_, _ = l.socket.SendMessage(identity, []byte{}, data)
	l.socketMu.Unlock()
}

func (l *listener) handle(call *wire.ListenerCall) *wire.ListenerReply {
	switch call.Kind {
	case wire.KindWatch:
		ok, err := l.client.dispatchWatch(call.Cb, call.Path, call.Value)
		if err != nil {
			return &wire.ListenerReply{OK: false, Err: err.Error()}
		}
		return &wire.ListenerReply{OK: ok}
	case wire.KindProvide:
		value, ok := l.client.dispatchProvide(call.Cb, call.Path)
		if !ok {
			return &wire.ListenerReply{OK: false, Err: "no such provider registration"}
		}
		return &wire.ListenerReply{OK: true, Value: value}
	default:
		return &wire.ListenerReply{OK: false, Err: fmt.Sprintf("unrecognized listener call kind %v", call.Kind)}
	}
}

// stop closes the listener socket and waits for the accept loop and any
// in-flight call goroutines to finish, but not past base_def.ShutdownGrace:
// a hung callback (including one stuck in a reentrant RPC per the dialer's
// per-call socket design) must not make Client.Shutdown block forever.
func (l *listener) stop() {
	close(l.stopCh)

	l.socketMu.Lock()
	l.socket.Close()
	l.socketMu.Unlock()

	done := make(chan struct{})
	go func() {
		<-l.doneCh
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(base_def.ShutdownGrace):
		// Forcibly abandon whatever callback goroutines are still
		// running; they hold no lock this Client needs, and will be
		// reaped by the runtime whenever they do eventually return.
	}
}
