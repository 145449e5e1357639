package broker

import (
	"fmt"

	zmq "github.com/pebbe/zmq4"

	"github.com/isaac129/apteryx/base_def"
	"github.com/isaac129/apteryx/wire"
)

// dialer issues broker->client-listener RPCs (C4's broker-initiated half,
// the broker acting as a client of each registered listener).
//
// An earlier version of this type cached one REQ socket per client, guarded
// by a per-client mutex held for the duration of each exchange. That design
// deadlocks under the reentrant scenario SPEC_FULL.md §5 calls out: a
// watcher callback on client A that issues a secondary SET matching its own
// still-registered pattern requires the broker to notify A a *second* time
// while the first notification to A is still in flight. The second
// dial.Call("A", ...) would block acquiring the cached lock held by the
// first, in-flight call — a call that can only complete once the second one
// is delivered. The only way out was RPC_TIMEOUT, after which the cached
// socket was left in a broken REQ/REP state besides.
//
// dialer now opens and tears down a fresh REQ socket for every outbound
// call, so concurrent calls to the same client's listener are independent
// exchanges rather than serialized behind one shared connection.
type dialer struct{}

func newDialer() *dialer {
	return &dialer{}
}

// Call sends a ListenerCall to clientID's listener and waits (up to
// base_def.RPC_TIMEOUT) for its ListenerReply.  A timeout or any transport
// error is returned to the caller as a non-fatal error; per SPEC_FULL.md §5,
// the caller must not treat this as cause to tear down the subscription.
func (d *dialer) Call(clientID string, call *wire.ListenerCall) (*wire.ListenerReply, error) {
	socket, err := zmq.NewSocket(zmq.REQ)
	if err != nil {
		return nil, fmt.Errorf("broker: failed to create listener socket for %s: %v", clientID, err)
	}
	defer socket.Close()

	if err := socket.SetSndtimeo(base_def.RPC_TIMEOUT); err != nil {
		return nil, err
	}
	if err := socket.SetRcvtimeo(base_def.RPC_TIMEOUT); err != nil {
		return nil, err
	}
	// A fresh socket is opened per call, so there's no reason to linger
	// on an unanswered request past Close().
	if err := socket.SetLinger(0); err != nil {
		return nil, err
	}

	endpoint := base_def.SocketPath(base_def.ListenerName(clientID))
	if err := socket.Connect(endpoint); err != nil {
		return nil, fmt.Errorf("broker: failed to connect to listener %s: %v", clientID, err)
	}

	data, err := wire.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("broker: failed to marshal call: %v", err)
	}

	return exchange(socket, data, call)
}

func exchange(s *zmq.Socket, data []byte, call *wire.ListenerCall) (*wire.ListenerReply, error) {
	if _, err := s.SendBytes(data, 0); err != nil {
		return nil, fmt.Errorf("broker: failed to send to listener: %v", err)
	}

	raw, err := s.RecvBytes(0)
	if err != nil {
		return nil, fmt.Errorf("broker: listener %v timed out or errored: %v", call.Path, err)
	}

	reply := &wire.ListenerReply{}
	if err := wire.Unmarshal(raw, reply); err != nil {
		return nil, fmt.Errorf("broker: malformed listener reply: %v", err)
	}
	return reply, nil
}

// Drop and Close are kept for API compatibility with broker.go's client
// lifecycle hooks. With no persistent per-client socket, there is nothing
// left to tear down when a client disconnects or the broker shuts down.
func (d *dialer) Drop(clientID string) {}

func (d *dialer) Close() {}
