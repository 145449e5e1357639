// Package wire defines the messages exchanged between clients and the
// broker (C4's request/reply shape) and between the broker and a client
// listener (the reversed-roles callback shape).  The messages are plain
// protobuf-struct-tagged types in the vintage of this stack's other
// hand-maintained wire messages: marshalled with proto.Marshal/Unmarshal,
// carried as a single ZeroMQ frame per message.
package wire

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

// Op identifies the kind of request a client is making of the broker.
type Op int32

const (
	OpGet Op = iota
	OpSet
	OpSearch
	OpPrune
	OpWatch
	OpProvide
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	case OpSearch:
		return "SEARCH"
	case OpPrune:
		return "PRUNE"
	case OpWatch:
		return "WATCH"
	case OpProvide:
		return "PROVIDE"
	default:
		return fmt.Sprintf("OP(%d)", int32(o))
	}
}

// Status is carried on every Reply.
type Status int32

const (
	StatusOK Status = iota
	StatusError
)

// Request is sent by a client to the broker for every operation.  Not every
// field applies to every Op: Value is meaningful only for SET; Cb/Priv/ID
// only for WATCH/PROVIDE.
type Request struct {
	Op       Op     `protobuf:"varint,1,opt,name=op" json:"op,omitempty"`
	Path     string `protobuf:"bytes,2,opt,name=path" json:"path,omitempty"`
	Value    []byte `protobuf:"bytes,3,opt,name=value" json:"value,omitempty"`
	ClientID string `protobuf:"bytes,4,opt,name=client_id,json=clientId" json:"client_id,omitempty"`
	Cb       uint64 `protobuf:"varint,5,opt,name=cb" json:"cb,omitempty"`
	Priv     uint64 `protobuf:"varint,6,opt,name=priv" json:"priv,omitempty"`
}

func (m *Request) Reset()         { *m = Request{} }
func (m *Request) String() string { return fmt.Sprintf("%+v", *m) }
func (*Request) ProtoMessage()    {}

// Reply is the broker's answer to a Request.  Value carries GET's result
// (empty bytes means absent, per the absent/empty-value conflation in
// SPEC_FULL.md §9); Paths carries SEARCH's result; Err carries a failure
// message when Status is StatusError.
type Reply struct {
	Status Status   `protobuf:"varint,1,opt,name=status" json:"status,omitempty"`
	Value  []byte   `protobuf:"bytes,2,opt,name=value" json:"value,omitempty"`
	Paths  []string `protobuf:"bytes,3,rep,name=paths" json:"paths,omitempty"`
	Err    string   `protobuf:"bytes,4,opt,name=err" json:"err,omitempty"`
}

func (m *Reply) Reset()         { *m = Reply{} }
func (m *Reply) String() string { return fmt.Sprintf("%+v", *m) }
func (*Reply) ProtoMessage()    {}

// OK builds a successful Reply.
func OK(value []byte, paths []string) *Reply {
	return &Reply{Status: StatusOK, Value: value, Paths: paths}
}

// Error builds a failed Reply.
func Error(err error) *Reply {
	return &Reply{Status: StatusError, Err: err.Error()}
}

// ListenerKind distinguishes the two calls the broker makes on a client
// listener (C6): delivering a watcher notification, or asking a provider to
// compute a value.
type ListenerKind int32

const (
	KindWatch ListenerKind = iota
	KindProvide
)

// ListenerCall is sent by the broker to a client listener.  For KindWatch,
// Value carries the newly-set value the watcher is being told about; for
// KindProvide, Value is unused (the listener calls the provider callback and
// sends its result back on ListenerReply.Value).
type ListenerCall struct {
	Kind ListenerKind `protobuf:"varint,1,opt,name=kind" json:"kind,omitempty"`
	Path string       `protobuf:"bytes,2,opt,name=path" json:"path,omitempty"`
	// Cb is the per-client handle assigned at registration time (see the
	// "callback handles as opaque integers" design note): since a
	// function pointer cannot cross a process boundary, the listener
	// uses Cb to look up which locally-held callback to invoke.
	Cb    uint64 `protobuf:"varint,3,opt,name=cb" json:"cb,omitempty"`
	Priv  uint64 `protobuf:"varint,4,opt,name=priv" json:"priv,omitempty"`
	Value []byte `protobuf:"bytes,5,opt,name=value" json:"value,omitempty"`
}

func (m *ListenerCall) Reset()         { *m = ListenerCall{} }
func (m *ListenerCall) String() string { return fmt.Sprintf("%+v", *m) }
func (*ListenerCall) ProtoMessage()    {}

// ListenerReply is the client listener's response to a ListenerCall.  For
// KindWatch, OK reports whether the callback accepted the notification; for
// KindProvide, Value carries the callback's computed bytes.
type ListenerReply struct {
	OK    bool   `protobuf:"varint,1,opt,name=ok" json:"ok,omitempty"`
	Value []byte `protobuf:"bytes,2,opt,name=value" json:"value,omitempty"`
	Err   string `protobuf:"bytes,3,opt,name=err" json:"err,omitempty"`
}

func (m *ListenerReply) Reset()         { *m = ListenerReply{} }
func (m *ListenerReply) String() string { return fmt.Sprintf("%+v", *m) }
func (*ListenerReply) ProtoMessage()    {}

// Marshal and Unmarshal are thin wrappers so callers don't need to import
// the proto package directly; kept as free functions to mirror cfgmsg's
// Parse()-style helpers in the reference stack.

// Marshal serializes any of the message types above.
func Marshal(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

// Unmarshal parses data into the given message type.
func Unmarshal(data []byte, m proto.Message) error {
	return proto.Unmarshal(data, m)
}
