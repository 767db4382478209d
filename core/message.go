package core

import (
	"fmt"

	"github.com/davecgh/go-xdr/xdr"
)

// ProtocolVersion is stamped on every TransportMessage this node creates.
const ProtocolVersion uint8 = 1

// TransportMessage is the part of a message that crosses transports.
type TransportMessage struct {
	Version     uint8
	OnwardRoute Route
	ReturnRoute Route
	Payload     []byte
}

// NewTransportMessage creates a message with the current protocol version.
func NewTransportMessage(onward, ret Route, payload []byte) TransportMessage {
	return TransportMessage{
		Version:     ProtocolVersion,
		OnwardRoute: onward.Clone(),
		ReturnRoute: ret.Clone(),
		Payload:     payload,
	}
}

// Clone creates a deep copy of the message.
func (m TransportMessage) Clone() TransportMessage {
	clone := TransportMessage{
		Version:     m.Version,
		OnwardRoute: m.OnwardRoute.Clone(),
		ReturnRoute: m.ReturnRoute.Clone(),
	}
	if m.Payload != nil {
		clone.Payload = make([]byte, len(m.Payload))
		copy(clone.Payload, m.Payload)
	}
	return clone
}

// LocalInfo is node-local metadata attached to a message. It never leaves
// the node.
type LocalInfo interface {
	LocalInfoType() string
}

// LocalMessage is a TransportMessage plus its node-local metadata.
type LocalMessage struct {
	Transport TransportMessage
	LocalInfo []LocalInfo
}

// NewLocalMessage wraps tm with the given local info.
func NewLocalMessage(tm TransportMessage, info []LocalInfo) *LocalMessage {
	return &LocalMessage{Transport: tm, LocalInfo: info}
}

// FindLocalInfo returns the first local info entry of the given type.
func (m *LocalMessage) FindLocalInfo(infoType string) (LocalInfo, bool) {
	for _, li := range m.LocalInfo {
		if li.LocalInfoType() == infoType {
			return li, true
		}
	}
	return nil, false
}

// Routed is what a worker receives: the message and the address it was
// delivered to.
type Routed struct {
	msg  *LocalMessage
	dest Address
	src  Address
}

// Destination returns the address the message was delivered to.
func (r *Routed) Destination() Address { return r.dest }

// Source returns the worker (or transport receiver) that routed the message
// to this node's mailbox.
func (r *Routed) Source() Address { return r.src }

// LocalMessage returns the underlying message. Handlers own it and may
// modify it before forwarding.
func (r *Routed) LocalMessage() *LocalMessage { return r.msg }

// Payload returns the raw payload.
func (r *Routed) Payload() []byte { return r.msg.Transport.Payload }

// OnwardRoute returns a copy of the onward route.
func (r *Routed) OnwardRoute() Route { return r.msg.Transport.OnwardRoute.Clone() }

// ReturnRoute returns a copy of the return route.
func (r *Routed) ReturnRoute() Route { return r.msg.Transport.ReturnRoute.Clone() }

// Body decodes the payload as a string body.
func (r *Routed) Body() (string, error) {
	return DecodeBody(r.msg.Transport.Payload)
}

// String returns the string body, or a size summary when the payload is not
// a string.
func (r *Routed) String() string {
	if body, err := r.Body(); err == nil {
		return body
	}
	return fmt.Sprintf("<%d bytes>", len(r.msg.Transport.Payload))
}

// envelope is a message in flight inside a node, tagged with the worker that
// sent it.
type envelope struct {
	msg *LocalMessage
	src Address
}

// Wire representation.

type wireAddress struct {
	Type  uint32
	Value string
}

type wireMessage struct {
	Version uint32
	Onward  []wireAddress
	Return  []wireAddress
	Payload []byte
}

func toWire(r Route) []wireAddress {
	out := make([]wireAddress, len(r))
	for i, a := range r {
		out[i] = wireAddress{Type: uint32(a.Type), Value: a.Value}
	}
	return out
}

func fromWire(w []wireAddress) (Route, error) {
	out := make(Route, len(w))
	for i, a := range w {
		if a.Type > 0xff {
			return nil, fmt.Errorf("invalid transport type %d", a.Type)
		}
		out[i] = Address{Type: TransportType(a.Type), Value: a.Value}
	}
	return out, nil
}

// EncodeTransportMessage serializes m with XDR.
func EncodeTransportMessage(m TransportMessage) ([]byte, error) {
	data, err := xdr.Marshal(wireMessage{
		Version: uint32(m.Version),
		Onward:  toWire(m.OnwardRoute),
		Return:  toWire(m.ReturnRoute),
		Payload: m.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transport message: %w", err)
	}
	return data, nil
}

// DecodeTransportMessage parses the output of EncodeTransportMessage.
func DecodeTransportMessage(data []byte) (TransportMessage, error) {
	var w wireMessage
	if _, err := xdr.Unmarshal(data, &w); err != nil {
		return TransportMessage{}, fmt.Errorf("failed to decode transport message: %w", err)
	}
	if w.Version != uint32(ProtocolVersion) {
		return TransportMessage{}, fmt.Errorf("unsupported protocol version %d", w.Version)
	}

	onward, err := fromWire(w.Onward)
	if err != nil {
		return TransportMessage{}, err
	}
	ret, err := fromWire(w.Return)
	if err != nil {
		return TransportMessage{}, err
	}

	return TransportMessage{
		Version:     uint8(w.Version),
		OnwardRoute: onward,
		ReturnRoute: ret,
		Payload:     w.Payload,
	}, nil
}

// EncodeBody encodes a string body as a payload.
func EncodeBody(body string) []byte {
	data, err := xdr.Marshal(body)
	if err != nil {
		// strings always encode
		panic(fmt.Sprintf("xdr: failed to encode string: %v", err))
	}
	return data
}

// DecodeBody decodes a payload created by EncodeBody.
func DecodeBody(payload []byte) (string, error) {
	var body string
	rest, err := xdr.Unmarshal(payload, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotString, err)
	}
	if len(rest) != 0 {
		return "", fmt.Errorf("%w: %d trailing bytes", ErrNotString, len(rest))
	}
	return body, nil
}
