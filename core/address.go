package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// TransportType tells the node which router owns an address.
type TransportType uint8

const (
	// LocalTransport addresses name workers on the current node.
	LocalTransport TransportType = 0

	// TCPTransport addresses are host:port pairs of remote nodes.
	TCPTransport TransportType = 1
)

// String returns the string representation of TransportType.
func (t TransportType) String() string {
	switch t {
	case LocalTransport:
		return "local"
	case TCPTransport:
		return "tcp"
	default:
		return fmt.Sprintf("transport(%d)", uint8(t))
	}
}

// Address identifies a worker on a node, or a remote peer reachable through
// a transport.
type Address struct {
	Type  TransportType
	Value string
}

// LocalAddress returns the local address with the given value.
func LocalAddress(value string) Address {
	return Address{Type: LocalTransport, Value: value}
}

// TCPAddress returns an address that the TCP transport resolves to a
// connection with peer.
func TCPAddress(peer string) Address {
	return Address{Type: TCPTransport, Value: peer}
}

// RandomAddress returns a fresh local address starting with prefix.
func RandomAddress(prefix string) Address {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return LocalAddress(id)
	}
	return LocalAddress(prefix + "_" + id)
}

// ParseAddress parses "<type>#<value>" or a bare local value. A prefix that
// is not a transport number is kept as part of a local value.
func ParseAddress(s string) Address {
	if i := strings.IndexByte(s, '#'); i > 0 {
		if t, err := strconv.ParseUint(s[:i], 10, 8); err == nil {
			return Address{Type: TransportType(t), Value: s[i+1:]}
		}
	}
	return LocalAddress(s)
}

// IsLocal reports whether a is handled by the local node.
func (a Address) IsLocal() bool {
	return a.Type == LocalTransport
}

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return a.Type == LocalTransport && a.Value == ""
}

// String renders the address as "<type>#<value>".
func (a Address) String() string {
	return fmt.Sprintf("%d#%s", uint8(a.Type), a.Value)
}

// MarshalText renders the address in its string form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the form accepted by ParseAddress.
func (a *Address) UnmarshalText(text []byte) error {
	*a = ParseAddress(string(text))
	return nil
}
