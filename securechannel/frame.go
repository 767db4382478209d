package securechannel

import (
	"fmt"

	"github.com/davecgh/go-xdr/xdr"
)

type frameKind uint32

const (
	kindHello frameKind = iota + 1
	kindResponse
	kindFinish
	kindData
)

func (k frameKind) String() string {
	switch k {
	case kindHello:
		return "hello"
	case kindResponse:
		return "response"
	case kindFinish:
		return "finish"
	case kindData:
		return "data"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// frame is the payload of every message exchanged between the two ends of
// a channel.
type frame struct {
	Kind  uint32
	Nonce uint64
	Data  []byte
}

// response is the data of the responder's handshake frame.
type response struct {
	Ephemeral []byte
	Sealed    []byte
}

// identityPayload is what each side proves about itself during the
// handshake. Credential is empty when none is presented.
type identityPayload struct {
	ChangeHistory []byte
	Signature     []byte
	Credential    []byte
}

func encodeFrame(kind frameKind, nonce uint64, data []byte) ([]byte, error) {
	out, err := xdr.Marshal(frame{Kind: uint32(kind), Nonce: nonce, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", kind, err)
	}
	return out, nil
}

func decodeFrame(payload []byte) (frame, error) {
	var f frame
	rest, err := xdr.Unmarshal(payload, &f)
	if err != nil {
		return frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if len(rest) != 0 {
		return frame{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidFrame, len(rest))
	}
	return f, nil
}

func (f frame) kind() frameKind { return frameKind(f.Kind) }
