package tcp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/najoast/hellonode/core"
)

// MaxFrameSize bounds the encoded size of a single transport message.
const MaxFrameSize = 16 << 20

const frameHeaderSize = 4

// WriteFrame writes tm as a length-prefixed frame.
func WriteFrame(w io.Writer, tm core.TransportMessage) error {
	body, err := core.EncodeTransportMessage(tm)
	if err != nil {
		return err
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	frame := make([]byte, frameHeaderSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[frameHeaderSize:], body)

	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) (core.TransportMessage, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return core.TransportMessage{}, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return core.TransportMessage{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return core.TransportMessage{}, fmt.Errorf("failed to read frame body: %w", err)
	}
	return core.DecodeTransportMessage(body)
}
