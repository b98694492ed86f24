package grpcconn

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// frameKind tells the receive loop which channel a frame belongs to.
type frameKind byte

const (
	kindMessage frameKind = 1
	kindCall    frameKind = 2
	kindReply   frameKind = 3
)

// headerLen is one kind byte plus the big-endian correlation id.
const headerLen = 1 + 8

var errShortFrame = errors.New("frame shorter than header")

func (k frameKind) String() string {
	switch k {
	case kindMessage:
		return "message"
	case kindCall:
		return "call"
	case kindReply:
		return "reply"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// encodeFrame lays out [kind][id][payload]. Messages carry id 0.
func encodeFrame(kind frameKind, id uint64, payload []byte) []byte {
	b := make([]byte, headerLen+len(payload))
	b[0] = byte(kind)
	binary.BigEndian.PutUint64(b[1:headerLen], id)
	copy(b[headerLen:], payload)
	return b
}

// decodeFrame splits a frame. The returned payload aliases b.
func decodeFrame(b []byte) (frameKind, uint64, []byte, error) {
	if len(b) < headerLen {
		return 0, 0, nil, errShortFrame
	}
	kind := frameKind(b[0])
	switch kind {
	case kindMessage, kindCall, kindReply:
	default:
		return 0, 0, nil, fmt.Errorf("unknown frame %s", kind)
	}
	return kind, binary.BigEndian.Uint64(b[1:headerLen]), b[headerLen:], nil
}
