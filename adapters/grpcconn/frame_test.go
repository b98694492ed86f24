package grpcconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame(t *testing.T) {
	t.Run("layout", func(t *testing.T) {
		b := encodeFrame(kindCall, 0x0102030405060708, []byte("hi"))
		assert.Equal(t, []byte{2, 1, 2, 3, 4, 5, 6, 7, 8, 'h', 'i'}, b)

		kind, id, payload, err := decodeFrame(b)
		require.NoError(t, err)
		assert.Equal(t, kindCall, kind)
		assert.Equal(t, uint64(0x0102030405060708), id)
		assert.Equal(t, []byte("hi"), payload)
	})

	t.Run("empty_payload", func(t *testing.T) {
		kind, id, payload, err := decodeFrame(encodeFrame(kindMessage, 0, nil))
		require.NoError(t, err)
		assert.Equal(t, kindMessage, kind)
		assert.Zero(t, id)
		assert.Empty(t, payload)
	})

	t.Run("short", func(t *testing.T) {
		_, _, _, err := decodeFrame([]byte{1, 0, 0})
		assert.ErrorIs(t, err, errShortFrame)
	})

	t.Run("unknown_kind", func(t *testing.T) {
		_, _, _, err := decodeFrame(encodeFrame(frameKind(9), 1, nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kind(9)")
	})
}
