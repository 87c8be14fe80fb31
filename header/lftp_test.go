package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	payload := []byte("hello, lftp")
	seg := Pack(42, 7, FlagAck|FlagSyn, 65024, payload)

	seq, ack, ackBit, syn, fin, rwnd, got, err := Unpack(seg)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), seq)
	assert.Equal(t, uint32(7), ack)
	assert.True(t, ackBit)
	assert.True(t, syn)
	assert.False(t, fin)
	assert.Equal(t, uint16(65024), rwnd)
	assert.Equal(t, payload, got)
}

func TestPackUnpackEmptyPayload(t *testing.T) {
	seg := Pack(0, 0, FlagFin, 0, nil)
	assert.Len(t, []byte(seg), Size)
	assert.True(t, seg.HasFlag(FlagFin))
	assert.False(t, seg.HasFlag(FlagAck))
}

func TestUnpackMalformedHeader(t *testing.T) {
	_, _, _, _, _, _, _, err := Unpack(make([]byte, Size-1))
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestAccessors(t *testing.T) {
	seg := Pack(100, 200, FlagAck, 1024, []byte("x"))
	assert.Equal(t, uint32(100), seg.SequenceNumber())
	assert.Equal(t, uint32(200), seg.AckNumber())
	assert.Equal(t, uint16(1024), seg.ReceiveWindow())
	assert.Equal(t, []byte("x"), seg.Payload())
}
