package transport

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lftpnet/lftp/congestion"
	"github.com/lftpnet/lftp/header"
	"github.com/lftpnet/lftp/rtt"
	"github.com/lftpnet/lftp/seqnum"
)

// loopbackConn returns a connected UDP socket pointed at a throwaway local
// listener, just enough plumbing for tests that exercise retransmitLocked
// (which writes to s.conn).
func loopbackConn(t *testing.T) *net.UDPConn {
	t.Helper()
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	conn, err := net.DialUDP("udp", nil, listener.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestSender() *sender {
	s := &sender{
		cfg:       DefaultConfig(),
		cc:        congestion.New(),
		estimator: rtt.New(),
		running:   true,
	}
	s.initialSeqNum = seqnum.Value(1000)
	s.sendBase = s.initialSeqNum
	s.nextByteSeqNum = s.initialSeqNum
	return s
}

func TestAppendLockedAdvancesNextByteSeqNum(t *testing.T) {
	s := newTestSender()
	s.appendLocked(0, []byte("hello"))
	s.appendLocked(0, []byte("!!"))

	require.Len(t, s.buffer, 2)
	assert.Equal(t, seqnum.Value(1000), s.buffer[0].seqNum)
	assert.Equal(t, seqnum.Value(1005), s.buffer[1].seqNum)
	assert.Equal(t, seqnum.Value(1007), s.nextByteSeqNum)
}

func TestHandleAckLockedNewAckAdvancesSendBaseAndPopsBuffer(t *testing.T) {
	s := newTestSender()
	s.appendLocked(0, []byte("hello"))
	s.appendLocked(header.FlagFin, []byte{'0'})
	s.buffer[0].sent = true

	finished := s.handleAckLocked(context.Background(), uint32(1005), 4096)
	assert.False(t, finished)
	assert.Equal(t, seqnum.Value(1005), s.sendBase)
	require.Len(t, s.buffer, 1)
	assert.True(t, s.buffer[0].isFin())
}

func TestHandleAckLockedFinAckFinishesSession(t *testing.T) {
	s := newTestSender()
	s.appendLocked(header.FlagFin, []byte{'0'})
	s.buffer[0].sent = true

	finished := s.handleAckLocked(context.Background(), uint32(1001), 4096)
	assert.True(t, finished)
	assert.Empty(t, s.buffer)
}

func TestHandleAckLockedThreeDupAcksTriggersRetransmit(t *testing.T) {
	s := newTestSender()
	s.conn = loopbackConn(t)
	s.appendLocked(0, []byte("hello"))
	s.buffer[0].sent = true

	s.handleAckLocked(context.Background(), uint32(1000), 4096)
	s.handleAckLocked(context.Background(), uint32(1000), 4096)
	s.handleAckLocked(context.Background(), uint32(1000), 4096)

	assert.Equal(t, 3, s.dupAckCount)
	assert.Equal(t, congestion.CongestionAvoidance, s.cc.State)
}

func TestRandomInitialSeqNumDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = randomInitialSeqNum()
	})
}
